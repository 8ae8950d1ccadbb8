// Package catalogs loads the static unit and weapon definitions every peer
// must agree on. Digests of the raw files are exchanged in WELCOME so a
// mismatched catalog is caught before the first tick instead of showing up
// as a desync later.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Catalogs struct {
	Units   UnitCatalog
	Weapons WeaponCatalog
}

type UnitCatalog struct {
	ByID   map[string]UnitDef
	Digest string
}

// UnitDef is a unit archetype. Speed is world units per second; the sim
// converts to per-tick displacement from the tick rate.
type UnitDef struct {
	ID           string   `yaml:"id"`
	Health       int      `yaml:"health"`
	Armor        int      `yaml:"armor"`
	Speed        float64  `yaml:"speed"`
	Morale       int      `yaml:"morale"`
	Weapons      []string `yaml:"weapons"`
	Capacity     int      `yaml:"capacity,omitempty"`      // transport seats
	CanDigIn     bool     `yaml:"can_dig_in,omitempty"`
	CanGarrison  bool     `yaml:"can_garrison,omitempty"`
}

type WeaponCatalog struct {
	ByID   map[string]WeaponDef
	Digest string
}

type WeaponDef struct {
	ID            string  `yaml:"id"`
	Damage        int     `yaml:"damage"`
	Range         float64 `yaml:"range"`
	Accuracy      float64 `yaml:"accuracy"`    // base hit probability in [0,1]
	Penetration   int     `yaml:"penetration"` // rolled against target armor
	Suppression   int     `yaml:"suppression"` // morale loss on hit
	CooldownTicks int     `yaml:"cooldown_ticks"`
	Ammo          int     `yaml:"ammo"` // total rounds carried; <=0 means unlimited
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadUnits(filepath.Join(configDir, "units.yaml"), &c.Units); err != nil {
		return nil, err
	}
	if err := loadWeapons(filepath.Join(configDir, "weapons.yaml"), &c.Weapons); err != nil {
		return nil, err
	}
	for id, u := range c.Units.ByID {
		for _, w := range u.Weapons {
			if _, ok := c.Weapons.ByID[w]; !ok {
				return nil, fmt.Errorf("unit %s references unknown weapon %s", id, w)
			}
		}
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadUnits(path string, out *UnitCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var file struct {
		Units []UnitDef `yaml:"units"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("units.yaml: %w", err)
	}
	out.ByID = make(map[string]UnitDef, len(file.Units))
	for _, u := range file.Units {
		if u.ID == "" {
			return fmt.Errorf("units.yaml: unit with empty id")
		}
		if _, dup := out.ByID[u.ID]; dup {
			return fmt.Errorf("units.yaml: duplicate unit id %s", u.ID)
		}
		out.ByID[u.ID] = u
	}
	return nil
}

func loadWeapons(path string, out *WeaponCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var file struct {
		Weapons []WeaponDef `yaml:"weapons"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("weapons.yaml: %w", err)
	}
	out.ByID = make(map[string]WeaponDef, len(file.Weapons))
	for _, w := range file.Weapons {
		if w.ID == "" {
			return fmt.Errorf("weapons.yaml: weapon with empty id")
		}
		if _, dup := out.ByID[w.ID]; dup {
			return fmt.Errorf("weapons.yaml: duplicate weapon id %s", w.ID)
		}
		out.ByID[w.ID] = w
	}
	return nil
}
