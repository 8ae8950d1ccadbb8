package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

const unitsYAML = `units:
  - id: RIFLE_SQUAD
    health: 10
    speed: 3.2
    morale: 1000
    weapons: [RIFLE]
    can_dig_in: true
    can_garrison: true
  - id: MBT
    health: 42
    armor: 8
    speed: 5.5
    morale: 1000
    weapons: [CANNON, MG]
`

const weaponsYAML = `weapons:
  - id: RIFLE
    damage: 2
    range: 30
    accuracy: 0.55
    penetration: 1
    suppression: 40
    cooldown_ticks: 30
    ammo: 20
  - id: CANNON
    damage: 18
    range: 60
    accuracy: 0.7
    penetration: 12
    suppression: 250
    cooldown_ticks: 300
    ammo: 10
  - id: MG
    damage: 3
    range: 35
    accuracy: 0.5
    penetration: 1
    suppression: 80
    cooldown_ticks: 12
    ammo: 0
`

func writeConfigs(t *testing.T, units, weapons string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "units.yaml"), []byte(units), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "weapons.yaml"), []byte(weapons), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadCatalogs(t *testing.T) {
	c, err := Load(writeConfigs(t, unitsYAML, weaponsYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Units.ByID) != 2 || len(c.Weapons.ByID) != 3 {
		t.Fatalf("got %d units, %d weapons", len(c.Units.ByID), len(c.Weapons.ByID))
	}
	mbt := c.Units.ByID["MBT"]
	if mbt.Armor != 8 || len(mbt.Weapons) != 2 {
		t.Fatalf("MBT parsed wrong: %+v", mbt)
	}
	if c.Weapons.ByID["CANNON"].CooldownTicks != 300 {
		t.Fatalf("CANNON cooldown: %+v", c.Weapons.ByID["CANNON"])
	}
	if c.Units.Digest == "" || c.Weapons.Digest == "" {
		t.Fatalf("missing digests")
	}
}

func TestLoadCatalogsDigestTracksBytes(t *testing.T) {
	a, err := Load(writeConfigs(t, unitsYAML, weaponsYAML))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(writeConfigs(t, unitsYAML, weaponsYAML+"  # trailing comment\n"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Units.Digest != b.Units.Digest {
		t.Fatalf("identical units bytes produced different digests")
	}
	if a.Weapons.Digest == b.Weapons.Digest {
		t.Fatalf("different weapons bytes produced the same digest")
	}
}

func TestLoadCatalogsRejectsUnknownWeaponRef(t *testing.T) {
	bad := `units:
  - id: GHOST
    health: 1
    speed: 1
    weapons: [NO_SUCH_GUN]
`
	if _, err := Load(writeConfigs(t, bad, weaponsYAML)); err == nil {
		t.Fatalf("unit with unknown weapon ref accepted")
	}
}

func TestLoadCatalogsRejectsDuplicateIDs(t *testing.T) {
	dup := `weapons:
  - id: RIFLE
    damage: 1
  - id: RIFLE
    damage: 2
`
	if _, err := Load(writeConfigs(t, "units: []\n", dup)); err == nil {
		t.Fatalf("duplicate weapon id accepted")
	}
}
