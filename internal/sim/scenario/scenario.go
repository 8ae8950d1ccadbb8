// Package scenario loads the initial entity set for a match. Like the
// catalogs, the scenario must be byte-identical on every peer; its digest
// travels in the match header so replays can refuse a mismatched setup.
package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Vec2 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

type SpawnSpec struct {
	Owner    string `yaml:"owner" json:"owner"`
	UnitType string `yaml:"unit_type" json:"unit_type"`
	Pos      Vec2   `yaml:"pos" json:"pos"`
}

type BuildingSpec struct {
	ID       string  `yaml:"id" json:"id"`
	Pos      Vec2    `yaml:"pos" json:"pos"`
	Radius   float64 `yaml:"radius" json:"radius"`
	Capacity int     `yaml:"capacity" json:"capacity"`
}

type Scenario struct {
	ID          string          `yaml:"id" json:"id"`
	EntryPoints map[string]Vec2 `yaml:"entry_points" json:"entry_points"`
	Units       []SpawnSpec     `yaml:"units" json:"units"`
	Buildings   []BuildingSpec  `yaml:"buildings" json:"buildings"`

	Digest string `yaml:"-" json:"digest,omitempty"`
}

func Load(path string) (Scenario, error) {
	var s Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("scenario: %w", err)
	}
	sum := sha256.Sum256(raw)
	s.Digest = hex.EncodeToString(sum[:])
	for _, u := range s.Units {
		if u.Owner == "" || u.UnitType == "" {
			return s, fmt.Errorf("scenario: unit spawn missing owner or unit_type")
		}
	}
	return s, nil
}
