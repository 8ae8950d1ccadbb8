package scenario

import (
	"os"
	"path/filepath"
	"testing"
)

const scenarioYAML = `id: RIVER_CROSSING
entry_points:
  P1: {x: -80, y: 0}
  P2: {x: 80, y: 0}
units:
  - {owner: P1, unit_type: INF, pos: {x: -60, y: 5}}
  - {owner: P2, unit_type: TANK, pos: {x: 60, y: -5}}
buildings:
  - {id: B1, pos: {x: 0, y: 10}, radius: 4, capacity: 3}
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := Load(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.ID != "RIVER_CROSSING" || len(s.Units) != 2 || len(s.Buildings) != 1 {
		t.Fatalf("parsed wrong: %+v", s)
	}
	if s.EntryPoints["P1"].X != -80 {
		t.Fatalf("entry point: %+v", s.EntryPoints["P1"])
	}
	if s.Digest == "" {
		t.Fatalf("missing digest")
	}

	// The digest pins the file bytes, not the parsed structure.
	s2, err := Load(writeScenario(t, scenarioYAML+"# note\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Digest == s2.Digest {
		t.Fatalf("different bytes produced the same digest")
	}
}

func TestLoadScenarioRejectsIncompleteSpawn(t *testing.T) {
	bad := `id: BAD
units:
  - {owner: P1, pos: {x: 0, y: 0}}
`
	if _, err := Load(writeScenario(t, bad)); err == nil {
		t.Fatalf("spawn without unit_type accepted")
	}
}
