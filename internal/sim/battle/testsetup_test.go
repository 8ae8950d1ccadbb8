package battle

import (
	"testing"

	"steelfront.dev/internal/protocol"
	"steelfront.dev/internal/sim/catalogs"
	"steelfront.dev/internal/sim/scenario"
	"steelfront.dev/internal/sim/tuning"
)

func testCatalogs() *catalogs.Catalogs {
	return &catalogs.Catalogs{
		Units: catalogs.UnitCatalog{
			Digest: "test-units",
			ByID: map[string]catalogs.UnitDef{
				"INF": {
					ID: "INF", Health: 10, Armor: 0, Speed: 3, Morale: 1000,
					Weapons: []string{"GUN"}, CanDigIn: true, CanGarrison: true,
				},
				"TANK": {
					ID: "TANK", Health: 40, Armor: 5, Speed: 5, Morale: 1000,
					Weapons: []string{"CANNON"},
				},
				"APC": {
					ID: "APC", Health: 30, Armor: 2, Speed: 6, Morale: 1000,
					Capacity: 2,
				},
			},
		},
		Weapons: catalogs.WeaponCatalog{
			Digest: "test-weapons",
			ByID: map[string]catalogs.WeaponDef{
				"GUN": {
					ID: "GUN", Damage: 4, Range: 25, Accuracy: 1.0,
					Penetration: 1, Suppression: 100, CooldownTicks: 5, Ammo: 20,
				},
				// Deliberately zero cooldown: the sim must clamp it to one
				// tick instead of firing forever inside a single tick.
				"CANNON": {
					ID: "CANNON", Damage: 20, Range: 40, Accuracy: 1.0,
					Penetration: 10, Suppression: 300, CooldownTicks: 0, Ammo: 10,
				},
			},
		},
	}
}

func testScenario() scenario.Scenario {
	return scenario.Scenario{
		ID:     "TEST",
		Digest: "test-scenario",
		EntryPoints: map[string]scenario.Vec2{
			"P1": {X: -50, Y: 0},
			"P2": {X: 50, Y: 0},
		},
		Buildings: []scenario.BuildingSpec{
			{ID: "B1", Pos: scenario.Vec2{X: 0, Y: 30}, Radius: 3, Capacity: 2},
		},
	}
}

func testTuning() tuning.Tuning {
	t := tuning.Defaults()
	t.TickRateHz = 10 // dt = 0.1s keeps per-tick displacement readable
	return t
}

func newTestBattle(t *testing.T, seed int64) *Battle {
	t.Helper()
	b, err := New(Config{
		MatchID: "test",
		Seed:    seed,
		Roster:  []string{"P1", "P2"},
		Tuning:  testTuning(),
	}, testCatalogs(), testScenario())
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	return b
}

func spawn(t *testing.T, b *Battle, owner, unitType string, x, y float64) *Unit {
	t.Helper()
	u, err := b.spawnUnit(owner, unitType, protocol.Vec2{X: x, Y: y})
	if err != nil {
		t.Fatalf("spawn %s: %v", unitType, err)
	}
	return u
}

func stepN(t *testing.T, b *Battle, n int) []Sample {
	t.Helper()
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		_, s := b.StepOnce(nil)
		out = append(out, s)
	}
	return out
}
