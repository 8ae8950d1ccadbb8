// Package battle is the deterministic lockstep simulation core: it consumes
// the per-tick command lists released by the scheduler, advances all units
// in a fixed order, and digests the resulting state for cross-peer
// comparison. The whole package runs on one goroutine; see Run.
package battle

import (
	"fmt"
	"math"
	"sort"

	"steelfront.dev/internal/protocol"
	"steelfront.dev/internal/sim/catalogs"
	"steelfront.dev/internal/sim/lockstep"
	"steelfront.dev/internal/sim/rng"
	"steelfront.dev/internal/sim/scenario"
	"steelfront.dev/internal/sim/tuning"
)

type Config struct {
	MatchID string
	Seed    int64
	Roster  []string
	Tuning  tuning.Tuning
}

// SubmitEnvelope carries a decoded command batch from the transport into
// the loop. Resp, if non-nil, receives one result per command.
type SubmitEnvelope struct {
	PlayerID string
	Commands []protocol.Command
	Resp     chan []error
}

// CompletenessMark is the transport's proof that PlayerID has submitted
// every command it will for ticks <= Tick.
type CompletenessMark struct {
	PlayerID string
	Tick     uint64
}

// PeerSample is a checksum sample received from a remote peer.
type PeerSample struct {
	PeerID string
	Sample Sample
}

// Fault is a fatal match condition: a barrier stall past the timeout or a
// checksum divergence. The match terminates; continuing to simulate past
// either would be misleading.
type Fault struct {
	Code string // protocol.ErrStall or protocol.ErrDesync
	Tick uint64
	Msg  string
}

func (f Fault) Error() string { return fmt.Sprintf("%s at tick %d: %s", f.Code, f.Tick, f.Msg) }

// Pathfinder is the navigation black box. Implementations must be pure
// functions of their inputs: same endpoints, same waypoints, on every peer.
type Pathfinder interface {
	FindPath(from, to protocol.Vec2) []protocol.Vec2
}

// linePath is the default pathfinder: straight to the destination.
type linePath struct{}

func (linePath) FindPath(from, to protocol.Vec2) []protocol.Vec2 {
	return []protocol.Vec2{to}
}

// TickLogger receives one entry per completed tick; wired to the
// persistence layer, nil when logging is off.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is the replay record for one tick: the commands exactly as
// released by the scheduler, plus the digest they produced.
type TickLogEntry struct {
	Tick     uint64             `json:"tick"`
	Commands []protocol.Command `json:"commands,omitempty"`
	Digest   string             `json:"digest"`
}

// MatchHeader is the first line of a tick log. A replay is fully
// reconstructible from it plus the entries that follow.
type MatchHeader struct {
	MatchID        string   `json:"match_id"`
	Seed           int64    `json:"seed"`
	TickRateHz     int      `json:"tick_rate_hz"`
	Roster         []string `json:"roster"`
	ScenarioID     string   `json:"scenario_id"`
	ScenarioDigest string   `json:"scenario_digest"`
	UnitsDigest    string   `json:"units_digest"`
	WeaponsDigest  string   `json:"weapons_digest"`
}

type Battle struct {
	cfg  Config
	cats *catalogs.Catalogs
	scen scenario.Scenario

	rng   *rng.Source
	sched *lockstep.Scheduler
	path  Pathfinder

	tick uint64

	units     map[string]*Unit
	unitIDs   []string // ascending, rebuilt when the roster of units changes
	buildings map[string]*Building

	nextUnitNum uint64

	ring *digestRing

	inbox   chan SubmitEnvelope
	marks   chan CompletenessMark
	remote  chan PeerSample
	stop    chan struct{}

	snapshots chan Snapshot
	digests   chan Sample
	faults    chan Fault

	tickLogger  TickLogger
	stallFrames int
}

func New(cfg Config, cats *catalogs.Catalogs, scen scenario.Scenario) (*Battle, error) {
	if len(cfg.Roster) == 0 {
		return nil, fmt.Errorf("empty roster")
	}
	cfg.Tuning = withDefaults(cfg.Tuning)

	b := &Battle{
		cfg:       cfg,
		cats:      cats,
		scen:      scen,
		rng:       rng.New(cfg.Seed),
		sched:     lockstep.New(cfg.Roster, cfg.Tuning.CommandDelayTicks),
		path:      linePath{},
		units:     map[string]*Unit{},
		buildings: map[string]*Building{},
		ring:      newDigestRing(cfg.Tuning.DigestRing),
		inbox:     make(chan SubmitEnvelope, 256),
		marks:     make(chan CompletenessMark, 256),
		remote:    make(chan PeerSample, 256),
		stop:      make(chan struct{}),
		snapshots: make(chan Snapshot, 1),
		digests:   make(chan Sample, 64),
		faults:    make(chan Fault, 4),
	}

	for _, bs := range scen.Buildings {
		if bs.ID == "" {
			return nil, fmt.Errorf("scenario building with empty id")
		}
		seats := bs.Capacity
		if seats <= 0 {
			seats = 1
		}
		r := bs.Radius
		if r <= 0 {
			r = 3
		}
		b.buildings[bs.ID] = &Building{
			ID:       bs.ID,
			Pos:      protocol.Vec2{X: bs.Pos.X, Y: bs.Pos.Y},
			Radius:   r,
			Capacity: seats,
		}
	}

	// Scenario spawns run in file order so every peer assigns the same ids.
	for _, sp := range scen.Units {
		if _, err := b.spawnUnit(sp.Owner, sp.UnitType, protocol.Vec2{X: sp.Pos.X, Y: sp.Pos.Y}); err != nil {
			return nil, err
		}
	}

	b.sched.Start()
	return b, nil
}

func withDefaults(t tuning.Tuning) tuning.Tuning {
	if t.TickRateHz <= 0 {
		return tuning.Defaults()
	}
	return t
}

func (b *Battle) SetPathfinder(p Pathfinder) {
	if p != nil {
		b.path = p
	}
}

func (b *Battle) SetTickLogger(l TickLogger) { b.tickLogger = l }

func (b *Battle) Inbox() chan<- SubmitEnvelope       { return b.inbox }
func (b *Battle) Marks() chan<- CompletenessMark     { return b.marks }
func (b *Battle) RemoteSamples() chan<- PeerSample   { return b.remote }
func (b *Battle) Snapshots() <-chan Snapshot         { return b.snapshots }
func (b *Battle) Digests() <-chan Sample             { return b.digests }
func (b *Battle) Faults() <-chan Fault               { return b.faults }

func (b *Battle) MatchID() string { return b.cfg.MatchID }
func (b *Battle) Tick() uint64    { return b.tick }

func (b *Battle) Params() protocol.MatchParams {
	return protocol.MatchParams{
		TickRateHz:        b.cfg.Tuning.TickRateHz,
		CommandDelayTicks: b.cfg.Tuning.CommandDelayTicks,
		StallTimeoutTicks: b.cfg.Tuning.StallTimeoutTicks,
		Seed:              b.cfg.Seed,
		Roster:            append([]string(nil), b.cfg.Roster...),
	}
}

func (b *Battle) CatalogDigests() protocol.CatalogDigests {
	return protocol.CatalogDigests{
		UnitsDigest:   b.cats.Units.Digest,
		WeaponsDigest: b.cats.Weapons.Digest,
	}
}

func (b *Battle) Header() MatchHeader {
	return MatchHeader{
		MatchID:        b.cfg.MatchID,
		Seed:           b.cfg.Seed,
		TickRateHz:     b.cfg.Tuning.TickRateHz,
		Roster:         append([]string(nil), b.cfg.Roster...),
		ScenarioID:     b.scen.ID,
		ScenarioDigest: b.scen.Digest,
		UnitsDigest:    b.cats.Units.Digest,
		WeaponsDigest:  b.cats.Weapons.Digest,
	}
}

// sortedUnits returns live units in ascending ID order. Every system that
// touches more than one unit iterates this slice, never the map: iteration
// order is part of the determinism contract.
func (b *Battle) sortedUnits() []*Unit {
	out := make([]*Unit, 0, len(b.unitIDs))
	for _, id := range b.unitIDs {
		out = append(out, b.units[id])
	}
	return out
}

func (b *Battle) rebuildIndex() {
	b.unitIDs = b.unitIDs[:0]
	for id := range b.units {
		b.unitIDs = append(b.unitIDs, id)
	}
	sort.Strings(b.unitIDs)
}

func (b *Battle) spawnUnit(owner, unitType string, pos protocol.Vec2) (*Unit, error) {
	def, ok := b.cats.Units.ByID[unitType]
	if !ok {
		return nil, fmt.Errorf("unknown unit type %s", unitType)
	}
	b.nextUnitNum++
	u := &Unit{
		ID:          fmt.Sprintf("U%05d", b.nextUnitNum),
		Owner:       owner,
		Type:        unitType,
		Def:         def,
		Pos:         pos,
		Health:      def.Health,
		MoraleMilli: def.Morale,
	}
	if u.MoraleMilli <= 0 {
		u.MoraleMilli = b.cfg.Tuning.Morale.Max
	}
	for _, wid := range def.Weapons {
		wd := b.cats.Weapons.ByID[wid]
		ammo := wd.Ammo
		if ammo <= 0 {
			ammo = -1 // unlimited; 0 is reserved for "empty"
		}
		u.Weapons = append(u.Weapons, WeaponState{Def: wd, Ammo: ammo})
	}
	b.units[u.ID] = u
	b.rebuildIndex()
	return u, nil
}

func dist2(a, c protocol.Vec2) float64 {
	dx := a.X - c.X
	dy := a.Y - c.Y
	return dx*dx + dy*dy
}

func dist(a, c protocol.Vec2) float64 {
	return math.Sqrt(dist2(a, c))
}
