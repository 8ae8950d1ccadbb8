package battle

import (
	"steelfront.dev/internal/protocol"
	"steelfront.dev/internal/sim/catalogs"
)

type OrderKind int

const (
	OrderMove OrderKind = iota + 1
	OrderAttack
	OrderAttackMove
	OrderGarrison
	OrderMount
)

func (k OrderKind) String() string {
	switch k {
	case OrderMove:
		return "MOVE"
	case OrderAttack:
		return "ATTACK"
	case OrderAttackMove:
		return "ATTACK_MOVE"
	case OrderGarrison:
		return "GARRISON"
	case OrderMount:
		return "MOUNT"
	}
	return "UNKNOWN"
}

// Order is one entry in a unit's command queue. Orders[0] is the order in
// flight; the rest run after it completes.
type Order struct {
	Kind        OrderKind
	Target      protocol.Vec2
	TargetID    string
	BuildingID  string
	TransportID string
	Fast        bool
	Reverse     bool

	// Remaining waypoints from the pathfinder; filled on first movement.
	path    []protocol.Vec2
	planned bool
}

// WeaponState is the mutable per-weapon slot on a unit. Def order follows
// the unit archetype's weapon list, so iteration order is fixed.
type WeaponState struct {
	Def           catalogs.WeaponDef
	Ammo          int
	CooldownTicks int
	DamageDealt   int
}

// Unit is a simulated entity. Mutated only by the simulation step during
// tick processing; everything rendering sees is a copied Snapshot.
type Unit struct {
	ID    string
	Owner string
	Type  string
	Def   catalogs.UnitDef

	Pos         protocol.Vec2
	Health      int
	MoraleMilli int

	Weapons []WeaponState
	Orders  []Order

	ReturnFireOnly bool
	DugIn          bool
	Routed         bool

	GarrisonedIn string   // building id, "" when in the open
	MountedIn    string   // transport unit id
	Passengers   []string // unit ids riding this transport, boarding order

	// Threat memory for return fire and rout flight. Sim-authoritative,
	// so both fields are digested.
	LastHitBy     string
	LastThreatPos protocol.Vec2

	hitThisTick bool
}

func (u *Unit) Alive() bool { return u.Health > 0 }

// currentOrder returns the in-flight order, or nil when the queue is empty
// (the unit idles).
func (u *Unit) currentOrder() *Order {
	if len(u.Orders) == 0 {
		return nil
	}
	return &u.Orders[0]
}

func (u *Unit) popOrder() {
	if len(u.Orders) > 0 {
		u.Orders = u.Orders[1:]
	}
}

// setOrders applies the queue flag semantics: append after current orders,
// or replace the whole queue.
func (u *Unit) setOrders(o Order, queue bool) {
	if queue {
		u.Orders = append(u.Orders, o)
		return
	}
	u.Orders = []Order{o}
}

func (u *Unit) maxWeaponRange() float64 {
	r := 0.0
	for i := range u.Weapons {
		if u.Weapons[i].Def.Range > r {
			r = u.Weapons[i].Def.Range
		}
	}
	return r
}

// Building is a static garrisonable structure. Buildings are part of the
// scenario, never mutate, and block line of sight for units outside them.
type Building struct {
	ID       string
	Pos      protocol.Vec2
	Radius   float64
	Capacity int

	Occupants []string // unit ids, entry order
}
