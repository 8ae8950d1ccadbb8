package battle

import "steelfront.dev/internal/protocol"

// Snapshot is the read-only view handed to rendering each tick. It is a
// deep copy: the render side never sees, and can never mutate, live sim
// state. Mutation requests only enter through the command channel.
type Snapshot struct {
	Tick  uint64     `json:"tick"`
	Units []UnitView `json:"units"`
}

type UnitView struct {
	ID        string        `json:"id"`
	Owner     string        `json:"owner"`
	Type      string        `json:"type"`
	Pos       protocol.Vec2 `json:"pos"`
	Health    int           `json:"health"`
	MaxHealth int           `json:"max_health"`
	Morale    int           `json:"morale"`

	Routed         bool   `json:"routed,omitempty"`
	DugIn          bool   `json:"dug_in,omitempty"`
	ReturnFireOnly bool   `json:"return_fire_only,omitempty"`
	GarrisonedIn   string `json:"garrisoned_in,omitempty"`
	MountedIn      string `json:"mounted_in,omitempty"`

	Orders []OrderView     `json:"orders,omitempty"`
	Path   []protocol.Vec2 `json:"path,omitempty"`
}

type OrderView struct {
	Kind     string        `json:"kind"`
	Target   protocol.Vec2 `json:"target"`
	TargetID string        `json:"target_id,omitempty"`
}

func (b *Battle) snapshot(nowTick uint64) Snapshot {
	s := Snapshot{Tick: nowTick, Units: make([]UnitView, 0, len(b.unitIDs))}
	for _, u := range b.sortedUnits() {
		v := UnitView{
			ID:             u.ID,
			Owner:          u.Owner,
			Type:           u.Type,
			Pos:            u.Pos,
			Health:         u.Health,
			MaxHealth:      u.Def.Health,
			Morale:         u.MoraleMilli,
			Routed:         u.Routed,
			DugIn:          u.DugIn,
			ReturnFireOnly: u.ReturnFireOnly,
			GarrisonedIn:   u.GarrisonedIn,
			MountedIn:      u.MountedIn,
		}
		for i := range u.Orders {
			o := &u.Orders[i]
			v.Orders = append(v.Orders, OrderView{Kind: o.Kind.String(), Target: o.Target, TargetID: o.TargetID})
			if i == 0 && o.planned {
				v.Path = append(v.Path, o.path...)
			}
		}
		s.Units = append(s.Units, v)
	}
	return s
}
