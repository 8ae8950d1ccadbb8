package battle

import (
	"steelfront.dev/internal/protocol"
)

// applyCommands runs the tick's released commands in scheduler order.
// Commands referencing units that no longer exist are no-ops: every peer
// observes the same entity lifecycle, so every peer reaches the same no-op
// decision without coordination.
func (b *Battle) applyCommands(cmds []protocol.Command) {
	for _, c := range cmds {
		b.applyCommand(c)
	}
}

func (b *Battle) applyCommand(c protocol.Command) {
	switch c.Type {
	case protocol.CmdMove:
		b.orderEach(c, Order{Kind: OrderMove, Target: *c.Target})
	case protocol.CmdFastMove:
		b.orderEach(c, Order{Kind: OrderMove, Target: *c.Target, Fast: true})
	case protocol.CmdReverse:
		b.orderEach(c, Order{Kind: OrderMove, Target: *c.Target, Reverse: true})
	case protocol.CmdAttack:
		b.orderEach(c, Order{Kind: OrderAttack, TargetID: c.TargetID})
	case protocol.CmdAttackMove:
		b.orderEach(c, Order{Kind: OrderAttackMove, Target: *c.Target})
	case protocol.CmdStop:
		for _, u := range b.ownedUnits(c) {
			u.Orders = nil
		}
	case protocol.CmdGarrison:
		b.orderEach(c, Order{Kind: OrderGarrison, BuildingID: c.BuildingID})
	case protocol.CmdUngarrison:
		for _, u := range b.ownedUnits(c) {
			b.ungarrison(u)
		}
	case protocol.CmdSpawnUnit:
		_, _ = b.spawnUnit(c.PlayerID, c.UnitType, *c.Target)
	case protocol.CmdMount:
		b.orderEach(c, Order{Kind: OrderMount, TransportID: c.TransportID})
	case protocol.CmdUnload:
		for _, u := range b.ownedUnits(c) {
			b.unloadTransport(u)
		}
	case protocol.CmdDigIn:
		for _, u := range b.ownedUnits(c) {
			if u.Def.CanDigIn {
				u.DugIn = *c.Enabled
			}
		}
	case protocol.CmdSetReturnFireOnly:
		for _, u := range b.ownedUnits(c) {
			u.ReturnFireOnly = *c.Enabled
		}
	case protocol.CmdQueueReinforcement:
		b.queueReinforcement(c)
	}
}

// ownedUnits resolves the command's unit references, in command order,
// keeping only live units owned by the issuing player.
func (b *Battle) ownedUnits(c protocol.Command) []*Unit {
	out := make([]*Unit, 0, len(c.UnitIDs))
	for _, id := range c.UnitIDs {
		u := b.units[id]
		if u == nil || !u.Alive() || u.Owner != c.PlayerID {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (b *Battle) orderEach(c protocol.Command, o Order) {
	for _, u := range b.ownedUnits(c) {
		u.setOrders(o, c.Queue)
	}
}

// queueReinforcement spawns the requested archetype at the owner's entry
// point with a move order to the rally target. Any existing units the
// command names are ordered to the same rally, honoring the queue flag.
func (b *Battle) queueReinforcement(c protocol.Command) {
	entry, ok := b.scen.EntryPoints[c.PlayerID]
	if !ok {
		return
	}
	u, err := b.spawnUnit(c.PlayerID, c.UnitType, protocol.Vec2{X: entry.X, Y: entry.Y})
	if err != nil {
		return
	}
	u.Orders = []Order{{Kind: OrderMove, Target: *c.Target}}
	b.orderEach(c, Order{Kind: OrderMove, Target: *c.Target})
}

func (b *Battle) ungarrison(u *Unit) {
	if u.GarrisonedIn == "" {
		return
	}
	bd := b.buildings[u.GarrisonedIn]
	u.GarrisonedIn = ""
	if bd == nil {
		return
	}
	for i, id := range bd.Occupants {
		if id == u.ID {
			bd.Occupants = append(bd.Occupants[:i], bd.Occupants[i+1:]...)
			break
		}
	}
	// Exit at the door: one radius east of the center.
	u.Pos = protocol.Vec2{X: bd.Pos.X + bd.Radius + 1, Y: bd.Pos.Y}
}

// unloadTransport disembarks all passengers next to the transport, in
// boarding order.
func (b *Battle) unloadTransport(t *Unit) {
	if len(t.Passengers) == 0 {
		return
	}
	for i, id := range t.Passengers {
		p := b.units[id]
		if p == nil {
			continue
		}
		p.MountedIn = ""
		p.Pos = protocol.Vec2{X: t.Pos.X + 1 + float64(i), Y: t.Pos.Y}
	}
	t.Passengers = nil
}
