package battle

import "steelfront.dev/internal/protocol"

const arriveEps = 0.25

// systemMovement advances every mobile unit one tick along its in-flight
// order. Units iterate in ascending ID order; a unit that is dead, mounted,
// or garrisoned does not move.
func (b *Battle) systemMovement() {
	dt := 1.0 / float64(b.cfg.Tuning.TickRateHz)
	for _, u := range b.sortedUnits() {
		if !u.Alive() || u.MountedIn != "" || u.GarrisonedIn != "" {
			continue
		}
		if u.Routed {
			b.routFlight(u, dt)
			continue
		}
		o := u.currentOrder()
		if o == nil {
			continue // empty queue: idle
		}
		switch o.Kind {
		case OrderMove:
			if b.followPath(u, o, dt) {
				u.popOrder()
			}
		case OrderAttackMove:
			// Hold whenever an enemy is in weapon range; combat picks the
			// target. Resume the advance once the range is clear.
			if b.nearestEnemyInRange(u, u.maxWeaponRange()) != nil {
				continue
			}
			if b.followPath(u, o, dt) {
				u.popOrder()
			}
		case OrderAttack:
			tgt := b.units[o.TargetID]
			if tgt == nil || !tgt.Alive() || tgt.MountedIn != "" {
				u.popOrder() // target gone: deterministic no-op
				continue
			}
			if dist2(u.Pos, tgt.Pos) <= sq(u.maxWeaponRange()) && b.hasLOS(u, tgt) {
				continue // in range: combat handles the rest
			}
			b.stepToward(u, tgt.Pos, moveScale(b, o))
		case OrderGarrison:
			bd := b.buildings[o.BuildingID]
			if bd == nil || len(bd.Occupants) >= bd.Capacity || !u.Def.CanGarrison {
				u.popOrder()
				continue
			}
			if dist2(u.Pos, bd.Pos) <= sq(bd.Radius+1) {
				u.GarrisonedIn = bd.ID
				bd.Occupants = append(bd.Occupants, u.ID)
				u.Pos = bd.Pos
				u.DugIn = false
				u.popOrder()
				continue
			}
			b.stepToward(u, bd.Pos, moveScale(b, o))
		case OrderMount:
			t := b.units[o.TransportID]
			if t == nil || !t.Alive() || t.Owner != u.Owner || t.Def.Capacity <= len(t.Passengers) {
				u.popOrder()
				continue
			}
			if dist2(u.Pos, t.Pos) <= sq(2.0) {
				u.MountedIn = t.ID
				t.Passengers = append(t.Passengers, u.ID)
				u.Pos = t.Pos
				u.DugIn = false
				u.popOrder()
				continue
			}
			b.stepToward(u, t.Pos, moveScale(b, o))
		}
	}

	// Passengers travel with their transport.
	for _, u := range b.sortedUnits() {
		if u.MountedIn != "" {
			if t := b.units[u.MountedIn]; t != nil {
				u.Pos = t.Pos
			}
		}
	}
}

func sq(v float64) float64 { return v * v }

func moveScale(b *Battle, o *Order) float64 {
	switch {
	case o.Fast:
		return b.cfg.Tuning.Combat.FastMoveSpeedScale
	case o.Reverse:
		return b.cfg.Tuning.Combat.ReverseSpeedScale
	}
	return 1.0
}

// followPath walks the order's waypoint list, planning it on first use.
// Returns true when the final waypoint is reached.
func (b *Battle) followPath(u *Unit, o *Order, dt float64) bool {
	if !o.planned {
		o.path = b.path.FindPath(u.Pos, o.Target)
		o.planned = true
	}
	for len(o.path) > 0 {
		wp := o.path[0]
		if dist2(u.Pos, wp) <= sq(arriveEps) {
			u.Pos = wp
			o.path = o.path[1:]
			continue
		}
		b.moveStep(u, wp, u.Def.Speed*moveScale(b, o)*dt)
		return false
	}
	return true
}

func (b *Battle) stepToward(u *Unit, dest protocol.Vec2, scale float64) {
	dt := 1.0 / float64(b.cfg.Tuning.TickRateHz)
	b.moveStep(u, dest, u.Def.Speed*scale*dt)
}

// moveStep displaces the unit by at most step toward dest. Displacement
// breaks dug-in status.
func (b *Battle) moveStep(u *Unit, dest protocol.Vec2, step float64) {
	d := dist(u.Pos, dest)
	if d <= step || d == 0 {
		u.Pos = dest
	} else {
		u.Pos.X += (dest.X - u.Pos.X) / d * step
		u.Pos.Y += (dest.Y - u.Pos.Y) / d * step
	}
	u.DugIn = false
}

// routFlight moves a routed unit directly away from its last threat.
func (b *Battle) routFlight(u *Unit, dt float64) {
	d := dist(u.Pos, u.LastThreatPos)
	if d == 0 {
		return
	}
	step := u.Def.Speed * b.cfg.Tuning.Combat.RoutedSpeedScale * dt
	u.Pos.X += (u.Pos.X - u.LastThreatPos.X) / d * step
	u.Pos.Y += (u.Pos.Y - u.LastThreatPos.Y) / d * step
	u.DugIn = false
}
