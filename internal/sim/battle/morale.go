package battle

// systemMorale clamps and recovers morale, flips rout state, then sweeps
// the dead. Deaths are applied strictly at the end of the tick: a unit
// killed by an earlier firer stays on the field (and targetable) until the
// sweep, so resolution never depends on iteration side effects and each
// death is recorded exactly once.
func (b *Battle) systemMorale() {
	mt := b.cfg.Tuning.Morale

	for _, u := range b.sortedUnits() {
		if !u.Alive() {
			continue
		}
		if !u.hitThisTick && u.MoraleMilli < mt.Max {
			u.MoraleMilli += mt.RecoveryPerTick
		}
		if u.MoraleMilli < 0 {
			u.MoraleMilli = 0
		}
		if u.MoraleMilli > mt.Max {
			u.MoraleMilli = mt.Max
		}
		if !u.Routed && u.MoraleMilli < mt.RoutThresholdMilli {
			u.Routed = true
			u.Orders = nil
		}
		if u.Routed && u.MoraleMilli >= mt.RallyThresholdMilli {
			u.Routed = false
		}
	}

	b.sweepDead()
}

// sweepDead removes every unit at or below zero health and applies the
// nearby-death morale penalty to its surviving friends. Passengers go down
// with their transport.
func (b *Battle) sweepDead() {
	mt := b.cfg.Tuning.Morale

	var dead []string
	seen := map[string]bool{}
	mark := func(id string) {
		if !seen[id] {
			seen[id] = true
			dead = append(dead, id)
		}
	}
	for _, u := range b.sortedUnits() {
		if u.Health <= 0 {
			mark(u.ID)
			for _, pid := range u.Passengers {
				if p := b.units[pid]; p != nil {
					p.Health = 0
					mark(pid)
				}
			}
		}
	}
	if len(dead) == 0 {
		return
	}

	// Penalties first, while positions are still known.
	for _, id := range dead {
		d := b.units[id]
		if d == nil {
			continue
		}
		for _, u := range b.sortedUnits() {
			if u.ID == id || u.Owner != d.Owner || u.Health <= 0 {
				continue
			}
			if dist2(u.Pos, d.Pos) <= sq(float64(mt.NearbyDeathRadius)) {
				u.MoraleMilli -= mt.NearbyDeathPenalty
				if u.MoraleMilli < 0 {
					u.MoraleMilli = 0
				}
			}
		}
	}

	for _, id := range dead {
		d := b.units[id]
		if d == nil {
			continue
		}
		if d.GarrisonedIn != "" {
			if bd := b.buildings[d.GarrisonedIn]; bd != nil {
				for i, oid := range bd.Occupants {
					if oid == id {
						bd.Occupants = append(bd.Occupants[:i], bd.Occupants[i+1:]...)
						break
					}
				}
			}
		}
		delete(b.units, id)
	}
	b.rebuildIndex()
}
