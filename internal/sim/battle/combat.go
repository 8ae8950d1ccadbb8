package battle

import "sort"

// Combat resolution. Firers resolve in ascending unit-ID order and each
// shot consumes exactly three draws (accuracy, penetration, suppression
// crit) whether or not it hits, so the RNG stream position after a tick is
// a pure function of simulation state.

const critChance = 0.1

// systemCombat decrements cooldowns, then resolves fire for every able
// unit.
func (b *Battle) systemCombat() {
	units := b.sortedUnits()

	for _, u := range units {
		for i := range u.Weapons {
			if u.Weapons[i].CooldownTicks > 0 {
				u.Weapons[i].CooldownTicks--
			}
		}
	}

	for _, u := range units {
		if !u.Alive() || u.Routed || u.MountedIn != "" {
			continue
		}
		tgt := b.selectTarget(u)
		if tgt == nil {
			continue
		}
		for i := range u.Weapons {
			w := &u.Weapons[i]
			if w.CooldownTicks > 0 || w.Ammo == 0 {
				continue
			}
			if dist2(u.Pos, tgt.Pos) > sq(w.Def.Range) || !b.hasLOS(u, tgt) {
				continue
			}
			b.resolveShot(u, w, tgt)
		}
	}
}

// selectTarget picks the unit u will engage this tick:
// explicit attack order first, then return fire, then — unless the unit is
// holding fire — the nearest enemy in range with ties broken by ID. A unit
// killed earlier this tick remains a valid target until the end-of-tick
// sweep; the extra damage changes nothing, and both peers waste the same
// draws on it.
func (b *Battle) selectTarget(u *Unit) *Unit {
	if o := u.currentOrder(); o != nil && o.Kind == OrderAttack {
		if tgt := b.units[o.TargetID]; tgt != nil && tgt.MountedIn == "" && tgt.Owner != u.Owner {
			return tgt
		}
	}
	if u.ReturnFireOnly {
		if tgt := b.units[u.LastHitBy]; tgt != nil && tgt.Alive() && tgt.MountedIn == "" && tgt.Owner != u.Owner {
			return tgt
		}
		return nil
	}
	return b.nearestEnemyInRange(u, u.maxWeaponRange())
}

func (b *Battle) nearestEnemyInRange(u *Unit, maxRange float64) *Unit {
	var best *Unit
	bestD := sq(maxRange)
	for _, cand := range b.sortedUnits() {
		if cand.Owner == u.Owner || !cand.Alive() || cand.MountedIn != "" {
			continue
		}
		d := dist2(u.Pos, cand.Pos)
		if d > bestD {
			continue
		}
		if !b.hasLOS(u, cand) {
			continue
		}
		// Strict < keeps the first (lowest) ID on equal distance.
		if best == nil || d < bestD {
			best = cand
			bestD = d
		}
	}
	return best
}

// resolveShot draws accuracy, penetration, and crit, in that order, then
// applies the outcome to the target.
func (b *Battle) resolveShot(u *Unit, w *WeaponState, tgt *Unit) {
	accRoll := b.rng.Next()
	penRoll := b.rng.Next()
	critRoll := b.rng.Next()

	if w.Ammo > 0 {
		w.Ammo--
	}
	cd := w.Def.CooldownTicks
	if cd < 1 {
		cd = 1 // a zero-duration cooldown must not fire again this tick
	}
	w.CooldownTicks = cd

	hitP := w.Def.Accuracy * b.coverModifier(tgt)
	if accRoll >= hitP {
		return // miss
	}

	tgt.hitThisTick = true
	tgt.LastHitBy = u.ID
	tgt.LastThreatPos = u.Pos

	suppr := w.Def.Suppression
	if tgt.DugIn {
		suppr = int(float64(suppr) * b.cfg.Tuning.Combat.DigInSuppressionScale)
	}
	if critRoll < critChance {
		suppr *= 2
	}
	tgt.MoraleMilli -= suppr

	if tgt.Def.Armor > 0 {
		penP := float64(w.Def.Penetration) / float64(w.Def.Penetration+tgt.Def.Armor)
		if penRoll >= penP {
			return // bounced: suppression only
		}
	}
	tgt.Health -= w.Def.Damage
	w.DamageDealt += w.Def.Damage
}

func (b *Battle) coverModifier(tgt *Unit) float64 {
	switch {
	case tgt.GarrisonedIn != "":
		return 1 - b.cfg.Tuning.Combat.GarrisonAccuracyPenalty
	case tgt.DugIn:
		return 1 - b.cfg.Tuning.Combat.DigInAccuracyPenalty
	}
	return 1
}

// hasLOS reports whether the segment between the two units clears every
// building. A building never blocks sight for its own occupants.
func (b *Battle) hasLOS(u, tgt *Unit) bool {
	for _, id := range b.buildingIDs() {
		bd := b.buildings[id]
		if u.GarrisonedIn == bd.ID || tgt.GarrisonedIn == bd.ID {
			continue
		}
		if segmentNear(u.Pos.X, u.Pos.Y, tgt.Pos.X, tgt.Pos.Y, bd.Pos.X, bd.Pos.Y, bd.Radius) {
			return false
		}
	}
	return true
}

func (b *Battle) buildingIDs() []string {
	if len(b.buildings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(b.buildings))
	for id := range b.buildings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// segmentNear reports whether point (px,py) is within r of the segment
// (ax,ay)-(bx,by). Rational arithmetic only, so bit-identical everywhere.
func segmentNear(ax, ay, bx, by, px, py, r float64) bool {
	dx := bx - ax
	dy := by - ay
	len2 := dx*dx + dy*dy
	t := 0.0
	if len2 > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / len2
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	cx := ax + t*dx
	cy := ay + t*dy
	ddx := px - cx
	ddy := py - cy
	return ddx*ddx+ddy*ddy <= r*r
}
