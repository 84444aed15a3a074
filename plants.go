package server

import (
	"math"
	"time"

	"garden-siege/server/lobby"
)

func (w *World) advancePlants(now time.Time, dt float64) {
	for _, p := range w.plants {
		if p.dying {
			continue
		}
		switch p.spec.Behavior {
		case BehaviorShooter:
			w.advanceShooter(p, now)
		case BehaviorMelee:
			w.advanceMelee(p, now)
		case BehaviorMine:
			w.advanceMine(p, now)
		case BehaviorChiller:
			w.advanceChiller(p, now)
		case BehaviorProducer:
			w.advanceProducer(p, now)
		}
	}
}

// advanceShooter scans the lane on the plant's cadence and, on detection,
// schedules a burst. Pending burst shots fire on their own shorter timer.
func (w *World) advanceShooter(p *plantState, now time.Time) {
	if p.pendingShots > 0 && !now.Before(p.nextShotAt) {
		w.spawnProjectile(p, now)
		p.pendingShots--
		p.nextShotAt = now.Add(p.spec.BurstDelay)
	}
	if now.Before(p.nextAttackAt) {
		return
	}
	p.nextAttackAt = now.Add(p.spec.AttackInterval)
	if !w.zombieAhead(p.Lane, p.X, p.spec.DetectionRange) {
		return
	}
	w.spawnProjectile(p, now)
	if p.spec.BurstCount > 1 {
		p.pendingShots = p.spec.BurstCount - 1
		p.nextShotAt = now.Add(p.spec.BurstDelay)
	}
}

func (w *World) advanceMelee(p *plantState, now time.Time) {
	if now.Before(p.nextAttackAt) {
		return
	}
	p.nextAttackAt = now.Add(p.spec.AttackInterval)
	target := w.nearestZombieWithin(p.Lane, p.X, p.spec.MeleeRange)
	if target == nil {
		return
	}
	w.damageZombie(target, p.spec.MeleeDamage, p.ID, now)
}

// advanceMine walks the dormant -> armed -> detonating phase sequence. The
// blast hits every zombie within the radius, across lanes.
func (w *World) advanceMine(p *plantState, now time.Time) {
	switch p.phase {
	case mineDormant:
		if !now.Before(p.armAt) {
			p.phase = mineArmed
		}
	case mineArmed:
		if trigger := w.nearestZombieWithin(p.Lane, p.X, blockProbeDistance); trigger != nil {
			p.phase = mineDetonating
			p.detonateAt = now.Add(p.spec.DetonateDelay)
		}
	case mineDetonating:
		if now.Before(p.detonateAt) {
			return
		}
		for _, z := range w.zombies {
			if z.dying {
				continue
			}
			if boardDistance(p.Lane, p.X, z.Lane, z.X) <= p.spec.BlastRadius {
				w.damageZombie(z, p.spec.BlastDamage, p.ID, now)
			}
		}
		w.killPlant(p, now)
	}
}

// advanceChiller runs the winter-mint sequence: freeze everything, then when
// the freeze lapses apply the follow-up slow and expire.
func (w *World) advanceChiller(p *plantState, now time.Time) {
	if now.Before(p.chillNextAt) {
		return
	}
	switch p.chill {
	case chillFreezing:
		for _, z := range w.zombies {
			if !z.dying {
				w.applySlow(z, p.ID+"/freeze", fullStunMagnitude, p.spec.FreezeDuration, now)
			}
		}
		p.chill = chillSlowing
		p.chillNextAt = now.Add(p.spec.FreezeDuration)
	case chillSlowing:
		for _, z := range w.zombies {
			if !z.dying {
				w.applySlow(z, p.ID+"/slow", p.spec.SlowMagnitude, p.spec.SlowDuration, now)
			}
		}
		p.chill = chillSpent
		w.killPlant(p, now)
	}
}

func (w *World) advanceProducer(p *plantState, now time.Time) {
	if now.Before(p.nextProduceAt) {
		return
	}
	p.nextProduceAt = now.Add(w.produceInterval(p.spec))
	w.credit(w.pools[lobby.RolePlants], p.spec.ProduceAmount)
}

// zombieAhead reports whether any live zombie sits to the plant's right on
// its lane within range.
func (w *World) zombieAhead(lane int, x, detectionRange float64) bool {
	for _, z := range w.zombies {
		if z.dying || z.Lane != lane {
			continue
		}
		if z.X > x && z.X-x <= detectionRange {
			return true
		}
	}
	return false
}

// nearestZombieWithin returns the closest live zombie on the lane within
// reach on either side, or nil.
func (w *World) nearestZombieWithin(lane int, x, reach float64) *zombieState {
	var nearest *zombieState
	best := reach + 1
	for _, z := range w.zombies {
		if z.dying || z.Lane != lane {
			continue
		}
		dist := z.X - x
		if dist < 0 {
			dist = -dist
		}
		if dist <= reach && dist < best {
			best = dist
			nearest = z
		}
	}
	return nearest
}

func boardDistance(laneA int, xA float64, laneB int, xB float64) float64 {
	dx := xA - xB
	dy := float64(laneA-laneB) * tileSize
	return math.Sqrt(dx*dx + dy*dy)
}
