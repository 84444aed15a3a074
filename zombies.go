package server

import (
	"time"

	"garden-siege/server/lobby"
)

// advanceZombies walks every live zombie toward the defeat line. A zombie
// with a live plant directly ahead stops and bites on its cadence instead of
// moving; the bite timer keeps sliding forward while the zombie walks so the
// first bite never lands instantly on contact.
func (w *World) advanceZombies(now time.Time, dt float64) {
	for _, z := range w.zombies {
		if z.dying {
			continue
		}

		blocker := w.blockingPlant(z)
		if blocker != nil {
			if !now.Before(z.nextBiteAt) {
				z.nextBiteAt = now.Add(z.spec.BiteInterval)
				if !z.frozen {
					w.damagePlant(blocker, z.spec.BiteDamage, z.ID, now)
				}
			}
			continue
		}

		z.X -= z.effectiveSpeed() * dt
		z.nextBiteAt = now.Add(z.spec.BiteInterval)

		if z.X <= defeatLineX {
			z.X = defeatLineX
			w.finish(lobby.RoleZombies, "defenses breached")
			return
		}
	}
}

// blockingPlant returns the live plant within the probe distance ahead of the
// zombie on its lane, or nil when the path is clear.
func (w *World) blockingPlant(z *zombieState) *plantState {
	var closest *plantState
	best := blockProbeDistance + 1
	for _, p := range w.plants {
		if p.dying || p.Lane != z.Lane {
			continue
		}
		dist := z.X - p.X
		if dist < 0 || dist > blockProbeDistance {
			continue
		}
		if dist < best {
			best = dist
			closest = p
		}
	}
	return closest
}
