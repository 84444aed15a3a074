package server

import (
	"fmt"
	"time"
)

func (w *World) spawnProjectile(p *plantState, now time.Time) {
	w.nextProjectileID++
	shot := &projectileState{
		Entity: Entity{
			ID:   fmt.Sprintf("shot-%d", w.nextProjectileID),
			Lane: p.Lane,
			X:    p.X,
		},
		spec:    p.spec.Projectile,
		OwnerID: p.ID,
	}
	w.projectiles = append(w.projectiles, shot)
	w.queueSpawnEvent(shot.ID, "projectile", shot.Lane, shot.X, 0, 0, "")
}

// advanceProjectiles moves every shot toward the zombie side and resolves the
// first overlap on its lane. Shots leaving the board despawn silently.
func (w *World) advanceProjectiles(now time.Time, dt float64) {
	alive := w.projectiles[:0]
	for _, shot := range w.projectiles {
		prevX := shot.X
		shot.X += shot.spec.Speed * dt
		target := w.projectileHit(shot, prevX)
		if target != nil {
			w.resolveImpact(shot, target, now)
			w.queueRemovedEvent(shot.ID, "projectile")
			continue
		}
		if shot.X > zombieSpawnX {
			w.queueRemovedEvent(shot.ID, "projectile")
			continue
		}
		alive = append(alive, shot)
	}
	w.projectiles = alive
}

// projectileHit returns the nearest live zombie on the shot's lane within the
// span the shot covered this tick, or nil. Testing the whole span keeps a
// fast shot from passing through a zombie on a late tick.
func (w *World) projectileHit(shot *projectileState, prevX float64) *zombieState {
	var hit *zombieState
	for _, z := range w.zombies {
		if z.dying || z.Lane != shot.Lane {
			continue
		}
		if z.X < prevX-projectileHitRadius || z.X > shot.X+projectileHitRadius {
			continue
		}
		if hit == nil || z.X < hit.X {
			hit = z
		}
	}
	return hit
}

// resolveImpact applies the shot's payload: base damage (doubled for fire
// shots), an optional slow, and optional splash to zombies near the target.
func (w *World) resolveImpact(shot *projectileState, target *zombieState, now time.Time) {
	damage := shot.spec.Damage
	if shot.spec.Fire {
		damage *= 2
	}
	if shot.spec.SlowMagnitude > 0 {
		w.applySlow(target, shot.OwnerID, shot.spec.SlowMagnitude, shot.spec.SlowDuration, now)
	}
	w.damageZombie(target, damage, shot.OwnerID, now)

	if shot.spec.SplashRadius <= 0 {
		return
	}
	for _, z := range w.zombies {
		if z == target || z.dying {
			continue
		}
		if boardDistance(target.Lane, target.X, z.Lane, z.X) <= shot.spec.SplashRadius {
			w.damageZombie(z, shot.spec.Damage, shot.OwnerID, now)
		}
	}
}
