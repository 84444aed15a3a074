package server

import (
	"testing"
	"time"
)

func TestPeaHitsFirstZombieOnLane(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	p := addPlant(w, PlantPeashooter, 2, 0, now)
	front := addZombie(w, ZombieBasic, 2, p.X+1.0, now)
	back := addZombie(w, ZombieBasic, 2, p.X+3.0, now)

	w.spawnProjectile(p, now)

	// One second of travel at speed 5 passes the front zombie.
	w.advanceProjectiles(now, 0.2)

	if front.Health != front.MaxHealth-pea.Damage {
		t.Fatalf("front zombie health = %v, want %v", front.Health, front.MaxHealth-pea.Damage)
	}
	if back.Health != back.MaxHealth {
		t.Fatalf("shot should stop at the first zombie")
	}
	if len(w.projectiles) != 0 {
		t.Fatalf("shot not consumed on impact")
	}
}

func TestLateTickShotStillHits(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	p := addPlant(w, PlantPeashooter, 2, 0, now)
	z := addZombie(w, ZombieBasic, 2, p.X+1.0, now)

	w.spawnProjectile(p, now)

	// Half a second at speed 5 carries the shot well past the zombie in a
	// single step; the hit test covers the whole span.
	w.advanceProjectiles(now, 0.5)

	if z.Health != z.MaxHealth-pea.Damage {
		t.Fatalf("zombie health = %v, want %v", z.Health, z.MaxHealth-pea.Damage)
	}
	if len(w.projectiles) != 0 {
		t.Fatalf("shot not consumed on impact")
	}
}

func TestProjectileIgnoresOtherLanes(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	p := addPlant(w, PlantPeashooter, 2, 0, now)
	other := addZombie(w, ZombieBasic, 1, p.X+1.0, now)

	w.spawnProjectile(p, now)
	w.advanceProjectiles(now, 0.2)

	if other.Health != other.MaxHealth {
		t.Fatalf("shot crossed lanes")
	}
	if len(w.projectiles) != 1 {
		t.Fatalf("shot should continue flying")
	}
}

func TestFireProjectileDoublesDamage(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	z := addZombie(w, ZombieBasic, 0, 2.0, now)

	w.projectiles = append(w.projectiles, &projectileState{
		Entity:  Entity{ID: "shot-test", Lane: 0, X: 1.8},
		spec:    ProjectileSpec{Speed: 5, Damage: 20, Fire: true},
		OwnerID: "plant-test",
	})
	w.advanceProjectiles(now, 0.01)

	if z.Health != z.MaxHealth-40 {
		t.Fatalf("health = %v, want fire to deal double damage", z.Health)
	}
}

func TestSnowPeaShotSlowsTarget(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	p := addPlant(w, PlantSnowPea, 1, 0, now)
	z := addZombie(w, ZombieBasic, 1, p.X+0.5, now)

	w.spawnProjectile(p, now)
	w.advanceProjectiles(now, 0.1)

	if z.multiplier != 1-p.spec.Projectile.SlowMagnitude {
		t.Fatalf("multiplier = %v, want %v", z.multiplier, 1-p.spec.Projectile.SlowMagnitude)
	}
	entry, ok := z.slows[p.ID]
	if !ok {
		t.Fatalf("slow entry missing for the firing plant")
	}
	if got := entry.ExpiresAt.Sub(now); got != p.spec.Projectile.SlowDuration {
		t.Fatalf("slow duration = %v, want %v", got, p.spec.Projectile.SlowDuration)
	}
}

func TestSplashDamagesNearbyZombies(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	target := addZombie(w, ZombieBasic, 2, 2.0, now)
	nearby := addZombie(w, ZombieBasic, 3, 2.2, now)
	distant := addZombie(w, ZombieBasic, 0, 2.0, now)

	w.projectiles = append(w.projectiles, &projectileState{
		Entity:  Entity{ID: "shot-test", Lane: 2, X: 1.8},
		spec:    ProjectileSpec{Speed: 5, Damage: 20, SplashRadius: 1.5},
		OwnerID: "plant-test",
	})
	w.advanceProjectiles(now, 0.01)

	if target.Health != target.MaxHealth-20 {
		t.Fatalf("target health = %v", target.Health)
	}
	if nearby.Health != nearby.MaxHealth-20 {
		t.Fatalf("splash missed the adjacent lane: %v", nearby.Health)
	}
	if distant.Health != distant.MaxHealth {
		t.Fatalf("splash reached %v lanes away", distant.Lane-target.Lane)
	}
}

func TestProjectileDespawnsPastBoardEdge(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	w.projectiles = append(w.projectiles, &projectileState{
		Entity: Entity{ID: "shot-test", Lane: 4, X: zombieSpawnX - 0.1},
		spec:   ProjectileSpec{Speed: 5, Damage: 20},
	})

	w.advanceProjectiles(now, 0.5)
	if len(w.projectiles) != 0 {
		t.Fatalf("off-board shot still alive")
	}

	events := w.flushEvents()
	var removed bool
	for _, ev := range events {
		if ev.Type == EventEntityRemoved && ev.Entity != nil && ev.Entity.ID == "shot-test" {
			removed = true
		}
	}
	if !removed {
		t.Fatalf("no removal broadcast for the despawned shot")
	}
}
