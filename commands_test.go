package server

import (
	"testing"
	"time"

	"garden-siege/server/lobby"
)

func findSpawn(events []Event, kind string) *EntityNotice {
	for _, ev := range events {
		if ev.Type == EventEntitySpawned && ev.Entity != nil && ev.Entity.Kind == kind {
			return ev.Entity
		}
	}
	return nil
}

func TestPlacePlantOnVacantTile(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.placePlant(PlantPeashooter, 2, 3, now)

	occupantID := w.grid.occupant(2, 3)
	if occupantID == "" {
		t.Fatalf("tile not occupied after placement")
	}
	p := w.plants[occupantID]
	if p == nil || p.Kind != PlantPeashooter {
		t.Fatalf("placed plant missing or wrong kind: %+v", p)
	}
	if p.X != tileCenterX(3) || p.Lane != 2 {
		t.Fatalf("plant at lane %d x %v, want lane 2 x %v", p.Lane, p.X, tileCenterX(3))
	}

	wantBalance := 500 - w.plantSpecs[PlantPeashooter].Cost
	if got := w.pools[lobby.RolePlants].Balance(); got != wantBalance {
		t.Fatalf("balance = %d, want %d", got, wantBalance)
	}
	if notice := findSpawn(w.flushEvents(), string(PlantPeashooter)); notice == nil {
		t.Fatalf("no spawn broadcast for the placement")
	}
}

func TestPlacementRejectedOutOfBounds(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.placePlant(PlantPeashooter, laneCount, 0, now)
	w.placePlant(PlantPeashooter, 0, columnCount, now)
	w.placePlant(PlantPeashooter, -1, 0, now)

	if len(w.plants) != 0 {
		t.Fatalf("out-of-bounds placement created %d plants", len(w.plants))
	}
	if got := w.pools[lobby.RolePlants].Balance(); got != 500 {
		t.Fatalf("rejected placement changed the balance to %d", got)
	}
}

func TestPlacementRejectedWhenUnaffordable(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)
	w.pools[lobby.RolePlants].balance = 10

	w.placePlant(PlantPeashooter, 2, 3, now)

	if len(w.plants) != 0 {
		t.Fatalf("unaffordable placement still created a plant")
	}
	if got := w.pools[lobby.RolePlants].Balance(); got != 10 {
		t.Fatalf("partial debit happened: balance %d", got)
	}
	if w.grid.occupant(2, 3) != "" {
		t.Fatalf("tile occupied despite rejection")
	}
}

func TestSameKindPlacementRestoresHealth(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.placePlant(PlantWallnut, 1, 2, now)
	id := w.grid.occupant(1, 2)
	p := w.plants[id]
	w.damagePlant(p, 1500, "zombie-test", now)
	if p.Health != p.MaxHealth-1500 {
		t.Fatalf("setup damage missing")
	}

	// The wallnut cooldown must have lapsed before re-placing.
	later := now.Add(w.plantSpecs[PlantWallnut].Cooldown + time.Second)
	balanceBefore := w.pools[lobby.RolePlants].Balance()
	w.placePlant(PlantWallnut, 1, 2, later)

	if w.grid.occupant(1, 2) != id {
		t.Fatalf("restoration replaced the entity")
	}
	if p.Health != p.MaxHealth {
		t.Fatalf("health = %v, want full restore to %v", p.Health, p.MaxHealth)
	}
	wantBalance := balanceBefore - w.plantSpecs[PlantWallnut].Cost
	if got := w.pools[lobby.RolePlants].Balance(); got != wantBalance {
		t.Fatalf("restoration should cost the full price: balance %d, want %d", got, wantBalance)
	}
}

func TestFusionReplacesOccupantAtomically(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.placePlant(PlantPeashooter, 2, 3, now)
	oldID := w.grid.occupant(2, 3)
	w.flushEvents()

	later := now.Add(time.Minute)
	w.placePlant(PlantWinterMint, 2, 3, later)

	newID := w.grid.occupant(2, 3)
	if newID == "" || newID == oldID {
		t.Fatalf("fusion did not swap the occupant: %q -> %q", oldID, newID)
	}
	if _, ok := w.plants[oldID]; ok {
		t.Fatalf("consumed plant still exists")
	}
	fused := w.plants[newID]
	if fused == nil || fused.Kind != PlantSnowPea {
		t.Fatalf("fusion result = %+v, want %q", fused, PlantSnowPea)
	}
	if fused.Health != fused.MaxHealth {
		t.Fatalf("fused plant spawned damaged: %v", fused.Health)
	}

	notice := findSpawn(w.flushEvents(), string(PlantSnowPea))
	if notice == nil {
		t.Fatalf("no spawn broadcast for the fusion")
	}
	if notice.Replaces != oldID {
		t.Fatalf("spawn notice replaces %q, want %q", notice.Replaces, oldID)
	}
}

func TestUnknownPairingRejected(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.placePlant(PlantWallnut, 2, 3, now)
	id := w.grid.occupant(2, 3)
	balance := w.pools[lobby.RolePlants].Balance()

	w.placePlant(PlantBonkChoy, 2, 3, now.Add(time.Minute))

	if w.grid.occupant(2, 3) != id {
		t.Fatalf("unfusable pairing changed the tile")
	}
	if got := w.pools[lobby.RolePlants].Balance(); got != balance {
		t.Fatalf("rejected pairing debited the pool: %d -> %d", balance, got)
	}
}

func TestCooldownBlocksRapidPlacement(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.placePlant(PlantPeashooter, 0, 0, now)
	w.placePlant(PlantPeashooter, 0, 1, now.Add(time.Second))

	if len(w.plants) != 1 {
		t.Fatalf("second placement inside the cooldown succeeded")
	}

	w.placePlant(PlantPeashooter, 0, 1, now.Add(w.plantSpecs[PlantPeashooter].Cooldown+2*time.Second))
	if len(w.plants) != 2 {
		t.Fatalf("placement after the cooldown failed")
	}
}

func TestSpawnZombieDebitsBrains(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.spawnZombie(ZombieBasic, 3, now)

	if len(w.zombies) != 1 {
		t.Fatalf("zombies = %d, want 1", len(w.zombies))
	}
	for _, z := range w.zombies {
		if z.Lane != 3 || z.X != zombieSpawnX {
			t.Fatalf("zombie at lane %d x %v, want lane 3 x %v", z.Lane, z.X, zombieSpawnX)
		}
	}
	want := 500 - w.zombieSpecs[ZombieBasic].Cost
	if got := w.pools[lobby.RoleZombies].Balance(); got != want {
		t.Fatalf("balance = %d, want %d", got, want)
	}
}

func TestSpawnZombieRejectsBadLane(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.spawnZombie(ZombieBasic, laneCount, now)
	w.spawnZombie(ZombieBasic, -1, now)

	if len(w.zombies) != 0 {
		t.Fatalf("invalid lanes produced %d zombies", len(w.zombies))
	}
	if got := w.pools[lobby.RoleZombies].Balance(); got != 500 {
		t.Fatalf("balance = %d, want untouched 500", got)
	}
}

func TestCommandRoleGating(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	// The zombie side cannot place plants, and vice versa.
	w.applyCommand(Command{Type: CommandPlacePlant, Role: lobby.RoleZombies,
		Kind: string(PlantPeashooter), Row: 0, Col: 0}, now)
	w.applyCommand(Command{Type: CommandSpawnZombie, Role: lobby.RolePlants,
		Kind: string(ZombieBasic), Lane: 0}, now)

	if len(w.plants) != 0 || len(w.zombies) != 0 {
		t.Fatalf("cross-role commands executed: %d plants, %d zombies", len(w.plants), len(w.zombies))
	}
}

func TestConcedeAwardsOpponent(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	w := newTestWorld(now)

	w.applyCommand(Command{Type: CommandConcede, Role: lobby.RolePlants}, now)

	if !w.ended {
		t.Fatalf("concede did not end the match")
	}
	if w.winner != lobby.RoleZombies {
		t.Fatalf("winner = %q, want %q", w.winner, lobby.RoleZombies)
	}
}
