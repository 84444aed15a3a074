package server

import (
	"testing"
	"time"

	"garden-siege/server/lobby"
)

func newTestHub(now time.Time) *Hub {
	h := NewHub(WorldConfig{Seed: "test", SunStart: 500, BrainStart: 500}, nil)
	h.SetClock(func() time.Time { return now })
	return h
}

func TestMatchStartsOnlyWhenBothSidesConnect(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	h := newTestHub(now)

	h.MarkConnected(lobby.RolePlants)
	if h.world.started {
		t.Fatalf("match started with one side connected")
	}

	h.MarkConnected(lobby.RoleZombies)
	if !h.world.started {
		t.Fatalf("match did not start with both sides connected")
	}
	if got := h.world.endsAt; !got.Equal(now.Add(matchTimeLimit)) {
		t.Fatalf("match deadline = %v, want %v", got, now.Add(matchTimeLimit))
	}
}

func TestMarkConnectedIgnoresInvalidRole(t *testing.T) {
	t.Parallel()

	h := newTestHub(time.UnixMilli(1_700_000_000))
	h.MarkConnected(lobby.RoleNone)
	h.MarkConnected(lobby.Role("gardener"))
	if len(h.connected) != 0 {
		t.Fatalf("invalid roles recorded: %v", h.connected)
	}
}

func TestEnqueueStampsIssuerRole(t *testing.T) {
	t.Parallel()

	h := newTestHub(time.UnixMilli(1_700_000_000))

	forged := Command{Type: CommandSpawnZombie, Role: lobby.RolePlants, Kind: string(ZombieBasic), Lane: 2}
	if !h.Enqueue(lobby.RoleZombies, forged) {
		t.Fatalf("enqueue rejected under capacity")
	}
	if got := h.commands[0].Role; got != lobby.RoleZombies {
		t.Fatalf("stored role = %q, want the connection's role", got)
	}
}

func TestCommandQueueIsBounded(t *testing.T) {
	t.Parallel()

	h := newTestHub(time.UnixMilli(1_700_000_000))
	cmd := Command{Type: CommandPlacePlant, Kind: string(PlantPeashooter)}

	for i := 0; i < commandQueueCap; i++ {
		if !h.Enqueue(lobby.RolePlants, cmd) {
			t.Fatalf("enqueue %d rejected under capacity", i)
		}
	}
	if h.Enqueue(lobby.RolePlants, cmd) {
		t.Fatalf("enqueue accepted past capacity")
	}
	if len(h.commands) != commandQueueCap {
		t.Fatalf("queue length = %d, want %d", len(h.commands), commandQueueCap)
	}
}

func TestStepDrainsCommandsIntoTheTick(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	h := newTestHub(now)
	h.MarkConnected(lobby.RolePlants)
	h.MarkConnected(lobby.RoleZombies)

	h.Enqueue(lobby.RolePlants, Command{Type: CommandPlacePlant, Kind: string(PlantPeashooter), Row: 1, Col: 3})
	events := h.Step(now.Add(tickStep), tickStep.Seconds())

	if len(h.commands) != 0 {
		t.Fatalf("commands left in the buffer after a step")
	}
	var spawned bool
	for _, ev := range events {
		if ev.Type == EventEntitySpawned && ev.Entity != nil && ev.Entity.Kind == string(PlantPeashooter) {
			spawned = true
		}
	}
	if !spawned {
		t.Fatalf("placement command produced no spawn broadcast: %+v", events)
	}
	if len(h.world.plants) != 1 {
		t.Fatalf("world holds %d plants, want 1", len(h.world.plants))
	}
}

func TestDisconnectMidMatchForfeits(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	h := newTestHub(now)
	h.MarkConnected(lobby.RolePlants)
	h.MarkConnected(lobby.RoleZombies)

	h.Disconnect(lobby.RolePlants)

	ended, winner, cause := h.Ended()
	if !ended {
		t.Fatalf("losing a peer mid-match did not end it")
	}
	if winner != lobby.RoleZombies {
		t.Fatalf("forfeit winner = %q, want %q", winner, lobby.RoleZombies)
	}
	if cause != "peer disconnected" {
		t.Fatalf("forfeit cause = %q", cause)
	}
}

func TestDisconnectBeforeStartIsNotAForfeit(t *testing.T) {
	t.Parallel()

	h := newTestHub(time.UnixMilli(1_700_000_000))
	h.MarkConnected(lobby.RolePlants)
	h.Disconnect(lobby.RolePlants)

	if ended, _, _ := h.Ended(); ended {
		t.Fatalf("pre-match disconnect ended a match that never started")
	}
	if h.connected[lobby.RolePlants] {
		t.Fatalf("disconnected side still marked connected")
	}
}

func TestDisconnectAfterEndDoesNotRewriteOutcome(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	h := newTestHub(now)
	h.MarkConnected(lobby.RolePlants)
	h.MarkConnected(lobby.RoleZombies)

	h.Enqueue(lobby.RoleZombies, Command{Type: CommandConcede})
	h.Step(now.Add(tickStep), tickStep.Seconds())
	h.Disconnect(lobby.RoleZombies)

	_, winner, cause := h.Ended()
	if winner != lobby.RolePlants || cause != "opponent conceded" {
		t.Fatalf("outcome rewritten to %q / %q", winner, cause)
	}
}
