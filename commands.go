package server

import (
	"context"
	"time"

	"garden-siege/server/lobby"
	"garden-siege/server/logging"
)

type CommandType string

const (
	CommandPlacePlant  CommandType = "place_plant"
	CommandSpawnZombie CommandType = "spawn_zombie"
	CommandConcede     CommandType = "concede"
)

// Command is one buffered player action. Role is stamped by the hub from the
// issuing connection, never trusted from the wire.
type Command struct {
	Type CommandType `json:"type"`
	Role lobby.Role  `json:"-"`
	Kind string      `json:"kind,omitempty"`
	Row  int         `json:"row,omitempty"`
	Col  int         `json:"col,omitempty"`
	Lane int         `json:"lane,omitempty"`
}

// applyCommand executes a single buffered command inside the tick. Invalid
// commands are dropped; the sender learns the result from the event stream.
func (w *World) applyCommand(cmd Command, now time.Time) {
	if w.ended {
		return
	}
	switch cmd.Type {
	case CommandPlacePlant:
		if cmd.Role == lobby.RolePlants {
			w.placePlant(PlantKind(cmd.Kind), cmd.Row, cmd.Col, now)
		}
	case CommandSpawnZombie:
		if cmd.Role == lobby.RoleZombies {
			w.spawnZombie(ZombieKind(cmd.Kind), cmd.Lane, now)
		}
	case CommandConcede:
		if cmd.Role.Valid() {
			w.finish(cmd.Role.Complement(), "opponent conceded")
		}
	default:
		w.publisher.Publish(context.Background(), logging.Event{
			Type:     logging.EventType("command_rejected"),
			Tick:     w.currentTick,
			Severity: logging.SeverityWarn,
			Category: logging.CategorySystem,
			Actor:    logging.EntityRef{Kind: logging.EntityKindParticipant},
			Extra:    map[string]any{"commandType": string(cmd.Type)},
		})
	}
}

// placePlant resolves a tile placement: vacant tiles grow a new plant,
// same-kind placement restores the occupant to full health, and fusion pairs
// replace the occupant with the upgraded kind. The debit, the grid mutation,
// and the broadcast all land in the same tick or not at all.
func (w *World) placePlant(kind PlantKind, row, col int, now time.Time) {
	spec := w.plantSpecs[kind]
	if spec == nil {
		return
	}
	outcome, resultKind, occupant := w.resolvePlacement(row, col, kind)
	if outcome == placeRejected {
		return
	}
	pool := w.pools[lobby.RolePlants]
	if pool == nil || pool.balance < spec.Cost {
		w.spend(pool, spec.Cost) // emits the rejection
		return
	}
	if w.onCooldown(lobby.RolePlants, string(kind), spec.Cooldown, now) {
		return
	}
	w.spend(pool, spec.Cost)

	switch outcome {
	case placeVacant:
		p := w.newPlant(kind, row, col, now)
		w.plants[p.ID] = p
		w.grid.occupy(row, col, p.ID)
		w.queueSpawnEvent(p.ID, string(p.Kind), p.Lane, p.X, p.Health, p.MaxHealth, "")
	case placeRestored:
		occupant.Health = occupant.MaxHealth
		w.queueHealthEvent(occupant.ID, string(occupant.Kind), occupant.Health, occupant.MaxHealth)
	case placeFused:
		delete(w.plants, occupant.ID)
		w.grid.clear(row, col, occupant.ID)
		fused := w.newPlant(resultKind, row, col, now)
		w.plants[fused.ID] = fused
		w.grid.occupy(row, col, fused.ID)
		w.queueSpawnEvent(fused.ID, string(fused.Kind), fused.Lane, fused.X,
			fused.Health, fused.MaxHealth, occupant.ID)
	}
}

// spawnZombie drops a new attacker at the right edge of the chosen lane.
func (w *World) spawnZombie(kind ZombieKind, lane int, now time.Time) {
	spec := w.zombieSpecs[kind]
	if spec == nil || lane < 0 || lane >= laneCount {
		return
	}
	pool := w.pools[lobby.RoleZombies]
	if pool == nil || pool.balance < spec.Cost {
		w.spend(pool, spec.Cost)
		return
	}
	if w.onCooldown(lobby.RoleZombies, string(kind), spec.Cooldown, now) {
		return
	}
	w.spend(pool, spec.Cost)

	z := w.newZombie(kind, lane, now)
	w.zombies[z.ID] = z
	w.queueSpawnEvent(z.ID, string(z.Kind), z.Lane, z.X, z.Health, z.MaxHealth, "")
}
