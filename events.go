package server

import "garden-siege/server/lobby"

// EventType tags one broadcast notification. Mirrors apply events in queue
// order; the host never waits for acknowledgement.
type EventType string

const (
	EventEntitySpawned   EventType = "entity_spawned"
	EventEntityHealth    EventType = "entity_health"
	EventEntityDied      EventType = "entity_died"
	EventEntityRemoved   EventType = "entity_removed"
	EventStatusApplied   EventType = "status_applied"
	EventStatusExpired   EventType = "status_expired"
	EventResourceChanged EventType = "resource_changed"
	EventGameEnded       EventType = "game_ended"
)

// Event is one entry in the outbound queue. Exactly one notice field is set,
// matching the type tag.
type Event struct {
	Type     EventType       `json:"type"`
	Tick     uint64          `json:"t"`
	Entity   *EntityNotice   `json:"entity,omitempty"`
	Status   *StatusNotice   `json:"status,omitempty"`
	Resource *ResourceNotice `json:"resource,omitempty"`
	Outcome  *OutcomeNotice  `json:"outcome,omitempty"`
}

// EntityNotice describes a spawn, health change, death, or removal. Replaces
// names the occupant consumed by a fusion so mirrors can swap entities in a
// single frame.
type EntityNotice struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Lane      int     `json:"lane"`
	X         float64 `json:"x"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"maxHealth"`
	Replaces  string  `json:"replaces,omitempty"`
}

// StatusNotice mirrors a slow entry change. Tint carries the strongest active
// magnitude so clients can shade the zombie without tracking every source.
type StatusNotice struct {
	EntityID   string  `json:"entityId"`
	SourceID   string  `json:"sourceId"`
	Magnitude  float64 `json:"magnitude"`
	Multiplier float64 `json:"multiplier"`
	Frozen     bool    `json:"frozen"`
	Tint       float64 `json:"tint"`
}

type ResourceNotice struct {
	Role    string `json:"role"`
	Balance int    `json:"balance"`
}

type OutcomeNotice struct {
	Winner string `json:"winner"`
	Cause  string `json:"cause"`
}

func (w *World) queueEvent(ev Event) {
	ev.Tick = w.currentTick
	w.events = append(w.events, ev)
}

func (w *World) queueSpawnEvent(id, kind string, lane int, x, health, max float64, replaces string) {
	w.queueEvent(Event{Type: EventEntitySpawned, Entity: &EntityNotice{
		ID: id, Kind: kind, Lane: lane, X: x, Health: health, MaxHealth: max, Replaces: replaces,
	}})
}

func (w *World) queueHealthEvent(id, kind string, health, max float64) {
	w.queueEvent(Event{Type: EventEntityHealth, Entity: &EntityNotice{
		ID: id, Kind: kind, Health: health, MaxHealth: max,
	}})
}

func (w *World) queueDeathEvent(id, kind string) {
	w.queueEvent(Event{Type: EventEntityDied, Entity: &EntityNotice{ID: id, Kind: kind}})
}

func (w *World) queueRemovedEvent(id, kind string) {
	w.queueEvent(Event{Type: EventEntityRemoved, Entity: &EntityNotice{ID: id, Kind: kind}})
}

func (w *World) queueStatusEvent(z *zombieState, sourceID string, magnitude float64, applied bool) {
	eventType := EventStatusApplied
	if !applied {
		eventType = EventStatusExpired
	}
	w.queueEvent(Event{Type: eventType, Status: &StatusNotice{
		EntityID:   z.ID,
		SourceID:   sourceID,
		Magnitude:  magnitude,
		Multiplier: z.multiplier,
		Frozen:     z.frozen,
		Tint:       z.strongestSlow(),
	}})
}

func (w *World) queueResourceEvent(pool *resourcePool) {
	w.queueEvent(Event{Type: EventResourceChanged, Resource: &ResourceNotice{
		Role: string(pool.role), Balance: pool.balance,
	}})
}

func (w *World) queueOutcomeEvent(winner lobby.Role, cause string) {
	w.queueEvent(Event{Type: EventGameEnded, Outcome: &OutcomeNotice{
		Winner: string(winner), Cause: cause,
	}})
}
