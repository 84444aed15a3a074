package combat

import (
	"context"

	"garden-siege/server/logging"
)

const (
	// EventDamage is emitted when an entity's health is reduced.
	EventDamage logging.EventType = "combat.damage"
	// EventDeath is emitted when an entity reaches zero health.
	EventDeath logging.EventType = "combat.death"
	// EventSlowApplied is emitted when a slow or freeze lands on a zombie.
	EventSlowApplied logging.EventType = "combat.slow_applied"
	// EventSlowExpired is emitted when a slow entry lapses.
	EventSlowExpired logging.EventType = "combat.slow_expired"
)

type DamagePayload struct {
	Amount    float64 `json:"amount"`
	Remaining float64 `json:"remaining"`
}

type SlowPayload struct {
	SourceID   string  `json:"sourceId"`
	Magnitude  float64 `json:"magnitude"`
	DurationMs int64   `json:"durationMs,omitempty"`
	Multiplier float64 `json:"multiplier"`
	Frozen     bool    `json:"frozen,omitempty"`
}

func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload DamagePayload) {
	publish(ctx, pub, EventDamage, tick, actor, target, payload)
}

func Death(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef) {
	publish(ctx, pub, EventDeath, tick, actor, target, nil)
}

func SlowApplied(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload SlowPayload) {
	publish(ctx, pub, EventSlowApplied, tick, actor, target, payload)
}

func SlowExpired(ctx context.Context, pub logging.Publisher, tick uint64, target logging.EntityRef, payload SlowPayload) {
	publish(ctx, pub, EventSlowExpired, tick, logging.EntityRef{}, target, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, tick uint64, actor, target logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
