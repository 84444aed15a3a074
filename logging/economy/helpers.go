package economy

import (
	"context"

	"garden-siege/server/logging"
)

const (
	// EventSpend is emitted when a pool debit succeeds.
	EventSpend logging.EventType = "economy.spend"
	// EventSpendRejected is emitted when a debit is rejected for insufficient balance.
	EventSpendRejected logging.EventType = "economy.spend_rejected"
	// EventRegen is emitted when a pool regenerates.
	EventRegen logging.EventType = "economy.regen"
)

type BalancePayload struct {
	Role    string `json:"role"`
	Amount  int    `json:"amount"`
	Balance int    `json:"balance"`
}

func Spend(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BalancePayload) {
	publish(ctx, pub, EventSpend, logging.SeverityInfo, tick, actor, payload)
}

func SpendRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BalancePayload) {
	publish(ctx, pub, EventSpendRejected, logging.SeverityDebug, tick, actor, payload)
}

func Regen(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BalancePayload) {
	publish(ctx, pub, EventRegen, logging.SeverityDebug, tick, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, sev logging.Severity, tick uint64, actor logging.EntityRef, payload BalancePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    actor,
		Severity: sev,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}
