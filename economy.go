package server

import (
	"context"
	"time"

	"garden-siege/server/lobby"
	"garden-siege/server/logging"
	loggingeconomy "garden-siege/server/logging/economy"
)

// resourcePool is one side's spendable balance: sun for the plant player,
// brains for the zombie player. Regeneration and debits run on the host only.
type resourcePool struct {
	role        lobby.Role
	balance     int
	cap         int
	regenAmount int
	regenEvery  time.Duration
	nextRegenAt time.Time
}

func newResourcePool(role lobby.Role, start int, now time.Time) *resourcePool {
	return &resourcePool{
		role:        role,
		balance:     start,
		cap:         resourceCap,
		regenAmount: resourceRegenStep,
		regenEvery:  resourceRegenTick,
		nextRegenAt: now.Add(resourceRegenTick),
	}
}

func (p *resourcePool) Balance() int {
	return p.balance
}

// spend debits amount atomically: either the full debit happens or nothing.
func (w *World) spend(pool *resourcePool, amount int) bool {
	if w == nil || pool == nil || amount < 0 {
		return false
	}
	if pool.balance < amount {
		loggingeconomy.SpendRejected(context.Background(), w.publisher, w.currentTick,
			logging.EntityRef{Kind: logging.EntityKindWorld},
			loggingeconomy.BalancePayload{Role: string(pool.role), Amount: amount, Balance: pool.balance})
		return false
	}
	pool.balance -= amount
	w.queueResourceEvent(pool)
	loggingeconomy.Spend(context.Background(), w.publisher, w.currentTick,
		logging.EntityRef{Kind: logging.EntityKindWorld},
		loggingeconomy.BalancePayload{Role: string(pool.role), Amount: amount, Balance: pool.balance})
	return true
}

// credit adds amount up to the cap (sunflower income and similar grants).
func (w *World) credit(pool *resourcePool, amount int) {
	if w == nil || pool == nil || amount <= 0 {
		return
	}
	pool.balance += amount
	if pool.balance > pool.cap {
		pool.balance = pool.cap
	}
	w.queueResourceEvent(pool)
}

// advancePools applies the fixed-interval regeneration step.
func (w *World) advancePools(now time.Time) {
	for _, pool := range w.pools {
		for !now.Before(pool.nextRegenAt) {
			if pool.balance < pool.cap {
				pool.balance += pool.regenAmount
				if pool.balance > pool.cap {
					pool.balance = pool.cap
				}
				w.queueResourceEvent(pool)
				loggingeconomy.Regen(context.Background(), w.publisher, w.currentTick,
					logging.EntityRef{Kind: logging.EntityKindWorld},
					loggingeconomy.BalancePayload{Role: string(pool.role), Amount: pool.regenAmount, Balance: pool.balance})
			}
			pool.nextRegenAt = pool.nextRegenAt.Add(pool.regenEvery)
		}
	}
}
