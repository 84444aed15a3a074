package server

import (
	"context"
	"time"

	"garden-siege/server/logging"
	loggingcombat "garden-siege/server/logging/combat"
)

// slowEntry is one sourced slow on a zombie. Entries stack multiplicatively;
// any entry at or above full magnitude pins the zombie in place.
type slowEntry struct {
	Magnitude float64
	ExpiresAt time.Time
}

const fullStunMagnitude = 1.0

// applySlow inserts or refreshes the entry for sourceID and recomputes the
// effective multiplier. Magnitude is clamped into [0, 1].
func (w *World) applySlow(z *zombieState, sourceID string, magnitude float64, duration time.Duration, now time.Time) bool {
	if w == nil || z == nil || z.dying || sourceID == "" || duration <= 0 {
		return false
	}
	if magnitude < 0 {
		magnitude = 0
	}
	if magnitude > fullStunMagnitude {
		magnitude = fullStunMagnitude
	}
	if z.slows == nil {
		z.slows = make(map[string]slowEntry)
	}
	z.slows[sourceID] = slowEntry{Magnitude: magnitude, ExpiresAt: now.Add(duration)}
	w.recomputeSlow(z)
	w.queueStatusEvent(z, sourceID, magnitude, true)
	loggingcombat.SlowApplied(context.Background(), w.publisher, w.currentTick,
		logging.EntityRef{ID: sourceID, Kind: logging.EntityKindPlant},
		logging.EntityRef{ID: z.ID, Kind: logging.EntityKindZombie},
		loggingcombat.SlowPayload{
			SourceID:   sourceID,
			Magnitude:  magnitude,
			DurationMs: duration.Milliseconds(),
			Multiplier: z.multiplier,
			Frozen:     z.frozen,
		})
	return true
}

// expireSlows drops lapsed entries, once per tick. Each expiry triggers a
// recompute so the remaining entries take over immediately.
func (w *World) expireSlows(z *zombieState, now time.Time) {
	if z == nil || len(z.slows) == 0 {
		return
	}
	for source, entry := range z.slows {
		if now.Before(entry.ExpiresAt) {
			continue
		}
		delete(z.slows, source)
		w.recomputeSlow(z)
		w.queueStatusEvent(z, source, entry.Magnitude, false)
		loggingcombat.SlowExpired(context.Background(), w.publisher, w.currentTick,
			logging.EntityRef{ID: z.ID, Kind: logging.EntityKindZombie},
			loggingcombat.SlowPayload{SourceID: source, Magnitude: entry.Magnitude})
	}
}

// recomputeSlow derives the effective speed multiplier from the active
// entries: 0 when any entry is a full stun, otherwise the product of
// (1 - magnitude) over all entries.
func (w *World) recomputeSlow(z *zombieState) {
	if z == nil {
		return
	}
	multiplier := 1.0
	frozen := false
	for _, entry := range z.slows {
		if entry.Magnitude >= fullStunMagnitude {
			frozen = true
			break
		}
		multiplier *= 1 - entry.Magnitude
	}
	if frozen {
		multiplier = 0
	}
	z.multiplier = multiplier
	z.frozen = frozen
}

// strongestSlow reports the largest active magnitude; the client maps it to a
// visual tint when the zombie is not outright frozen.
func (z *zombieState) strongestSlow() float64 {
	strongest := 0.0
	for _, entry := range z.slows {
		if entry.Magnitude > strongest {
			strongest = entry.Magnitude
		}
	}
	return strongest
}

func (z *zombieState) effectiveSpeed() float64 {
	if z == nil || z.spec == nil {
		return 0
	}
	return z.spec.Speed * z.multiplier
}
