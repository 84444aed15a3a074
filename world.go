package server

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"garden-siege/server/lobby"
	"garden-siege/server/logging"
	logginglifecycle "garden-siege/server/logging/lifecycle"
)

const defaultWorldSeed = "backyard"

// WorldConfig captures the knobs applied when constructing a world.
type WorldConfig struct {
	Seed       string        `json:"seed"`
	TimeLimit  time.Duration `json:"-"`
	SunStart   int           `json:"sunStart"`
	BrainStart int           `json:"brainStart"`
}

func (cfg WorldConfig) normalized() WorldConfig {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = defaultWorldSeed
	}
	if normalized.TimeLimit <= 0 {
		normalized.TimeLimit = matchTimeLimit
	}
	if normalized.SunStart <= 0 {
		normalized.SunStart = sunStartBalance
	}
	if normalized.BrainStart <= 0 {
		normalized.BrainStart = brainStartBalance
	}
	return normalized
}

func defaultWorldConfig() WorldConfig {
	return WorldConfig{
		Seed:       defaultWorldSeed,
		TimeLimit:  matchTimeLimit,
		SunStart:   sunStartBalance,
		BrainStart: brainStartBalance,
	}
}

// World owns the authoritative match state. Every mutation happens inside a
// tick on the host process; mirrors consume the outbound event queue only.
type World struct {
	plants      map[string]*plantState
	zombies     map[string]*zombieState
	projectiles []*projectileState
	grid        *Grid
	pools       map[lobby.Role]*resourcePool

	plantSpecs  map[PlantKind]*PlantSpec
	zombieSpecs map[ZombieKind]*ZombieSpec
	fusionTable map[fusionKey]PlantKind

	// Placement cooldowns per side, keyed by unit kind.
	cooldowns map[lobby.Role]map[string]time.Time

	config    WorldConfig
	rng       *rand.Rand
	publisher logging.Publisher

	currentTick      uint64
	nextPlantID      uint64
	nextZombieID     uint64
	nextProjectileID uint64

	events []Event

	started  bool
	endsAt   time.Time
	ended    bool
	winner   lobby.Role
	endCause string
}

func newWorld(cfg WorldConfig, publisher logging.Publisher) *World {
	normalized := cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	seed := int64(0)
	for _, c := range normalized.Seed {
		seed = seed*31 + int64(c)
	}
	return &World{
		plants:      make(map[string]*plantState),
		zombies:     make(map[string]*zombieState),
		projectiles: make([]*projectileState, 0),
		grid:        newGrid(),
		pools:       make(map[lobby.Role]*resourcePool),
		plantSpecs:  defaultPlantSpecs(),
		zombieSpecs: defaultZombieSpecs(),
		fusionTable: defaultFusionTable(),
		cooldowns: map[lobby.Role]map[string]time.Time{
			lobby.RolePlants:  make(map[string]time.Time),
			lobby.RoleZombies: make(map[string]time.Time),
		},
		config:    normalized,
		rng:       rand.New(rand.NewSource(seed)),
		publisher: publisher,
	}
}

// start arms the match clock and both resource pools. Called once, when both
// transports report connected.
func (w *World) start(now time.Time) {
	if w.started {
		return
	}
	w.started = true
	w.endsAt = now.Add(w.config.TimeLimit)
	w.pools[lobby.RolePlants] = newResourcePool(lobby.RolePlants, w.config.SunStart, now)
	w.pools[lobby.RoleZombies] = newResourcePool(lobby.RoleZombies, w.config.BrainStart, now)
	w.queueResourceEvent(w.pools[lobby.RolePlants])
	w.queueResourceEvent(w.pools[lobby.RoleZombies])
	logginglifecycle.MatchStarted(context.Background(), w.publisher,
		logging.EntityRef{Kind: logging.EntityKindWorld})
}

// advance runs one full resolution pass. The pass must complete within the
// tick budget; it never suspends.
func (w *World) advance(now time.Time, dt float64) {
	if !w.started || w.ended {
		return
	}
	w.currentTick++

	for _, z := range w.zombies {
		w.expireSlows(z, now)
	}
	w.advancePlants(now, dt)
	w.advanceProjectiles(now, dt)
	w.advanceZombies(now, dt)
	w.sweepDespawns(now)
	w.advancePools(now)

	if !now.Before(w.endsAt) {
		w.finish(lobby.RoleNone, "time limit reached")
	}
}

// finish ends the match exactly once and queues the outcome broadcast.
func (w *World) finish(winner lobby.Role, cause string) {
	if w.ended {
		return
	}
	w.ended = true
	w.winner = winner
	w.endCause = cause
	w.queueOutcomeEvent(winner, cause)
	logginglifecycle.MatchEnded(context.Background(), w.publisher,
		logging.EntityRef{Kind: logging.EntityKindWorld},
		logginglifecycle.OutcomePayload{Winner: string(winner), Reason: cause})
}

func (w *World) produceInterval(spec *PlantSpec) time.Duration {
	if spec.ProduceMax <= spec.ProduceMin {
		return spec.ProduceMin
	}
	return spec.ProduceMin + time.Duration(w.rng.Int63n(int64(spec.ProduceMax-spec.ProduceMin)))
}

// onCooldown reports and, when free, arms the per-kind placement cooldown.
func (w *World) onCooldown(role lobby.Role, kind string, cooldown time.Duration, now time.Time) bool {
	byKind := w.cooldowns[role]
	if byKind == nil {
		return false
	}
	if until, ok := byKind[kind]; ok && now.Before(until) {
		return true
	}
	byKind[kind] = now.Add(cooldown)
	return false
}

// flushEvents hands the queued broadcast notifications to the hub and resets
// the queue. Delivery downstream is at-most-once and fire-and-forget.
func (w *World) flushEvents() []Event {
	if len(w.events) == 0 {
		return nil
	}
	out := w.events
	w.events = make([]Event, 0, len(out))
	return out
}
