package server

import (
	"context"
	"fmt"
	"time"

	"garden-siege/server/logging"
	loggingcombat "garden-siege/server/logging/combat"
)

// Entity carries the state every board unit shares. All mutation happens
// inside the host tick; mirrors only ever see broadcast notifications.
type Entity struct {
	ID        string  `json:"id"`
	Lane      int     `json:"lane"`
	X         float64 `json:"x"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"maxHealth"`
}

func (e *Entity) alive() bool {
	return e != nil && e.Health > 0
}

type minePhase int

const (
	mineDormant minePhase = iota
	mineArmed
	mineDetonating
)

type chillPhase int

const (
	chillFreezing chillPhase = iota
	chillSlowing
	chillSpent
)

type plantState struct {
	Entity
	Kind PlantKind `json:"kind"`
	spec *PlantSpec
	Row  int `json:"row"`
	Col  int `json:"col"`

	nextAttackAt time.Time
	pendingShots int
	nextShotAt   time.Time

	phase      minePhase
	armAt      time.Time
	detonateAt time.Time

	chill       chillPhase
	chillNextAt time.Time

	nextProduceAt time.Time

	dying     bool
	despawnAt time.Time
}

type zombieState struct {
	Entity
	Kind ZombieKind `json:"kind"`
	spec *ZombieSpec

	slows      map[string]slowEntry
	multiplier float64
	frozen     bool

	nextBiteAt time.Time

	dying     bool
	despawnAt time.Time
}

type projectileState struct {
	Entity
	spec    ProjectileSpec
	OwnerID string `json:"ownerId"`
}

func (w *World) newPlant(kind PlantKind, row, col int, now time.Time) *plantState {
	spec := w.plantSpecs[kind]
	if spec == nil {
		return nil
	}
	w.nextPlantID++
	p := &plantState{
		Entity: Entity{
			ID:        fmt.Sprintf("plant-%d", w.nextPlantID),
			Lane:      row,
			X:         tileCenterX(col),
			Health:    spec.MaxHealth,
			MaxHealth: spec.MaxHealth,
		},
		Kind: kind,
		spec: spec,
		Row:  row,
		Col:  col,
	}
	switch spec.Behavior {
	case BehaviorShooter, BehaviorMelee:
		p.nextAttackAt = now.Add(spec.AttackInterval)
	case BehaviorMine:
		p.phase = mineDormant
		p.armAt = now.Add(spec.ArmDelay)
	case BehaviorChiller:
		p.chill = chillFreezing
		p.chillNextAt = now
	case BehaviorProducer:
		p.nextProduceAt = now.Add(w.produceInterval(spec))
	}
	return p
}

func (w *World) newZombie(kind ZombieKind, lane int, now time.Time) *zombieState {
	spec := w.zombieSpecs[kind]
	if spec == nil {
		return nil
	}
	w.nextZombieID++
	return &zombieState{
		Entity: Entity{
			ID:        fmt.Sprintf("zombie-%d", w.nextZombieID),
			Lane:      lane,
			X:         zombieSpawnX,
			Health:    spec.MaxHealth,
			MaxHealth: spec.MaxHealth,
		},
		Kind:       kind,
		spec:       spec,
		slows:      make(map[string]slowEntry),
		multiplier: 1,
		nextBiteAt: now.Add(spec.BiteInterval),
	}
}

func tileCenterX(col int) float64 {
	return float64(col)*tileSize + tileSize/2
}

// damagePlant clamps health into [0, max] and starts the removal sequence at
// zero. Entities already dying absorb no further damage.
func (w *World) damagePlant(p *plantState, amount float64, sourceID string, now time.Time) {
	if w == nil || p == nil || p.dying || amount <= 0 {
		return
	}
	p.Health -= amount
	if p.Health < 0 {
		p.Health = 0
	}
	w.queueHealthEvent(p.ID, string(p.Kind), p.Health, p.MaxHealth)
	loggingcombat.Damage(context.Background(), w.publisher, w.currentTick,
		logging.EntityRef{ID: sourceID, Kind: logging.EntityKindZombie},
		logging.EntityRef{ID: p.ID, Kind: logging.EntityKindPlant},
		loggingcombat.DamagePayload{Amount: amount, Remaining: p.Health})
	if p.Health == 0 {
		w.killPlant(p, now)
	}
}

func (w *World) damageZombie(z *zombieState, amount float64, sourceID string, now time.Time) {
	if w == nil || z == nil || z.dying || amount <= 0 {
		return
	}
	z.Health -= amount
	if z.Health < 0 {
		z.Health = 0
	}
	w.queueHealthEvent(z.ID, string(z.Kind), z.Health, z.MaxHealth)
	loggingcombat.Damage(context.Background(), w.publisher, w.currentTick,
		logging.EntityRef{ID: sourceID, Kind: logging.EntityKindPlant},
		logging.EntityRef{ID: z.ID, Kind: logging.EntityKindZombie},
		loggingcombat.DamagePayload{Amount: amount, Remaining: z.Health})
	if z.Health == 0 {
		w.killZombie(z, now)
	}
}

func (w *World) killPlant(p *plantState, now time.Time) {
	if p == nil || p.dying {
		return
	}
	p.dying = true
	p.despawnAt = now.Add(despawnGraceDelay)
	w.grid.clear(p.Row, p.Col, p.ID)
	w.queueDeathEvent(p.ID, string(p.Kind))
	loggingcombat.Death(context.Background(), w.publisher, w.currentTick,
		logging.EntityRef{}, logging.EntityRef{ID: p.ID, Kind: logging.EntityKindPlant})
}

func (w *World) killZombie(z *zombieState, now time.Time) {
	if z == nil || z.dying {
		return
	}
	z.dying = true
	z.despawnAt = now.Add(despawnGraceDelay)
	w.queueDeathEvent(z.ID, string(z.Kind))
	loggingcombat.Death(context.Background(), w.publisher, w.currentTick,
		logging.EntityRef{}, logging.EntityRef{ID: z.ID, Kind: logging.EntityKindZombie})
}

// sweepDespawns deletes entities whose death grace has elapsed.
func (w *World) sweepDespawns(now time.Time) {
	for id, p := range w.plants {
		if p.dying && !now.Before(p.despawnAt) {
			delete(w.plants, id)
			w.queueRemovedEvent(id, string(p.Kind))
		}
	}
	for id, z := range w.zombies {
		if z.dying && !now.Before(z.despawnAt) {
			delete(w.zombies, id)
			w.queueRemovedEvent(id, string(z.Kind))
		}
	}
}
