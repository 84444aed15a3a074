package server

import "time"

type PlantKind string

const (
	PlantPeashooter    PlantKind = "peashooter"
	PlantRepeater      PlantKind = "repeater"
	PlantSnowPea       PlantKind = "snowpea"
	PlantBonkChoy      PlantKind = "bonkchoy"
	PlantWallnut       PlantKind = "wallnut"
	PlantPotatoMine    PlantKind = "potatomine"
	PlantWinterMint    PlantKind = "wintermint"
	PlantSunflower     PlantKind = "sunflower"
	PlantTwinSunflower PlantKind = "twinsunflower"
)

type ZombieKind string

const (
	ZombieBasic      ZombieKind = "basic"
	ZombieConehead   ZombieKind = "conehead"
	ZombieBuckethead ZombieKind = "buckethead"
)

// PlantBehavior selects the per-tick routine driving a plant. Balance numbers
// stay in the spec tables; the engine only dispatches on the behavior.
type PlantBehavior string

const (
	BehaviorShooter  PlantBehavior = "shooter"
	BehaviorMelee    PlantBehavior = "melee"
	BehaviorMine     PlantBehavior = "mine"
	BehaviorBlocker  PlantBehavior = "blocker"
	BehaviorChiller  PlantBehavior = "chiller"
	BehaviorProducer PlantBehavior = "producer"
)

// ProjectileSpec describes the shot a shooter plant emits.
type ProjectileSpec struct {
	Speed         float64
	Damage        float64
	Fire          bool    // doubles damage on hit
	SlowMagnitude float64 // >0 applies a slow with this magnitude
	SlowDuration  time.Duration
	SplashRadius  float64 // >0 splashes nearby zombies for the base damage
}

type PlantSpec struct {
	Kind           PlantKind
	Cost           int
	Cooldown       time.Duration
	MaxHealth      float64
	Behavior       PlantBehavior
	AttackInterval time.Duration
	DetectionRange float64
	BurstCount     int
	BurstDelay     time.Duration
	Projectile     ProjectileSpec
	MeleeDamage    float64
	MeleeRange     float64

	// Mine phases.
	ArmDelay      time.Duration
	DetonateDelay time.Duration
	BlastDamage   float64
	BlastRadius   float64

	// Chiller phases.
	FreezeDuration time.Duration
	SlowMagnitude  float64
	SlowDuration   time.Duration

	// Producer cadence.
	ProduceMin    time.Duration
	ProduceMax    time.Duration
	ProduceAmount int
}

type ZombieSpec struct {
	Kind         ZombieKind
	Cost         int
	Cooldown     time.Duration
	MaxHealth    float64
	Speed        float64 // world units per second, unslowed
	BiteDamage   float64
	BiteInterval time.Duration
}

var pea = ProjectileSpec{Speed: 5, Damage: 20}

func defaultPlantSpecs() map[PlantKind]*PlantSpec {
	return map[PlantKind]*PlantSpec{
		PlantPeashooter: {
			Kind: PlantPeashooter, Cost: 100, Cooldown: 5 * time.Second, MaxHealth: 300,
			Behavior: BehaviorShooter, AttackInterval: 1425 * time.Millisecond,
			DetectionRange: 15, BurstCount: 1, Projectile: pea,
		},
		PlantRepeater: {
			Kind: PlantRepeater, Cost: 200, Cooldown: 5 * time.Second, MaxHealth: 300,
			Behavior: BehaviorShooter, AttackInterval: 1500 * time.Millisecond,
			DetectionRange: 10, BurstCount: 2, BurstDelay: 150 * time.Millisecond, Projectile: pea,
		},
		PlantSnowPea: {
			Kind: PlantSnowPea, Cost: 225, Cooldown: 5 * time.Second, MaxHealth: 300,
			Behavior: BehaviorShooter, AttackInterval: 1425 * time.Millisecond,
			DetectionRange: 15, BurstCount: 1,
			Projectile: ProjectileSpec{Speed: 5, Damage: 20, SlowMagnitude: 0.4, SlowDuration: 3 * time.Second},
		},
		PlantBonkChoy: {
			Kind: PlantBonkChoy, Cost: 150, Cooldown: 5 * time.Second, MaxHealth: 300,
			Behavior: BehaviorMelee, AttackInterval: 330 * time.Millisecond,
			MeleeDamage: 15, MeleeRange: 2.4,
		},
		PlantWallnut: {
			Kind: PlantWallnut, Cost: 50, Cooldown: 20 * time.Second, MaxHealth: 4000,
			Behavior: BehaviorBlocker,
		},
		PlantPotatoMine: {
			Kind: PlantPotatoMine, Cost: 25, Cooldown: 20 * time.Second, MaxHealth: 300,
			Behavior: BehaviorMine, ArmDelay: 5 * time.Second, DetonateDelay: 300 * time.Millisecond,
			BlastDamage: 1800, BlastRadius: 1.5,
		},
		PlantWinterMint: {
			Kind: PlantWinterMint, Cost: 175, Cooldown: 30 * time.Second, MaxHealth: 300,
			Behavior: BehaviorChiller, FreezeDuration: 5 * time.Second,
			SlowMagnitude: 0.5, SlowDuration: 3 * time.Second,
		},
		PlantSunflower: {
			Kind: PlantSunflower, Cost: 50, Cooldown: 7 * time.Second, MaxHealth: 300,
			Behavior: BehaviorProducer, ProduceMin: 4500 * time.Millisecond,
			ProduceMax: 6500 * time.Millisecond, ProduceAmount: sunflowerValue,
		},
		PlantTwinSunflower: {
			Kind: PlantTwinSunflower, Cost: 150, Cooldown: 7 * time.Second, MaxHealth: 300,
			Behavior: BehaviorProducer, ProduceMin: 4500 * time.Millisecond,
			ProduceMax: 6500 * time.Millisecond, ProduceAmount: 2 * sunflowerValue,
		},
	}
}

func defaultZombieSpecs() map[ZombieKind]*ZombieSpec {
	return map[ZombieKind]*ZombieSpec{
		ZombieBasic: {
			Kind: ZombieBasic, Cost: 50, Cooldown: 3 * time.Second, MaxHealth: 100,
			Speed: 0.6, BiteDamage: 25, BiteInterval: time.Second,
		},
		ZombieConehead: {
			Kind: ZombieConehead, Cost: 100, Cooldown: 5 * time.Second, MaxHealth: 370,
			Speed: 0.6, BiteDamage: 25, BiteInterval: time.Second,
		},
		ZombieBuckethead: {
			Kind: ZombieBuckethead, Cost: 175, Cooldown: 8 * time.Second, MaxHealth: 650,
			Speed: 0.55, BiteDamage: 25, BiteInterval: time.Second,
		},
	}
}

type fusionKey struct {
	Existing PlantKind
	Incoming PlantKind
}

// defaultFusionTable lists (existing, incoming) -> result upgrades. Placing the
// same kind on itself is the restoration rule and never consults this table.
func defaultFusionTable() map[fusionKey]PlantKind {
	return map[fusionKey]PlantKind{
		{PlantPeashooter, PlantWinterMint}: PlantSnowPea,
		{PlantPeashooter, PlantRepeater}:   PlantRepeater,
		{PlantSunflower, PlantWinterMint}:  PlantTwinSunflower,
	}
}
