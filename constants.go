package server

import "time"

const (
	tickRate = 15 // simulation ticks per second
	tickStep = time.Second / tickRate

	laneCount   = 5
	columnCount = 9
	tileSize    = 1.2

	// Zombies enter just past the right edge of the grid and walk toward x=0.
	zombieSpawnX = float64(columnCount)*tileSize + 0.6
	defeatLineX  = 0.0

	// A zombie is blocked when a live plant sits within this distance ahead of it.
	blockProbeDistance = 0.45

	projectileHitRadius = 0.3

	// Dead entities linger for the client's death animation before despawning.
	despawnGraceDelay = time.Second

	matchTimeLimit = 5 * time.Minute
)

const (
	sunStartBalance   = 100
	brainStartBalance = 50
	resourceRegenStep = 25
	resourceRegenTick = 5 * time.Second
	resourceCap       = 500
	sunflowerValue    = 25
)
