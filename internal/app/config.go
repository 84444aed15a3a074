package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"garden-siege/server/lobby"
	"garden-siege/server/logging"
)

// Config is the peer process configuration, read from the environment with
// an optional .env overlay.
type Config struct {
	RendezvousURL string
	Role          lobby.Role
	DisplayName   string
	Seed          string
	TimeLimit     time.Duration
	LogSeverity   logging.Severity
}

// LoadConfig reads GARDEN_* variables. A missing .env file is fine; explicit
// environment always wins because godotenv never overwrites set variables.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		RendezvousURL: os.Getenv("GARDEN_RENDEZVOUS_URL"),
		Role:          lobby.Role(strings.ToLower(os.Getenv("GARDEN_ROLE"))),
		DisplayName:   os.Getenv("GARDEN_DISPLAY_NAME"),
		Seed:          os.Getenv("GARDEN_SEED"),
		LogSeverity:   logging.SeverityInfo,
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "gardener"
	}
	if !cfg.Role.Valid() {
		return Config{}, fmt.Errorf("app: GARDEN_ROLE must be %q or %q, got %q",
			lobby.RolePlants, lobby.RoleZombies, cfg.Role)
	}
	if raw := os.Getenv("GARDEN_TIME_LIMIT"); raw != "" {
		limit, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("app: parse GARDEN_TIME_LIMIT: %w", err)
		}
		cfg.TimeLimit = limit
	}
	switch strings.ToLower(os.Getenv("GARDEN_LOG_LEVEL")) {
	case "debug":
		cfg.LogSeverity = logging.SeverityDebug
	case "warn":
		cfg.LogSeverity = logging.SeverityWarn
	case "error":
		cfg.LogSeverity = logging.SeverityError
	}
	return cfg, nil
}
