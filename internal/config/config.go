// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shovegame/shove/internal/lobby"
)

// Config is the server configuration, read from SHOVE_* environment
// variables. godotenv loads a .env file into the environment when present.
type Config struct {
	Addr     string
	LogLevel logrus.Level

	Timings          lobby.Timings
	GCInterval       time.Duration
	MinLobbyLifespan time.Duration
	MaxLobbyLifespan time.Duration

	DevTools bool
}

// FromEnv builds the configuration from the environment, falling back to
// defaults for anything unset. Unparseable values are errors, not silent
// defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:             ":8080",
		LogLevel:         logrus.InfoLevel,
		Timings:          lobby.DefaultTimings(),
		GCInterval:       5 * time.Minute,
		MinLobbyLifespan: 5 * time.Minute,
		MaxLobbyLifespan: 6 * time.Hour,
		DevTools:         true,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if addr := os.Getenv("SHOVE_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if level := os.Getenv("SHOVE_LOG_LEVEL"); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return Config{}, fmt.Errorf("SHOVE_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = parsed
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"SHOVE_ROUND_DURATION", &cfg.Timings.RoundDuration},
		{"SHOVE_PRE_GAME_DURATION", &cfg.Timings.PreGameDuration},
		{"SHOVE_PLAYER_RECONNECT", &cfg.Timings.PlayerReconnect},
		{"SHOVE_DURATION_PER_EVENT", &cfg.Timings.DurationPerEvent},
		{"SHOVE_GC_INTERVAL", &cfg.GCInterval},
		{"SHOVE_MIN_LOBBY_LIFESPAN", &cfg.MinLobbyLifespan},
		{"SHOVE_MAX_LOBBY_LIFESPAN", &cfg.MaxLobbyLifespan},
	}
	for _, d := range durations {
		raw := os.Getenv(d.name)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s: must be positive, got %s", d.name, parsed)
		}
		*d.dst = parsed
	}

	if raw := os.Getenv("SHOVE_PIECES_PER_PLAYER"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("SHOVE_PIECES_PER_PLAYER: %w", err)
		}
		if n < 1 {
			return Config{}, fmt.Errorf("SHOVE_PIECES_PER_PLAYER: must be at least 1, got %d", n)
		}
		cfg.Timings.PiecesPerPlayer = n
	}

	if raw := os.Getenv("SHOVE_DEV_TOOLS"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("SHOVE_DEV_TOOLS: %w", err)
		}
		cfg.DevTools = enabled
	}

	return cfg, nil
}

// ManagerConfig converts to the lobby manager's view of the configuration.
func (c Config) ManagerConfig() lobby.ManagerConfig {
	return lobby.ManagerConfig{
		Timings:          c.Timings,
		GCInterval:       c.GCInterval,
		MinLobbyLifespan: c.MinLobbyLifespan,
		MaxLobbyLifespan: c.MaxLobbyLifespan,
	}
}
