package config

import (
	"fmt"
	"os"
	"time"
	"wager-leaderboard/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	UpgraderAPIKey  string
	RainbetAPIKey   string
	UpgraderBaseURL string
	RainbetBaseURL  string
	ServerPort      string
	LogLevel        string
	LogFile         string
	RefreshInterval time.Duration

	// set when a .env file was found and applied
	EnvFileLoaded bool
}

// Load reads .env (if present) and the process environment. Both API keys are
// required; the process must not start without them.
func Load() (*Config, error) {
	envLoaded := godotenv.Load() == nil

	cfg := &Config{
		UpgraderAPIKey:  getEnv("UPGRADER_API_KEY", ""),
		RainbetAPIKey:   getEnv("RAINBET_API_KEY", ""),
		UpgraderBaseURL: getEnv("UPGRADER_BASE_URL", "https://api.upgrader.com"),
		RainbetBaseURL:  getEnv("RAINBET_BASE_URL", "https://services.rainbet.com"),
		ServerPort:      getEnv("SERVER_PORT", getEnv("PORT", "5000")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		RefreshInterval: constants.RefreshInterval,
		EnvFileLoaded:   envLoaded,
	}

	if cfg.UpgraderAPIKey == "" {
		return nil, fmt.Errorf("UPGRADER_API_KEY is required")
	}
	if cfg.RainbetAPIKey == "" {
		return nil, fmt.Errorf("RAINBET_API_KEY is required")
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL %q: %w", v, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", d)
		}
		cfg.RefreshInterval = d
	}

	return cfg, nil
}

// LogSummary writes the non-secret parts of the configuration.
func LogSummary(cfg *Config, logger zerolog.Logger) {
	if !cfg.EnvFileLoaded {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	logger.Info().
		Str("upgrader_base_url", cfg.UpgraderBaseURL).
		Str("rainbet_base_url", cfg.RainbetBaseURL).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("log_file", cfg.LogFile).
		Dur("refresh_interval", cfg.RefreshInterval).
		Msg("configuration loaded")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
