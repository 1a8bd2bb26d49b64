package config

import (
	"testing"
	"time"
	"wager-leaderboard/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setKeys(t *testing.T) {
	t.Setenv("UPGRADER_API_KEY", "up-key")
	t.Setenv("RAINBET_API_KEY", "rb-key")
}

func TestLoadDefaults(t *testing.T) {
	setKeys(t)
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("REFRESH_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "up-key", cfg.UpgraderAPIKey)
	assert.Equal(t, "5000", cfg.ServerPort)
	assert.Equal(t, constants.RefreshInterval, cfg.RefreshInterval)
}

func TestLoadPortFallback(t *testing.T) {
	setKeys(t)
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
}

func TestLoadMissingKeys(t *testing.T) {
	t.Setenv("UPGRADER_API_KEY", "")
	t.Setenv("RAINBET_API_KEY", "rb-key")
	_, err := Load()
	assert.ErrorContains(t, err, "UPGRADER_API_KEY")

	t.Setenv("UPGRADER_API_KEY", "up-key")
	t.Setenv("RAINBET_API_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "RAINBET_API_KEY")
}

func TestLoadRefreshInterval(t *testing.T) {
	setKeys(t)

	t.Setenv("REFRESH_INTERVAL", "90s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.RefreshInterval)

	t.Setenv("REFRESH_INTERVAL", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("REFRESH_INTERVAL", "-1m")
	_, err = Load()
	assert.Error(t, err)
}
