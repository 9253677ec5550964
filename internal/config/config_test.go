package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "refresh.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 15, cfg.Queue.ClaimTimeoutMins)
	assert.Equal(t, 25, cfg.Queue.DefaultBatchLimit)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 120, cfg.Worker.JobTimeoutSecs)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.InDelta(t, 2.0, cfg.Fetch.RateLimit, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REFRESH_STORE_DRIVER", "sqlite")
	t.Setenv("REFRESH_STORE_PATH", "/tmp/test-refresh.db")
	t.Setenv("REFRESH_SERVER_PORT", "9090")
	t.Setenv("REFRESH_QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("REFRESH_JINA_KEY", "jina-secret")
	t.Setenv("REFRESH_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/test-refresh.db", cfg.Store.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, "jina-secret", cfg.Jina.Key)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
