package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.False(t, cfg.QueueEnabled)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Equal(t, 1000, cfg.RateLimitMaxJobs)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	assert.False(t, cfg.BrowserAllowAnyExec)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUEUE_ENABLED", "true")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("RATE_LIMIT_MAX_JOBS", "100")
	t.Setenv("RATE_LIMIT_WINDOW_SEC", "30")

	cfg := Load()

	assert.True(t, cfg.QueueEnabled)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 100, cfg.RateLimitMaxJobs)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "lots")
	t.Setenv("QUEUE_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.False(t, cfg.QueueEnabled)
}

func TestSlogLevelMapping(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for name, want := range cases {
		cfg := &Config{LogLevel: name}
		assert.Equal(t, want, cfg.slogLevel(), "level %q", name)
	}
}

func TestBrokerConnectionURI(t *testing.T) {
	cfg := &Config{BrokerHost: "broker", BrokerPort: "27017", BrokerDatabase: "vigil"}
	assert.Equal(t, "mongodb://broker:27017/vigil", cfg.BrokerConnectionURI())

	cfg.BrokerPassword = "hunter2"
	assert.Equal(t, "mongodb://:hunter2@broker:27017/vigil?authSource=admin", cfg.BrokerConnectionURI())

	cfg.BrokerURI = "mongodb://custom:27018/other"
	assert.Equal(t, "mongodb://custom:27018/other", cfg.BrokerConnectionURI())
}
