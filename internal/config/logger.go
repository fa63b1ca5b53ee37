package config

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger replaces the process-wide default logger according to LOG_LEVEL
// and LOG_FORMAT. JSON output is the default; "text" switches to the
// human-readable handler.
func InitLogger(cfg *Config) {
	opts := &slog.HandlerOptions{Level: cfg.slogLevel()}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "console":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))

	slog.Info("Logger initialized",
		"level", cfg.slogLevel().String(),
		"format", cfg.LogFormat,
	)
}

// slogLevel maps the configured level name onto slog's levels. Unrecognized
// values fall back to info rather than failing startup.
func (c *Config) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
