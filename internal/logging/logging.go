// Package logging configures structured logging with log/slog.
//
// Development builds get colored tint output on stderr; production builds
// emit JSON so log shippers can parse the records.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog logger for the given environment and level
// name (debug, info, warn, error).
func Setup(environment, level string) {
	slog.SetDefault(New(os.Stderr, environment, ParseLevel(level)))
}

// New builds a logger writing to w.
func New(w io.Writer, environment string, level slog.Level) *slog.Logger {
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
