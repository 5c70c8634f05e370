// Package logging configures the structured logger used by the engine's
// entry point and worker pool.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel converts a case-insensitive level string to slog.Level. An
// empty string returns slog.LevelInfo; unknown strings return an error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown log level %q (want debug|info|warn|error)", s)
	}
}

// New builds a JSON slog.Logger writing to stderr at level. An invalid
// level falls back to info rather than failing the caller's startup path.
func New(level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})

	return slog.New(h)
}
