package log

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

var currentLevel atomic.Int64

func init() {
	currentLevel.Store(int64(slog.LevelInfo))
}

// GetLevel returns the current log level.
func GetLevel() slog.Level {
	return slog.Level(currentLevel.Load())
}

// DynamicLevel implements slog.Leveler and reads the process-wide level on every call.
type DynamicLevel struct{}

// Level returns the current log level.
func (DynamicLevel) Level() slog.Level {
	return GetLevel()
}

// SetLevel sets the log level.
func SetLevel(level slog.Level) {
	currentLevel.Store(int64(level))
}

// SetVerbose switches between debug and info logging.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// ParseLevel parses "debug", "info", "warn" (or "warning") and "error", ignoring case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}
