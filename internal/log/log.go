// Package log provides structured logging with color support for the apiaccess CLI.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Component represents a known component name for logging.
type Component string

const (
	ComponentStrategy Component = "strategy"
	ComponentIterator Component = "iterator"
	ComponentStore    Component = "store"
	ComponentBridge   Component = "bridge"
	ComponentAttempt  Component = "attempt"
	ComponentDialer   Component = "dialer"
	ComponentConfig   Component = "config"
	ComponentCLI      Component = "cli"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(New(os.Stderr, nil))
}

// New creates a new logger with the given writer and options.
func New(w io.Writer, opts *HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &HandlerOptions{Level: DynamicLevel{}}
	}
	return slog.New(NewColorHandler(w, opts))
}

// For returns a logger for the specified component.
//
// The returned logger resolves the default logger on every call, so
// package-level loggers created at init time follow later SetDefault calls.
func For(component Component) *slog.Logger {
	return slog.New(&componentHandler{component: string(component)})
}

// Default returns the default logger.
func Default() *slog.Logger {
	return defaultLogger.Load()
}

// SetDefault sets the default logger.
func SetDefault(logger *slog.Logger) {
	defaultLogger.Store(logger)
}
