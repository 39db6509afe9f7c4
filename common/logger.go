package common

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger shared by the engine and all of its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Levels used:
//   - slog.LevelDebug: backend state changes, texture uploads
//   - slog.LevelInfo: lifecycle events (backend initialized, window created) and profiler output
//   - slog.LevelWarn: recoverable problems (unbalanced matrix stack at end of frame, surface loss)
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current shared logger. Safe for concurrent use.
//
// Returns:
//   - *slog.Logger: the active logger, never nil
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ComponentLogger returns the shared logger tagged with a component attribute.
//
// Parameters:
//   - component: short component name, e.g. "renderer" or "profiler"
//
// Returns:
//   - *slog.Logger: a child logger carrying component=<name>
func ComponentLogger(component string) *slog.Logger {
	return Logger().With(slog.String("component", component))
}
