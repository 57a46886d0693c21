// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package papercut

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/papercut/asset"
	"github.com/gogpu/papercut/render"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for papercut and its sub-packages.
// By default, papercut produces no log output. Pass nil to disable logging
// again.
//
// Log levels used by papercut:
//   - [slog.LevelDebug]: buffer allocations, rebinds, watched directories
//   - [slog.LevelInfo]: device selection, canonical size changes
//   - [slog.LevelWarn]: asset decode failures, watch failures, CPU fallback
//
// Example:
//
//	papercut.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	asset.SetLogger(l)
	render.SetLogger(l)

	backendMu.RLock()
	b := gpuBackend
	backendMu.RUnlock()
	if b != nil {
		propagateLogger(b, l)
	}
}

// Logger returns the current logger used by papercut.
// Sub-packages (gpu/) call this to share the same logger configuration
// without introducing import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by GPU backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(b GPUBackend, l *slog.Logger) {
	if ls, ok := b.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}
