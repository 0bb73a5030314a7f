package slogutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"tkdb/internal/config"
)

// silent is above every standard level
const silent = slog.Level(100)

// NewLogger creates a logger in the human session-log format.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewSessionHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a logger that writes one JSON object per record.
func NewJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDiscardLogger creates a logger that discards all output.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewSessionHandler(io.Discard, &slog.HandlerOptions{Level: silent}))
}

// LevelFromString converts a string to a slog.Level.
// Supports: debug, info, warn, error (case-insensitive).
// Returns slog.LevelInfo for unrecognized strings.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity converts CLI verbosity flags to a slog.Level.
// quiet wins over verbosity; 0 is warn, 1 info, 2+ debug.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return silent
	}
	switch verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// NewSessionLogger builds the session log described by cfg. Records always go
// to stderr; when cfg.File is set they are also appended to that file, rotated
// by cfg.MaxSize. The returned closer is nil when no file was opened.
func NewSessionLogger(cfg config.LoggingConfig, stderr io.Writer, override slog.Level) (*slog.Logger, io.Closer, error) {
	level := LevelFromString(cfg.Level)
	if override != 0 {
		level = override
	}

	handlerFor := func(w io.Writer) slog.Handler {
		if cfg.Format == "json" {
			return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		}
		return NewSessionHandler(w, &slog.HandlerOptions{Level: level})
	}

	if cfg.File == "" {
		return slog.New(handlerFor(stderr)), nil, nil
	}

	var sink io.WriteCloser
	if size := ParseSize(cfg.MaxSize); size > 0 {
		rf, err := OpenRotatingFile(cfg.File, size, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		sink = rf
	} else {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		sink = f
	}

	return slog.New(NewTeeHandler(handlerFor(stderr), handlerFor(sink))), sink, nil
}

// TeeHandler writes logs to multiple handlers.
type TeeHandler struct {
	handlers []slog.Handler
}

// NewTeeHandler creates a handler that writes to all provided handlers.
func NewTeeHandler(handlers ...slog.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

// Enabled returns true if any handler is enabled for the level.
func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes the record to every enabled handler and returns the first error.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs returns a new TeeHandler with attributes added to all handlers.
func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &TeeHandler{handlers: next}
}

// WithGroup returns a new TeeHandler with the group added to all handlers.
func (t *TeeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithGroup(name)
	}
	return &TeeHandler{handlers: next}
}
