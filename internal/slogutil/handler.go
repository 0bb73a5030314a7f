// Package slogutil provides the slog handler and logger constructors used for
// tkdb session logs.
package slogutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SessionHandler formats records as:
//
//	TIMESTAMP [level] Message | key=value key=value
//
// Pre-bound attributes (WithAttrs) are rendered once and reused.
type SessionHandler struct {
	w      io.Writer
	level  slog.Leveler
	prefix string // dotted group path, with trailing "."
	bound  []byte // rendered WithAttrs output, each entry " key=value"
	mu     *sync.Mutex
}

// NewSessionHandler creates a new session-log handler.
func NewSessionHandler(w io.Writer, opts *slog.HandlerOptions) *SessionHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &SessionHandler{
		w:     w,
		level: level,
		mu:    &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SessionHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes the log record.
func (h *SessionHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteString(" [")
	buf.WriteString(levelString(r.Level))
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	if len(h.bound) > 0 || r.NumAttrs() > 0 {
		buf.WriteString(" |")
		buf.Write(h.bound)
		r.Attrs(func(a slog.Attr) bool {
			appendAttr(&buf, h.prefix, a)
			return true
		})
	}

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs returns a new handler with the given attributes pre-rendered.
func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var buf bytes.Buffer
	buf.Write(h.bound)
	for _, a := range attrs {
		appendAttr(&buf, h.prefix, a)
	}

	clone := *h
	clone.bound = buf.Bytes()
	return &clone
}

// WithGroup returns a new handler whose subsequent attribute keys are prefixed with name.
func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Key == "" {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(buf, prefix+a.Key+".", ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(a.Value))
}

// levelString returns a lowercase string for the log level.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

// formatValue formats a slog.Value; strings containing spaces are quoted so
// that SQL text in "query" attributes stays on one readable field.
func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\n\"") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return fmt.Sprint(v.Any())
	}
}
