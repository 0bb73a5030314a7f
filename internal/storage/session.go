package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tkdb/internal/metrics"
)

// Executor is what DAO statements run against: the pool or an open transaction
type Executor interface {
	sqlx.ExtContext
}

// Session is the per-caller application context passed to every DAO
// operation. It carries the connection (or transaction), the session log and
// the metrics recorder. A Session is safe for concurrent use only when it is
// not inside InTx.
type Session struct {
	db      *DB
	ex      Executor
	id      string
	logger  *slog.Logger
	metrics *metrics.Recorder
	inTx    bool
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithMetrics attaches a metrics recorder to the session
func WithMetrics(r *metrics.Recorder) SessionOption {
	return func(s *Session) {
		s.metrics = r
	}
}

// WithSessionID overrides the generated session id
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession creates a session over the database pool
func NewSession(db *DB, opts ...SessionOption) *Session {
	s := &Session{
		db: db,
		ex: db.conn,
		id: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = db.logger.With("session", s.id)
	return s
}

// ID returns the session id attached to every log record
func (s *Session) ID() string {
	return s.id
}

// Log returns the session log
func (s *Session) Log() *slog.Logger {
	return s.logger
}

// Dialect returns the SQL dialect of the underlying database
func (s *Session) Dialect() Dialect {
	return s.db.dialect
}

// Qualify returns the schema-qualified table name
func (s *Session) Qualify(table string) string {
	return s.db.dialect.Qualify(table)
}

// Metrics returns the session's recorder, possibly nil
func (s *Session) Metrics() *metrics.Recorder {
	return s.metrics
}

// InTx runs fn with a session bound to a new transaction. Nested calls reuse
// the outer transaction.
func (s *Session) InTx(ctx context.Context, fn func(tx *Session) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		child := *s
		child.ex = tx
		child.inTx = true
		return fn(&child)
	})
}

func (s *Session) observe(operation string, started time.Time, err error) {
	s.metrics.Observe(operation, started, err)
	if err == nil {
		s.logger.Debug("DAO operation completed",
			"operation", operation,
			"duration", time.Since(started),
		)
	}
}
