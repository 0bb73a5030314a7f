package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Options selects the driver and connection for Open
type Options struct {
	// Driver is "sqlite" (default) or "pgx"
	Driver string
	// DSN is a file path for sqlite or a connection string for pgx
	DSN string
	// Schema qualifies table names on dialects with schemas (default "TK")
	Schema string
}

// DB represents a database connection with transaction helpers
type DB struct {
	conn    *sqlx.DB
	logger  *slog.Logger
	dialect Dialect
	dsn     string
}

// sqlitePragmas are applied to every pooled connection through the DSN
var sqlitePragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// Open connects to the database described by opts and verifies the connection.
// For sqlite the parent directory of the file is created if needed. Tables are
// not created here; see ApplySchema.
func Open(opts Options, logger *slog.Logger) (*DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.Schema == "" {
		opts.Schema = DefaultSchema
	}

	dialect, err := DialectFor(opts.Driver, opts.Schema)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if dialect.Driver == DriverSQLite {
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = sqliteDSN(dsn)
	}

	conn, err := sqlx.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect.HasSchemas() {
		if _, err := conn.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+dialect.Schema); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to create schema %s: %w", dialect.Schema, err)
		}
	}

	logger.Debug("Database opened", "driver", dialect.Driver, "schema", dialect.Schema)

	return &DB{
		conn:    conn,
		logger:  logger,
		dialect: dialect,
		dsn:     opts.DSN,
	}, nil
}

func sqliteDSN(path string) string {
	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying sqlx connection
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// Dialect returns the SQL dialect of the connection
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Logger returns the logger the database was opened with
func (db *DB) Logger() *slog.Logger {
	return db.logger
}

// WithTx executes a function within a transaction
// If the function returns an error or panics, the transaction is rolled back
// Otherwise, the transaction is committed
func (db *DB) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction",
				"error", err.Error(),
				"rollback_error", rbErr.Error(),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
