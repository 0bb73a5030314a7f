package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	tkerrors "tkdb/internal/errors"
)

// Scanner is satisfied by *sql.Rows and *sql.Row
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc maps one result row into a record
type ScanFunc[T any] func(Scanner) (*T, error)

// fail wraps, logs and returns a DAO failure
func (s *Session) fail(code tkerrors.ErrorCode, operation, message, query string, cause error) error {
	err := tkerrors.New(code, operation, message, query, cause)
	attrs := []any{
		"operation", operation,
		"code", string(code),
		"query", err.Query,
	}
	if cause != nil {
		attrs = append(attrs, "error", cause.Error())
	}
	s.logger.Error(message, attrs...)
	return err
}

// QueryOne runs q and maps exactly one row. No row is ROW_NOT_FOUND and more
// than one row is ROW_COUNT_MISMATCH.
func QueryOne[T any](ctx context.Context, s *Session, operation string, q *Query, scan ScanFunc[T]) (rec *T, err error) {
	started := time.Now()
	defer func() { s.observe(operation, started, err) }()

	query := q.String()
	if qerr := q.Err(); qerr != nil {
		return nil, s.fail(tkerrors.InvalidArgument, operation, "statement placeholders do not match arguments", query, qerr)
	}

	rows, err := s.ex.QueryxContext(ctx, s.ex.Rebind(query), q.Args()...)
	if err != nil {
		return nil, s.fail(tkerrors.QueryFailed, operation, "unable to execute query", query, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if rerr := rows.Err(); rerr != nil {
			return nil, s.fail(tkerrors.ReadFailed, operation, "unable to read row", query, rerr)
		}
		return nil, s.fail(tkerrors.RowNotFound, operation, "row not found", query, nil)
	}

	rec, err = scan(rows)
	if err != nil {
		return nil, s.fail(tkerrors.ReadFailed, operation, "unable to read row", query, err)
	}

	if rows.Next() {
		return nil, s.fail(tkerrors.RowCountMismatch, operation, "expected exactly one row", query, nil)
	}
	if rerr := rows.Err(); rerr != nil {
		return nil, s.fail(tkerrors.ReadFailed, operation, "unable to read row", query, rerr)
	}

	return rec, nil
}

// QueryMany runs q and maps every row in result-set order
func QueryMany[T any](ctx context.Context, s *Session, operation string, q *Query, scan ScanFunc[T]) (recs []*T, err error) {
	started := time.Now()
	defer func() { s.observe(operation, started, err) }()

	query := q.String()
	if qerr := q.Err(); qerr != nil {
		return nil, s.fail(tkerrors.InvalidArgument, operation, "statement placeholders do not match arguments", query, qerr)
	}

	rows, err := s.ex.QueryxContext(ctx, s.ex.Rebind(query), q.Args()...)
	if err != nil {
		return nil, s.fail(tkerrors.QueryFailed, operation, "unable to execute query", query, err)
	}
	defer func() { _ = rows.Close() }()

	recs = make([]*T, 0)
	for rows.Next() {
		rec, serr := scan(rows)
		if serr != nil {
			return nil, s.fail(tkerrors.ReadFailed, operation, "unable to read row", query, serr)
		}
		recs = append(recs, rec)
	}
	if rerr := rows.Err(); rerr != nil {
		return nil, s.fail(tkerrors.ReadFailed, operation, "unable to read row", query, rerr)
	}

	return recs, nil
}

// Exec runs a write statement. When expect >= 0 the affected-row count must
// equal it, otherwise the failure message is "unable to <action> row".
func Exec(ctx context.Context, s *Session, operation, action string, q *Query, expect int64) (n int64, err error) {
	started := time.Now()
	defer func() { s.observe(operation, started, err) }()

	query := q.String()
	if qerr := q.Err(); qerr != nil {
		return 0, s.fail(tkerrors.InvalidArgument, operation, "statement placeholders do not match arguments", query, qerr)
	}

	res, err := s.ex.ExecContext(ctx, s.ex.Rebind(query), q.Args()...)
	if err != nil {
		return 0, s.fail(tkerrors.QueryFailed, operation, fmt.Sprintf("unable to %s row", action), query, err)
	}

	n, err = res.RowsAffected()
	if err != nil {
		return 0, s.fail(tkerrors.QueryFailed, operation, "unable to read affected row count", query, err)
	}
	if expect >= 0 && n != expect {
		return n, s.fail(tkerrors.RowCountMismatch, operation,
			fmt.Sprintf("unable to %s row", action), query,
			fmt.Errorf("%d rows affected, expected %d", n, expect))
	}

	return n, nil
}

// NextID returns one more than the largest id in table, or 1 when it is empty
func NextID(ctx context.Context, s *Session, operation, table, idCol string) (id int64, err error) {
	started := time.Now()
	defer func() { s.observe(operation, started, err) }()

	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", idCol, s.Qualify(table))
	if err = sqlx.GetContext(ctx, s.ex, &id, query); err != nil {
		return 0, s.fail(tkerrors.QueryFailed, operation, "unable to get next id", query, err)
	}
	return id, nil
}

// KeyBy collects records into a map keyed by key. Later duplicates replace
// earlier ones.
func KeyBy[T any, K comparable](recs []*T, key func(*T) K) map[K]*T {
	m := make(map[K]*T, len(recs))
	for _, r := range recs {
		m[key(r)] = r
	}
	return m
}

// Invalid returns an INVALID_ARGUMENT error logged on the session
func (s *Session) Invalid(operation string, format string, args ...any) error {
	return s.fail(tkerrors.InvalidArgument, operation, fmt.Sprintf(format, args...), "", nil)
}

// columnList joins cols, prefixing each with prefix ("" or "c.")
func columnList(prefix string, cols []string) string {
	if prefix == "" {
		return strings.Join(cols, ", ")
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}
