package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents stable error codes for all persistence failure modes
type ErrorCode string

const (
	// QueryFailed indicates the driver rejected the statement, a binding or the execution
	QueryFailed ErrorCode = "QUERY_FAILED"
	// RowNotFound indicates a single-row lookup returned no rows
	RowNotFound ErrorCode = "ROW_NOT_FOUND"
	// RowCountMismatch indicates an insert, update or delete touched an unexpected number of rows
	RowCountMismatch ErrorCode = "ROW_COUNT_MISMATCH"
	// ReadFailed indicates a column read or row iteration failure
	ReadFailed ErrorCode = "READ_FAILED"
	// InvalidArgument indicates a malformed statement or caller input
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. Any DBError with the same code matches.
var (
	ErrQueryFailed      = &DBError{Code: QueryFailed}
	ErrNotFound         = &DBError{Code: RowNotFound}
	ErrRowCountMismatch = &DBError{Code: RowCountMismatch}
	ErrReadFailed       = &DBError{Code: ReadFailed}
	ErrInvalidArgument  = &DBError{Code: InvalidArgument}
)

// DBError is the single error kind surfaced by the DAO layer. It carries the
// operation that failed, the offending query text and the low-level cause.
type DBError struct {
	Code      ErrorCode `json:"code"`
	Operation string    `json:"operation,omitempty"`
	Message   string    `json:"message,omitempty"`
	Query     string    `json:"query,omitempty"`
	cause     error     // Underlying error (not exported to JSON)
}

// New creates a new DBError
func New(code ErrorCode, operation, message, query string, cause error) *DBError {
	return &DBError{
		Code:      code,
		Operation: operation,
		Message:   message,
		Query:     compactQuery(query),
		cause:     cause,
	}
}

// Error implements the error interface
func (e *DBError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Code)
	if e.Operation != "" {
		b.WriteString(" ")
		b.WriteString(e.Operation)
		b.WriteString(":")
	}
	if e.Message != "" {
		b.WriteString(" ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	if e.Query != "" {
		fmt.Fprintf(&b, " (query: %s)", e.Query)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *DBError) Unwrap() error {
	return e.cause
}

// Is matches any DBError carrying the same code, so callers can test
// errors.Is(err, ErrNotFound) without caring about operation or query.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first DBError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return ""
}

// IsNotFound reports whether err is a row-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// compactQuery collapses the whitespace of multi-line SQL so it fits on one log line
func compactQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
