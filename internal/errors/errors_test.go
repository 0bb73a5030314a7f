package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(QueryFailed, "LookupComponentByID", "unable to prepare statement", "SELECT *\n\t\tFROM COMPONENT", cause)

	if err.Code != QueryFailed {
		t.Errorf("Code = %v, want %v", err.Code, QueryFailed)
	}
	if err.Operation != "LookupComponentByID" {
		t.Errorf("Operation = %q, want %q", err.Operation, "LookupComponentByID")
	}
	if err.Query != "SELECT * FROM COMPONENT" {
		t.Errorf("Query = %q, want whitespace collapsed", err.Query)
	}
}

func TestDBError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		operation string
		message   string
		query     string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause and query",
			code:      QueryFailed,
			operation: "AddChangeRequest",
			message:   "unable to insert row",
			query:     "INSERT INTO CHANGEREQUEST (CQ_NAME) VALUES (?)",
			cause:     errors.New("UNIQUE constraint failed"),
			wantParts: []string{"QUERY_FAILED", "AddChangeRequest", "unable to insert row", "UNIQUE constraint failed", "INSERT INTO CHANGEREQUEST"},
		},
		{
			name:      "without cause",
			code:      RowNotFound,
			operation: "LookupReleaseByName",
			message:   "row not found",
			wantParts: []string{"ROW_NOT_FOUND", "LookupReleaseByName", "row not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.operation, tt.message, tt.query, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestDBError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(ReadFailed, "ListComponents", "unable to read row", "", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	noCause := New(RowNotFound, "LookupUserByID", "row not found", "", nil)
	if noCause.Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestDBError_IsMatchesCode(t *testing.T) {
	err := New(RowNotFound, "LookupComponentByID", "row not found", "SELECT 1", nil)
	wrapped := fmt.Errorf("loading component: %w", err)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped not-found error should match ErrNotFound")
	}
	if errors.Is(wrapped, ErrQueryFailed) {
		t.Error("not-found error should not match ErrQueryFailed")
	}
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should be true")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("IsNotFound should be false for plain errors")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", New(RowCountMismatch, "op", "", "", nil))); got != RowCountMismatch {
		t.Errorf("CodeOf = %q, want %q", got, RowCountMismatch)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestDBError_JSONHidesCause(t *testing.T) {
	err := New(QueryFailed, "op", "msg", "SELECT 1", errors.New("secret driver detail"))
	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Marshal failed: %v", marshalErr)
	}
	if strings.Contains(string(data), "secret driver detail") {
		t.Errorf("JSON should not contain the cause: %s", data)
	}
	if !strings.Contains(string(data), `"code":"QUERY_FAILED"`) {
		t.Errorf("JSON missing code: %s", data)
	}
}
