package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tkerrors "tkdb/internal/errors"
)

type widget struct {
	id    int64
	name  string
	audit Audit
}

var widgets = &Table[widget]{
	Name:    "WIDGET",
	IDCol:   "WIDGET_ID",
	Columns: []string{"WIDGET_NAME"},
	Audit:   AuditFull,
	Scan: func(sc Scanner) (*widget, error) {
		var w widget
		var a AuditScan
		if err := sc.Scan(append([]any{&w.id, &w.name}, a.Dest(AuditFull)...)...); err != nil {
			return nil, err
		}
		w.audit = a.Audit()
		return &w, nil
	},
}

var widgetDef = TableDef{
	Name:    "WIDGET",
	Key:     ColumnDef{Name: "WIDGET_ID", Type: LongID},
	Columns: []ColumnDef{{Name: "WIDGET_NAME", Type: Text, Size: 64, NotNull: true, Unique: true}},
	Audit:   AuditFull,
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(Options{DSN: filepath.Join(tmpDir, "data", "tk.db")}, logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})

	if err := db.ApplySchema(context.Background(), 1, []TableDef{widgetDef}, nil); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	return db
}

func addWidget(t *testing.T, s *Session, name string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := widgets.NextID(ctx, s, "AddWidget")
	if err != nil {
		t.Fatalf("Failed to get next id: %v", err)
	}
	v := NewValues().Set("WIDGET_ID", id).Set("WIDGET_NAME", name).Created(SystemActor("tester"), Now())
	if err := widgets.Insert(ctx, s, "AddWidget", v); err != nil {
		t.Fatalf("Failed to insert widget: %v", err)
	}
	return id
}

func TestDatabaseInitialization(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Open(Options{DSN: filepath.Join(tmpDir, "nested", "tk.db")}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(filepath.Join(tmpDir, "nested", "tk.db")); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}

	ctx := context.Background()
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != 0 {
		t.Errorf("Expected schema version 0 before ApplySchema, got %d", version)
	}

	if err := db.ApplySchema(ctx, 1, []TableDef{widgetDef}, nil); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	if version, _ = db.SchemaVersion(ctx); version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}

	// Re-applying the same version is a no-op
	if err := db.ApplySchema(ctx, 1, []TableDef{widgetDef}, nil); err != nil {
		t.Fatalf("Re-applying schema failed: %v", err)
	}

	if err := db.ApplySchema(ctx, 0, nil, nil); err == nil {
		t.Error("Expected error when database is newer than supported version")
	}
	if err := db.ApplySchema(ctx, 2, nil, nil); err == nil {
		t.Error("Expected error for missing migration")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle", DSN: "x"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("Expected error for unknown driver")
	}
}

func TestTable_InsertAndLookup(t *testing.T) {
	s := NewSession(setupTestDB(t))
	ctx := context.Background()

	id := addWidget(t, s, "sprocket")

	w, err := widgets.ByID(ctx, s, "LookupWidgetByID", id, ExcludeDeleted)
	if err != nil {
		t.Fatalf("Failed to look up widget: %v", err)
	}
	if w.id != id || w.name != "sprocket" {
		t.Errorf("Unexpected widget: %+v", w)
	}
	if w.audit.CreatedBy != "tester" || w.audit.CreatedOn.IsZero() {
		t.Errorf("Created audit not populated: %+v", w.audit)
	}
	if w.audit.UpdatedOn != nil || w.audit.DeletedOn != nil {
		t.Errorf("Update/delete audit should be empty: %+v", w.audit)
	}

	again, err := widgets.ByID(ctx, s, "LookupWidgetByID", id, ExcludeDeleted)
	if err != nil {
		t.Fatalf("Failed to re-read widget: %v", err)
	}
	if !reflect.DeepEqual(again, w) {
		t.Errorf("Re-read differs: %+v vs %+v", again, w)
	}
}

func TestTable_NotFound(t *testing.T) {
	s := NewSession(setupTestDB(t))

	_, err := widgets.ByID(context.Background(), s, "LookupWidgetByID", int64(999), ExcludeDeleted)
	if !errors.Is(err, tkerrors.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	var dbErr *tkerrors.DBError
	if !errors.As(err, &dbErr) {
		t.Fatalf("Expected *DBError, got %T", err)
	}
	if dbErr.Operation != "LookupWidgetByID" || dbErr.Query == "" {
		t.Errorf("Error missing context: %+v", dbErr)
	}
}

func TestFailureIsLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := Open(Options{DSN: filepath.Join(t.TempDir(), "tk.db")}, logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.ApplySchema(context.Background(), 1, []TableDef{widgetDef}, nil); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	s := NewSession(db, WithSessionID("s-1"))
	_, _ = widgets.ByID(context.Background(), s, "LookupWidgetByID", int64(42), ExcludeDeleted)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected one ERROR record, got %d:\n%s", len(lines), buf.String())
	}
	for _, want := range []string{`"session":"s-1"`, `"operation":"LookupWidgetByID"`, `"code":"ROW_NOT_FOUND"`, `"query":"SELECT`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("log record missing %s: %s", want, lines[0])
		}
	}
}

func TestTable_NextIDMonotonic(t *testing.T) {
	s := NewSession(setupTestDB(t))

	var last int64
	for i := 0; i < 5; i++ {
		id := addWidget(t, s, "w"+string(rune('a'+i)))
		if id <= last {
			t.Fatalf("Id %d not greater than previous %d", id, last)
		}
		last = id
	}
	if last != 5 {
		t.Errorf("Expected last id 5, got %d", last)
	}
}

func TestTable_UpdateAndSoftDelete(t *testing.T) {
	s := NewSession(setupTestDB(t))
	ctx := context.Background()
	id := addWidget(t, s, "gear")

	err := widgets.Update(ctx, s, "UpdateWidget", NewValues().Set("WIDGET_NAME", "cog").Updated(SystemActor("editor"), Now()), id)
	if err != nil {
		t.Fatalf("Failed to update widget: %v", err)
	}
	w, err := widgets.ByID(ctx, s, "LookupWidgetByID", id, ExcludeDeleted)
	if err != nil {
		t.Fatalf("Failed to look up widget: %v", err)
	}
	if w.name != "cog" || w.audit.UpdatedBy != "editor" || w.audit.UpdatedOn == nil {
		t.Errorf("Update not applied: %+v", w)
	}

	if err := widgets.Delete(ctx, s, "DeleteWidget", id, SystemActor("remover")); err != nil {
		t.Fatalf("Failed to delete widget: %v", err)
	}

	if _, err := widgets.ByID(ctx, s, "LookupWidgetByID", id, ExcludeDeleted); !errors.Is(err, tkerrors.ErrNotFound) {
		t.Errorf("Deleted widget should be hidden, got %v", err)
	}

	w, err = widgets.ByID(ctx, s, "LookupWidgetByID", id, IncludeDeleted)
	if err != nil {
		t.Fatalf("IncludeDeleted lookup failed: %v", err)
	}
	if !w.audit.Deleted() || w.audit.DeletedBy != "remover" {
		t.Errorf("Delete audit not populated: %+v", w.audit)
	}

	// A second delete touches no live row
	err = widgets.Delete(ctx, s, "DeleteWidget", id, SystemActor("remover"))
	if tkerrors.CodeOf(err) != tkerrors.RowCountMismatch {
		t.Errorf("Expected ROW_COUNT_MISMATCH, got %v", err)
	}

	// Updates never touch deleted rows
	err = widgets.Update(ctx, s, "UpdateWidget", NewValues().Set("WIDGET_NAME", "x").Updated(SystemActor("editor"), Now()), id)
	if tkerrors.CodeOf(err) != tkerrors.RowCountMismatch {
		t.Errorf("Expected ROW_COUNT_MISMATCH, got %v", err)
	}
}

func TestTable_MissingActor(t *testing.T) {
	s := NewSession(setupTestDB(t))
	v := NewValues().Set("WIDGET_ID", int64(1)).Set("WIDGET_NAME", "x").Created(nil, Now())

	err := widgets.Insert(context.Background(), s, "AddWidget", v)
	if tkerrors.CodeOf(err) != tkerrors.InvalidArgument {
		t.Fatalf("Expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestTable_DuplicateKeyIsQueryFailed(t *testing.T) {
	s := NewSession(setupTestDB(t))
	addWidget(t, s, "dup")

	v := NewValues().Set("WIDGET_ID", int64(50)).Set("WIDGET_NAME", "dup").Created(SystemActor("tester"), Now())
	err := widgets.Insert(context.Background(), s, "AddWidget", v)
	if tkerrors.CodeOf(err) != tkerrors.QueryFailed {
		t.Fatalf("Expected QUERY_FAILED, got %v", err)
	}
}

func TestQueryMany_OrderAndKeyBy(t *testing.T) {
	s := NewSession(setupTestDB(t))
	for _, n := range []string{"c", "a", "b"} {
		addWidget(t, s, n)
	}

	q := widgets.Select(s).NotDeleted("", ExcludeDeleted).OrderBy("WIDGET_NAME")
	list, err := widgets.Many(context.Background(), s, "ListWidgets", q)
	if err != nil {
		t.Fatalf("Failed to list widgets: %v", err)
	}
	if len(list) != 3 || list[0].name != "a" || list[2].name != "c" {
		t.Fatalf("Unexpected order: %v", list)
	}

	byName := KeyBy(list, func(w *widget) string { return w.name })
	if byName["b"] == nil || len(byName) != 3 {
		t.Errorf("KeyBy failed: %v", byName)
	}
}

func TestQueryOne_MoreThanOneRow(t *testing.T) {
	s := NewSession(setupTestDB(t))
	addWidget(t, s, "one")
	addWidget(t, s, "two")

	_, err := widgets.One(context.Background(), s, "AnyWidget", widgets.Select(s))
	if tkerrors.CodeOf(err) != tkerrors.RowCountMismatch {
		t.Fatalf("Expected ROW_COUNT_MISMATCH, got %v", err)
	}
}

func TestQueryMany_ScanFailureIsReadFailed(t *testing.T) {
	s := NewSession(setupTestDB(t))
	addWidget(t, s, "not-a-number")

	scanInt := func(sc Scanner) (*int64, error) {
		var n int64
		if err := sc.Scan(&n); err != nil {
			return nil, err
		}
		return &n, nil
	}
	recs, err := QueryMany(context.Background(), s, "ListWidgetNames", NewQuery("SELECT WIDGET_NAME FROM WIDGET"), scanInt)
	if tkerrors.CodeOf(err) != tkerrors.ReadFailed {
		t.Fatalf("Expected READ_FAILED, got %v", err)
	}
	if recs != nil {
		t.Errorf("Partial results should be discarded, got %v", recs)
	}
	var dbErr *tkerrors.DBError
	if !errors.As(err, &dbErr) || dbErr.Operation != "ListWidgetNames" {
		t.Errorf("Expected operation on error, got %v", err)
	}
}

func TestQuery_PlaceholderMismatchIsRejected(t *testing.T) {
	s := NewSession(setupTestDB(t))

	q := widgets.Select(s).Where("WIDGET_NAME = ? AND WIDGET_ID = ?", "only-one")
	_, err := widgets.Many(context.Background(), s, "ListWidgets", q)
	if tkerrors.CodeOf(err) != tkerrors.InvalidArgument {
		t.Fatalf("Expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestSession_InTxRollsBack(t *testing.T) {
	s := NewSession(setupTestDB(t))
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx *Session) error {
		addWidget(t, tx, "temp")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	list, err := widgets.Many(ctx, s, "ListWidgets", widgets.Select(s))
	if err != nil {
		t.Fatalf("Failed to list widgets: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Rolled-back insert is visible: %v", list)
	}

	err = s.InTx(ctx, func(tx *Session) error {
		addWidget(t, tx, "kept")
		return tx.InTx(ctx, func(inner *Session) error {
			addWidget(t, inner, "nested")
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if list, _ = widgets.Many(ctx, s, "ListWidgets", widgets.Select(s)); len(list) != 2 {
		t.Errorf("Expected 2 committed widgets, got %d", len(list))
	}
}

func TestSession_ID(t *testing.T) {
	db := setupTestDB(t)
	a, b := NewSession(db), NewSession(db)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("Session ids should be unique: %q %q", a.ID(), b.ID())
	}
	if got := NewSession(db, WithSessionID("fixed")).ID(); got != "fixed" {
		t.Errorf("WithSessionID ignored: %q", got)
	}
}
