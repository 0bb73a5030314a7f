package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimestamp_Scan(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC)

	tests := []struct {
		name string
		src  any
	}{
		{"time", want.In(time.FixedZone("CET", 3600))},
		{"string", "2024-03-01T12:30:45.123456Z"},
		{"bytes", []byte("2024-03-01T13:30:45.123456+01:00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := ts.Scan(tt.src); err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if !ts.Valid || !ts.Time.Equal(want) || ts.Time.Location() != time.UTC {
				t.Errorf("got %v (valid=%v), want %v", ts.Time, ts.Valid, want)
			}
		})
	}

	var ts Timestamp
	if err := ts.Scan(nil); err != nil || ts.Valid {
		t.Errorf("nil scan: valid=%v err=%v", ts.Valid, err)
	}
	if err := ts.Scan("yesterday"); err == nil {
		t.Error("expected error for garbage timestamp")
	}
	if err := ts.Scan(42); err == nil {
		t.Error("expected error for int source")
	}
}

func TestTimestamp_Value(t *testing.T) {
	v, err := Timestamp{}.Value()
	if err != nil || v != nil {
		t.Errorf("NULL Value = %v, %v", v, err)
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 5, time.UTC)
	v, err = NewTimestamp(at).Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != "2024-03-01T12:00:00.000000Z" {
		t.Errorf("Value = %v", v)
	}
}

func TestFormatTime_SortsLexically(t *testing.T) {
	a := FormatTime(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	b := FormatTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 3*3600)))
	// b is 07:00 UTC, earlier than a
	if !(b < a) {
		t.Errorf("expected %q < %q", b, a)
	}
}

func TestAuditKind(t *testing.T) {
	if len(AuditNone.Columns()) != 0 || len(AuditCreated.Columns()) != 2 || len(AuditFull.Columns()) != 6 {
		t.Error("unexpected audit column counts")
	}
	if AuditCreated.SoftDeletes() || !AuditFull.SoftDeletes() {
		t.Error("only full-audit tables soft delete")
	}
	if got := SystemActor("loader").AuditName(); got != "loader" {
		t.Errorf("AuditName = %q", got)
	}
}

type part struct{ name string }

func TestRef(t *testing.T) {
	r := Unloaded[int16, part](3)
	if !r.Valid() || r.IsLoaded() || r.ID() != 3 {
		t.Fatalf("unexpected unloaded ref: %+v", r)
	}
	if _, ok := r.Record(); ok {
		t.Error("unloaded ref should not have a record")
	}

	calls := 0
	load := func(_ context.Context, id int16) (*part, error) {
		calls++
		return &part{name: "p"}, nil
	}

	for i := 0; i < 2; i++ {
		p, err := r.Resolve(context.Background(), load)
		if err != nil || p.name != "p" {
			t.Fatalf("Resolve = %v, %v", p, err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}
	if !r.IsLoaded() {
		t.Error("ref should be loaded after Resolve")
	}

	failing := Unloaded[int64, part](9)
	if _, err := failing.Resolve(context.Background(), func(context.Context, int64) (*part, error) {
		return nil, errors.New("gone")
	}); err == nil {
		t.Error("expected loader error")
	}
	if failing.IsLoaded() {
		t.Error("failed Resolve must leave the ref unloaded")
	}

	if Unloaded[int64, part](0).Valid() {
		t.Error("zero id is not a valid reference")
	}
}
