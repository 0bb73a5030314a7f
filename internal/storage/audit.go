package storage

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// Audit column names
const (
	ColCreatedBy = "CREATED_BY"
	ColCreatedOn = "CREATED_ON"
	ColUpdatedBy = "UPDATED_BY"
	ColUpdatedOn = "UPDATED_ON"
	ColDeletedBy = "DELETED_BY"
	ColDeletedOn = "DELETED_ON"
)

// AuditKind describes which audit columns a table carries
type AuditKind int

const (
	// AuditNone tables have no audit columns and are hard-deleted
	AuditNone AuditKind = iota
	// AuditCreated tables record who inserted the row and are hard-deleted
	AuditCreated
	// AuditFull tables record create/update/delete and are soft-deleted
	AuditFull
)

// Columns returns the audit columns for the kind, in select order
func (k AuditKind) Columns() []string {
	switch k {
	case AuditCreated:
		return []string{ColCreatedBy, ColCreatedOn}
	case AuditFull:
		return []string{ColCreatedBy, ColCreatedOn, ColUpdatedBy, ColUpdatedOn, ColDeletedBy, ColDeletedOn}
	default:
		return nil
	}
}

// SoftDeletes reports whether delete marks the row instead of removing it
func (k AuditKind) SoftDeletes() bool {
	return k == AuditFull
}

// Actor is whoever is making a change; only its name is stored
type Actor interface {
	AuditName() string
}

// SystemActor is an Actor for tooling that acts without a user record
type SystemActor string

// AuditName implements Actor
func (a SystemActor) AuditName() string {
	return string(a)
}

func actorName(by Actor) (string, error) {
	if by == nil || by.AuditName() == "" {
		return "", fmt.Errorf("an actor is required for audited changes")
	}
	return by.AuditName(), nil
}

// Audit is the audit sub-record owned by an entity. Zero times mean "never".
type Audit struct {
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedOn time.Time  `json:"createdOn,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	UpdatedOn *time.Time `json:"updatedOn,omitempty"`
	DeletedBy string     `json:"deletedBy,omitempty"`
	DeletedOn *time.Time `json:"deletedOn,omitempty"`
}

// Deleted reports whether the row has been soft-deleted
func (a Audit) Deleted() bool {
	return a.DeletedOn != nil
}

// AuditScan collects audit columns during a row scan
type AuditScan struct {
	createdBy sql.NullString
	createdOn Timestamp
	updatedBy sql.NullString
	updatedOn Timestamp
	deletedBy sql.NullString
	deletedOn Timestamp
}

// Dest returns scan destinations matching kind.Columns()
func (a *AuditScan) Dest(kind AuditKind) []any {
	switch kind {
	case AuditCreated:
		return []any{&a.createdBy, &a.createdOn}
	case AuditFull:
		return []any{&a.createdBy, &a.createdOn, &a.updatedBy, &a.updatedOn, &a.deletedBy, &a.deletedOn}
	default:
		return nil
	}
}

// Audit returns the scanned values
func (a *AuditScan) Audit() Audit {
	return Audit{
		CreatedBy: a.createdBy.String,
		CreatedOn: a.createdOn.Time,
		UpdatedBy: a.updatedBy.String,
		UpdatedOn: a.updatedOn.Ptr(),
		DeletedBy: a.deletedBy.String,
		DeletedOn: a.deletedOn.Ptr(),
	}
}

// TimeLayout is the fixed-width UTC text form timestamps are written in.
// Lexical order equals chronological order, so SQLite TEXT columns sort.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Now returns the current time at the precision both dialects store
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FormatTime renders t in TimeLayout
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(TimeLayout)
}

// Timestamp is a nullable time column that scans from time.Time (Postgres)
// or text (SQLite).
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// NewTimestamp wraps t; the zero time is NULL
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC().Truncate(time.Microsecond), Valid: true}
}

// Scan implements sql.Scanner
func (ts *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ts = Timestamp{}
		return nil
	case time.Time:
		*ts = Timestamp{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
}

func (ts *Timestamp) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*ts = Timestamp{Time: t.UTC(), Valid: true}
	return nil
}

// Value implements driver.Valuer
func (ts Timestamp) Value() (driver.Value, error) {
	if !ts.Valid {
		return nil, nil
	}
	return FormatTime(ts.Time), nil
}

// Ptr returns nil for NULL, otherwise a pointer to a copy of the time
func (ts Timestamp) Ptr() *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
