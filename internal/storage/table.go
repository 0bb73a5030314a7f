package storage

import (
	"context"
	"strings"
	"time"

	tkerrors "tkdb/internal/errors"
)

// Values is an ordered column/value list for INSERT and UPDATE statements
type Values struct {
	cols []string
	args []any
	err  error
}

// NewValues starts an empty value list
func NewValues() *Values {
	return &Values{}
}

// Set adds one column
func (v *Values) Set(col string, arg any) *Values {
	v.cols = append(v.cols, col)
	v.args = append(v.args, arg)
	return v
}

// SetIf adds the column only when ok is true
func (v *Values) SetIf(ok bool, col string, arg any) *Values {
	if ok {
		return v.Set(col, arg)
	}
	return v
}

// Created adds CREATED_BY and CREATED_ON
func (v *Values) Created(by Actor, at time.Time) *Values {
	return v.stamp(ColCreatedBy, ColCreatedOn, by, at)
}

// Updated adds UPDATED_BY and UPDATED_ON
func (v *Values) Updated(by Actor, at time.Time) *Values {
	return v.stamp(ColUpdatedBy, ColUpdatedOn, by, at)
}

// Deleted adds DELETED_BY and DELETED_ON
func (v *Values) Deleted(by Actor, at time.Time) *Values {
	return v.stamp(ColDeletedBy, ColDeletedOn, by, at)
}

func (v *Values) stamp(byCol, onCol string, by Actor, at time.Time) *Values {
	name, err := actorName(by)
	if err != nil && v.err == nil {
		v.err = err
	}
	return v.Set(byCol, name).Set(onCol, NewTimestamp(at))
}

// Len returns the number of columns
func (v *Values) Len() int {
	return len(v.cols)
}

// Err reports an invalid value, such as a missing actor
func (v *Values) Err() error {
	return v.err
}

// Table holds the constant shape of one TK table and implements the shared
// lookup, insert, update and delete sequences over it.
type Table[T any] struct {
	// Name is the unqualified table name
	Name string
	// IDCol is the surrogate key column
	IDCol string
	// Columns are the business columns selected after IDCol
	Columns []string
	// Audit selects the trailing audit columns and the delete mode
	Audit AuditKind
	// Scan maps a row of SelectColumns
	Scan ScanFunc[T]
}

// SelectColumns returns the columns in select order: id, business, audit
func (t *Table[T]) SelectColumns() []string {
	cols := make([]string, 0, 1+len(t.Columns)+6)
	cols = append(cols, t.IDCol)
	cols = append(cols, t.Columns...)
	return append(cols, t.Audit.Columns()...)
}

// Select starts "SELECT <columns> FROM <table>"
func (t *Table[T]) Select(s *Session) *Query {
	return NewQuery("SELECT " + columnList("", t.SelectColumns()) + " FROM " + s.Qualify(t.Name))
}

// SelectAs starts "SELECT a.<columns> FROM <table> a" for joins
func (t *Table[T]) SelectAs(s *Session, alias string) *Query {
	return NewQuery("SELECT " + columnList(alias+".", t.SelectColumns()) + " FROM " + s.Qualify(t.Name) + " " + alias)
}

// NotDeleted applies the soft-delete filter when the table has one
func (t *Table[T]) NotDeleted(q *Query, prefix string, deleted Deleted) *Query {
	if !t.Audit.SoftDeletes() {
		return q
	}
	return q.NotDeleted(prefix, deleted)
}

// ByID returns exactly one row by surrogate key
func (t *Table[T]) ByID(ctx context.Context, s *Session, operation string, id any, deleted Deleted) (*T, error) {
	q := t.Select(s).Where(t.IDCol+" = ?", id)
	t.NotDeleted(q, "", deleted)
	return QueryOne(ctx, s, operation, q, t.Scan)
}

// One runs a single-row query with the table's row mapper
func (t *Table[T]) One(ctx context.Context, s *Session, operation string, q *Query) (*T, error) {
	return QueryOne(ctx, s, operation, q, t.Scan)
}

// Many runs a collection query with the table's row mapper
func (t *Table[T]) Many(ctx context.Context, s *Session, operation string, q *Query) ([]*T, error) {
	return QueryMany(ctx, s, operation, q, t.Scan)
}

// NextID returns the next application-managed id
func (t *Table[T]) NextID(ctx context.Context, s *Session, operation string) (int64, error) {
	return NextID(ctx, s, operation, t.Name, t.IDCol)
}

// Insert writes one row; v must include the id and audit columns
func (t *Table[T]) Insert(ctx context.Context, s *Session, operation string, v *Values) error {
	if err := v.Err(); err != nil {
		return s.fail(tkerrors.InvalidArgument, operation, err.Error(), "", nil)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", v.Len()), ", ")
	q := NewQuery("INSERT INTO "+s.Qualify(t.Name)+" ("+columnList("", v.cols)+") VALUES ("+marks+")", v.args...)
	_, err := Exec(ctx, s, operation, "insert", q, 1)
	return err
}

// Update sets the columns in set on the live row with the given id. For
// full-audit tables set should include Updated.
func (t *Table[T]) Update(ctx context.Context, s *Session, operation string, set *Values, id any) error {
	if err := set.Err(); err != nil {
		return s.fail(tkerrors.InvalidArgument, operation, err.Error(), "", nil)
	}
	if set.Len() == 0 {
		return s.fail(tkerrors.InvalidArgument, operation, "no columns to update", "", nil)
	}

	assigns := make([]string, len(set.cols))
	for i, c := range set.cols {
		assigns[i] = c + " = ?"
	}
	q := NewQuery("UPDATE "+s.Qualify(t.Name)+" SET "+strings.Join(assigns, ", "), set.args...).
		Where(t.IDCol+" = ?", id)
	t.NotDeleted(q, "", ExcludeDeleted)

	_, err := Exec(ctx, s, operation, "update", q, 1)
	return err
}

// SoftDelete stamps DELETED_BY/DELETED_ON on a live row
func (t *Table[T]) SoftDelete(ctx context.Context, s *Session, operation string, id any, by Actor) error {
	return t.SoftDeleteAt(ctx, s, operation, id, by, Now())
}

// SoftDeleteAt is SoftDelete with a caller-chosen DELETED_ON
func (t *Table[T]) SoftDeleteAt(ctx context.Context, s *Session, operation string, id any, by Actor, at time.Time) error {
	set := NewValues().Deleted(by, at)
	if err := set.Err(); err != nil {
		return s.fail(tkerrors.InvalidArgument, operation, err.Error(), "", nil)
	}
	q := NewQuery("UPDATE "+s.Qualify(t.Name)+" SET "+ColDeletedBy+" = ?, "+ColDeletedOn+" = ?", set.args...).
		Where(t.IDCol+" = ?", id).
		Where(ColDeletedOn + " IS NULL")
	_, err := Exec(ctx, s, operation, "delete", q, 1)
	return err
}

// HardDelete removes the row
func (t *Table[T]) HardDelete(ctx context.Context, s *Session, operation string, id any) error {
	q := NewQuery("DELETE FROM "+s.Qualify(t.Name)).Where(t.IDCol+" = ?", id)
	_, err := Exec(ctx, s, operation, "delete", q, 1)
	return err
}

// Delete soft-deletes full-audit tables and hard-deletes the rest
func (t *Table[T]) Delete(ctx context.Context, s *Session, operation string, id any, by Actor) error {
	if t.Audit.SoftDeletes() {
		return t.SoftDelete(ctx, s, operation, id, by)
	}
	return t.HardDelete(ctx, s, operation, id)
}
