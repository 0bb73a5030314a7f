// Package tk holds the data-access objects for the TK schema: one entity type
// and one repository per table, plus the schema definition and reference-data
// seeding. Every repository method takes the caller's storage.Session.
package tk

import (
	"context"
	"math"

	"tkdb/internal/storage"
)

// short-id tables draw from the int16 range
func nextShortID[T any](ctx context.Context, s *storage.Session, t *storage.Table[T], operation string) (int16, error) {
	id, err := t.NextID(ctx, s, operation)
	if err != nil {
		return 0, err
	}
	if id > math.MaxInt16 {
		return 0, s.Invalid(operation, "%s id space exhausted", t.Name)
	}
	return int16(id), nil
}

// requireRef rejects a zero-id reference before it reaches the database
func requireRef[K storage.ID](s *storage.Session, operation, what string, id K) error {
	if id <= 0 {
		return s.Invalid(operation, "%s is required", what)
	}
	return nil
}

// touch adds UPDATED_BY/UPDATED_ON to set and returns the audit record as it
// will read back once the update succeeds
func touch(a storage.Audit, set *storage.Values, by storage.Actor) storage.Audit {
	now := storage.Now()
	set.Updated(by, now)
	if by != nil {
		a.UpdatedBy = by.AuditName()
	}
	a.UpdatedOn = &now
	return a
}

// softDelete stamps the row and, once that succeeds, the caller's audit record
func softDelete[T any](ctx context.Context, s *storage.Session, t *storage.Table[T], operation string, id any, a *storage.Audit, by storage.Actor) error {
	at := storage.Now()
	if err := t.SoftDeleteAt(ctx, s, operation, id, by, at); err != nil {
		return err
	}
	a.DeletedBy = by.AuditName()
	a.DeletedOn = &at
	return nil
}

// loadedRef wraps a caller-supplied record. A nil record yields an invalid
// reference and an id-only stub yields an unloaded one.
func loadedRef[K storage.ID, T any, P interface {
	*T
	ID() K
	IsLoaded() bool
}](rec P) storage.Ref[K, T] {
	if rec == nil {
		return storage.Ref[K, T]{}
	}
	if !rec.IsLoaded() {
		return storage.Unloaded[K, T](rec.ID())
	}
	return storage.Loaded[K, T](rec.ID(), rec)
}
