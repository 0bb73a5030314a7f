package storage

import (
	"context"
	"encoding/json"
)

// ID is a surrogate key type: short (int16) or long (int64)
type ID interface {
	~int16 | ~int64
}

// Ref is a foreign-key reference that is either Unloaded (id only) or Loaded
// (id plus the referenced record).
type Ref[K ID, T any] struct {
	id  K
	rec *T
}

// Unloaded returns a reference holding only the id
func Unloaded[K ID, T any](id K) Ref[K, T] {
	return Ref[K, T]{id: id}
}

// Loaded returns a reference holding the materialized record
func Loaded[K ID, T any](id K, rec *T) Ref[K, T] {
	return Ref[K, T]{id: id, rec: rec}
}

// ID returns the referenced id
func (r Ref[K, T]) ID() K {
	return r.id
}

// Valid reports whether the reference points at a row
func (r Ref[K, T]) Valid() bool {
	return r.id > 0
}

// IsLoaded reports whether the record has been materialized
func (r Ref[K, T]) IsLoaded() bool {
	return r.rec != nil
}

// Record returns the record and true if the reference is loaded
func (r Ref[K, T]) Record() (*T, bool) {
	return r.rec, r.rec != nil
}

// Resolve loads the record with load if it is not loaded yet
func (r *Ref[K, T]) Resolve(ctx context.Context, load func(context.Context, K) (*T, error)) (*T, error) {
	if r.rec != nil {
		return r.rec, nil
	}
	rec, err := load(ctx, r.id)
	if err != nil {
		return nil, err
	}
	r.rec = rec
	return rec, nil
}

// MarshalJSON writes the record when loaded, otherwise just the id
func (r Ref[K, T]) MarshalJSON() ([]byte, error) {
	if r.rec != nil {
		return json.Marshal(r.rec)
	}
	return json.Marshal(r.id)
}
