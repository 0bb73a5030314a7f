package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// RELEASE columns
const (
	tableRelease   = "RELEASE"
	colReleaseID   = "RELEASE_ID"
	colReleaseName = "RELEASE_NAME"
)

// Release is a named product release; tool kits are versions of a release
type Release struct {
	id          int16
	name        string
	description string
	audit       storage.Audit
	loaded      bool
}

// NewRelease builds a release for insert
func NewRelease(name, description string) *Release {
	return &Release{name: name, description: description}
}

// ReleaseByID builds an id-only release to be loaded later
func ReleaseByID(id int16) *Release {
	return &Release{id: id}
}

func (r *Release) ID() int16            { return r.id }
func (r *Release) Name() string         { return r.name }
func (r *Release) Description() string  { return r.description }
func (r *Release) Audit() storage.Audit { return r.audit }
func (r *Release) IsLoaded() bool       { return r.loaded }

func (r *Release) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int16         `json:"id"`
		Name        string        `json:"name"`
		Description string        `json:"description,omitempty"`
		Audit       storage.Audit `json:"audit"`
	}{r.id, r.name, r.description, r.audit})
}

func scanRelease(sc storage.Scanner) (*Release, error) {
	var r Release
	var desc sql.NullString
	var a storage.AuditScan
	if err := sc.Scan(append([]any{&r.id, &r.name, &desc}, a.Dest(storage.AuditFull)...)...); err != nil {
		return nil, err
	}
	r.description = desc.String
	r.audit = a.Audit()
	r.loaded = true
	return &r, nil
}

var releaseTable = &storage.Table[Release]{
	Name:    tableRelease,
	IDCol:   colReleaseID,
	Columns: []string{colReleaseName, colDescription},
	Audit:   storage.AuditFull,
	Scan:    scanRelease,
}

// ReleaseRepository provides access to RELEASE
type ReleaseRepository struct{}

// NewReleaseRepository creates a new release repository
func NewReleaseRepository() *ReleaseRepository {
	return &ReleaseRepository{}
}

var releases = NewReleaseRepository()

// Add inserts rel and re-reads it into rel
func (r *ReleaseRepository) Add(ctx context.Context, s *storage.Session, rel *Release, by storage.Actor) error {
	const op = "AddRelease"
	if rel.name == "" {
		return s.Invalid(op, "release name is required")
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := nextShortID(ctx, tx, releaseTable, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colReleaseID, id).
			Set(colReleaseName, rel.name).
			Set(colDescription, rel.description).
			Created(by, storage.Now())
		if err := releaseTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*rel = *fresh
		return nil
	})
}

// LookupByID returns the release with id or ROW_NOT_FOUND
func (r *ReleaseRepository) LookupByID(ctx context.Context, s *storage.Session, id int16, deleted storage.Deleted) (*Release, error) {
	return releaseTable.ByID(ctx, s, "LookupReleaseByID", id, deleted)
}

// LookupByName returns the release with the given name
func (r *ReleaseRepository) LookupByName(ctx context.Context, s *storage.Session, name string, deleted storage.Deleted) (*Release, error) {
	q := releaseTable.Select(s).Where(colReleaseName+" = ?", name).NotDeleted("", deleted)
	return releaseTable.One(ctx, s, "LookupReleaseByName", q)
}

// List returns live releases ordered by name
func (r *ReleaseRepository) List(ctx context.Context, s *storage.Session) ([]*Release, error) {
	q := releaseTable.Select(s).NotDeleted("", storage.ExcludeDeleted).OrderBy(colReleaseName)
	return releaseTable.Many(ctx, s, "ListReleases", q)
}

// UpdateDescription rewrites the description of rel
func (r *ReleaseRepository) UpdateDescription(ctx context.Context, s *storage.Session, rel *Release, description string, by storage.Actor) error {
	set := storage.NewValues().Set(colDescription, description)
	audit := touch(rel.audit, set, by)
	if err := releaseTable.Update(ctx, s, "UpdateRelease", set, rel.id); err != nil {
		return err
	}
	rel.description = description
	rel.audit = audit
	return nil
}

// Delete soft-deletes rel
func (r *ReleaseRepository) Delete(ctx context.Context, s *storage.Session, rel *Release, by storage.Actor) error {
	return softDelete(ctx, s, releaseTable, "DeleteRelease", rel.id, &rel.audit, by)
}
