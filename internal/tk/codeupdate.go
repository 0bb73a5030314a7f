package tk

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"tkdb/internal/storage"
)

// CODEUPDATE columns
const (
	tableCodeUpdate = "CODEUPDATE"
	colCodeUpdateID = "CODEUPDATE_ID"
	colRevision     = "REVISION"
	colCommittedBy  = "COMMITTED_BY"
	colCommittedOn  = "COMMITTED_ON"
)

// CodeUpdate is one source-control commit delivered into a component version
type CodeUpdate struct {
	id               int64
	revision         int64
	committedBy      string
	committedOn      time.Time
	description      string
	componentVersion storage.Ref[int64, ComponentVersion]
	audit            storage.Audit
	loaded           bool
}

// NewCodeUpdate builds a code update for insert
func NewCodeUpdate(revision int64, committedBy string, committedOn time.Time, description string, cv *ComponentVersion) *CodeUpdate {
	return &CodeUpdate{
		revision:         revision,
		committedBy:      committedBy,
		committedOn:      storage.NewTimestamp(committedOn).Time,
		description:      description,
		componentVersion: loadedRef[int64](cv),
	}
}

// CodeUpdateByID builds an id-only code update to be loaded later
func CodeUpdateByID(id int64) *CodeUpdate {
	return &CodeUpdate{id: id}
}

// Getters
func (cu *CodeUpdate) ID() int64              { return cu.id }
func (cu *CodeUpdate) Revision() int64        { return cu.revision }
func (cu *CodeUpdate) CommittedBy() string    { return cu.committedBy }
func (cu *CodeUpdate) CommittedOn() time.Time { return cu.committedOn }
func (cu *CodeUpdate) Description() string    { return cu.description }
func (cu *CodeUpdate) Audit() storage.Audit   { return cu.audit }
func (cu *CodeUpdate) IsLoaded() bool         { return cu.loaded }

func (cu *CodeUpdate) ComponentVersion() storage.Ref[int64, ComponentVersion] {
	return cu.componentVersion
}

// LoadComponentVersion resolves the component version reference
func (cu *CodeUpdate) LoadComponentVersion(ctx context.Context, s *storage.Session) (*ComponentVersion, error) {
	return cu.componentVersion.Resolve(ctx, func(ctx context.Context, id int64) (*ComponentVersion, error) {
		return componentVersions.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

func (cu *CodeUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID               int64                                `json:"id"`
		Revision         int64                                `json:"revision"`
		CommittedBy      string                               `json:"committedBy"`
		CommittedOn      time.Time                            `json:"committedOn"`
		Description      string                               `json:"description,omitempty"`
		ComponentVersion storage.Ref[int64, ComponentVersion] `json:"componentVersion"`
		Audit            storage.Audit                        `json:"audit"`
	}{cu.id, cu.revision, cu.committedBy, cu.committedOn, cu.description, cu.componentVersion, cu.audit})
}

func scanCodeUpdate(sc storage.Scanner) (*CodeUpdate, error) {
	var cu CodeUpdate
	var committedOn storage.Timestamp
	var desc sql.NullString
	var cvID int64
	var a storage.AuditScan
	dest := append([]any{&cu.id, &cu.revision, &cu.committedBy, &committedOn, &desc, &cvID},
		a.Dest(storage.AuditCreated)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	cu.committedOn = committedOn.Time
	cu.description = desc.String
	cu.componentVersion = storage.Unloaded[int64, ComponentVersion](cvID)
	cu.audit = a.Audit()
	cu.loaded = true
	return &cu, nil
}

var codeUpdateTable = &storage.Table[CodeUpdate]{
	Name:    tableCodeUpdate,
	IDCol:   colCodeUpdateID,
	Columns: []string{colRevision, colCommittedBy, colCommittedOn, colDescription, colComponentVersionID},
	Audit:   storage.AuditCreated,
	Scan:    scanCodeUpdate,
}

// RevisionRange bounds code updates by revision; zero means unbounded
type RevisionRange struct {
	From int64
	To   int64
}

// CodeUpdateRepository provides access to CODEUPDATE
type CodeUpdateRepository struct{}

// NewCodeUpdateRepository creates a new code update repository
func NewCodeUpdateRepository() *CodeUpdateRepository {
	return &CodeUpdateRepository{}
}

// Add inserts cu and re-reads it into cu
func (r *CodeUpdateRepository) Add(ctx context.Context, s *storage.Session, cu *CodeUpdate, by storage.Actor) error {
	const op = "AddCodeUpdate"
	if cu.revision <= 0 {
		return s.Invalid(op, "revision must be positive")
	}
	if err := requireRef(s, op, "component version", cu.componentVersion.ID()); err != nil {
		return err
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := codeUpdateTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colCodeUpdateID, id).
			Set(colRevision, cu.revision).
			Set(colCommittedBy, cu.committedBy).
			Set(colCommittedOn, storage.NewTimestamp(cu.committedOn)).
			Set(colDescription, cu.description).
			Set(colComponentVersionID, cu.componentVersion.ID()).
			Created(by, storage.Now())
		if err := codeUpdateTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id)
		if err != nil {
			return err
		}
		*cu = *fresh
		return nil
	})
}

// LookupByID returns the code update with id or ROW_NOT_FOUND
func (r *CodeUpdateRepository) LookupByID(ctx context.Context, s *storage.Session, id int64) (*CodeUpdate, error) {
	return codeUpdateTable.ByID(ctx, s, "LookupCodeUpdateByID", id, storage.IncludeDeleted)
}

// LookupByRevision returns the code update of cv at revision
func (r *CodeUpdateRepository) LookupByRevision(ctx context.Context, s *storage.Session, cv *ComponentVersion, revision int64) (*CodeUpdate, error) {
	q := codeUpdateTable.Select(s).
		Where(colComponentVersionID+" = ?", cv.ID()).
		Where(colRevision+" = ?", revision)
	return codeUpdateTable.One(ctx, s, "LookupCodeUpdateByRevision", q)
}

// ListByComponentVersion returns the code updates of cv within rng, ordered by revision
func (r *CodeUpdateRepository) ListByComponentVersion(ctx context.Context, s *storage.Session, cv *ComponentVersion, rng RevisionRange) ([]*CodeUpdate, error) {
	q := codeUpdateTable.Select(s).
		Where(colComponentVersionID+" = ?", cv.ID()).
		WhereIf(rng.From > 0, colRevision+" >= ?", rng.From).
		WhereIf(rng.To > 0, colRevision+" <= ?", rng.To).
		OrderBy(colRevision, colCodeUpdateID)
	return codeUpdateTable.Many(ctx, s, "ListCodeUpdatesByComponentVersion", q)
}

// Delete removes cu
func (r *CodeUpdateRepository) Delete(ctx context.Context, s *storage.Session, cu *CodeUpdate) error {
	return codeUpdateTable.HardDelete(ctx, s, "DeleteCodeUpdate", cu.id)
}
