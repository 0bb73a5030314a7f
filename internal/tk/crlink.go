package tk

import (
	"context"
	"encoding/json"

	"tkdb/internal/storage"
)

// Tables linking change requests to the things that deliver them
const (
	tableCompVersionCR = "COMPVERSION_X_CHANGEREQUEST"
	tableCodeUpdateCR  = "CODEUPDATE_X_CHANGEREQUEST"
	tablePackageCR     = "PACKAGE_X_CHANGEREQUEST"
)

// ChangeRequestLink ties a change request to an owning row (component
// version, code update or package).
type ChangeRequestLink struct {
	id            int64
	ownerID       int64
	changeRequest storage.Ref[int64, ChangeRequest]
	audit         storage.Audit
	loaded        bool
}

// Getters; OwnerID is the linked component version, code update or package
func (l *ChangeRequestLink) ID() int64            { return l.id }
func (l *ChangeRequestLink) OwnerID() int64       { return l.ownerID }
func (l *ChangeRequestLink) Audit() storage.Audit { return l.audit }
func (l *ChangeRequestLink) IsLoaded() bool       { return l.loaded }

func (l *ChangeRequestLink) ChangeRequest() storage.Ref[int64, ChangeRequest] {
	return l.changeRequest
}

// LoadChangeRequest resolves the change request reference
func (l *ChangeRequestLink) LoadChangeRequest(ctx context.Context, s *storage.Session) (*ChangeRequest, error) {
	return l.changeRequest.Resolve(ctx, func(ctx context.Context, id int64) (*ChangeRequest, error) {
		return changeRequests.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

func (l *ChangeRequestLink) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            int64                             `json:"id"`
		OwnerID       int64                             `json:"ownerId"`
		ChangeRequest storage.Ref[int64, ChangeRequest] `json:"changeRequest"`
		Audit         storage.Audit                     `json:"audit"`
	}{l.id, l.ownerID, l.changeRequest, l.audit})
}

func scanChangeRequestLink(sc storage.Scanner) (*ChangeRequestLink, error) {
	var l ChangeRequestLink
	var crID int64
	var a storage.AuditScan
	if err := sc.Scan(append([]any{&l.id, &l.ownerID, &crID}, a.Dest(storage.AuditCreated)...)...); err != nil {
		return nil, err
	}
	l.changeRequest = storage.Unloaded[int64, ChangeRequest](crID)
	l.audit = a.Audit()
	l.loaded = true
	return &l, nil
}

// ChangeRequestLinkRepository is the DAO shared by the *_X_CHANGEREQUEST
// tables. Links carry created audit only and are hard-deleted.
type ChangeRequestLinkRepository struct {
	entity   string
	ownerCol string
	table    *storage.Table[ChangeRequestLink]
}

func newChangeRequestLinkRepository(entity, table, ownerCol string) *ChangeRequestLinkRepository {
	return &ChangeRequestLinkRepository{
		entity:   entity,
		ownerCol: ownerCol,
		table: &storage.Table[ChangeRequestLink]{
			Name:    table,
			IDCol:   table + "_ID",
			Columns: []string{ownerCol, colChangeRequestID},
			Audit:   storage.AuditCreated,
			Scan:    scanChangeRequestLink,
		},
	}
}

// NewCompVersionChangeRequestRepository links change requests to component versions
func NewCompVersionChangeRequestRepository() *ChangeRequestLinkRepository {
	return newChangeRequestLinkRepository("CompVersionChangeRequest", tableCompVersionCR, colComponentVersionID)
}

// NewCodeUpdateChangeRequestRepository links change requests to code updates
func NewCodeUpdateChangeRequestRepository() *ChangeRequestLinkRepository {
	return newChangeRequestLinkRepository("CodeUpdateChangeRequest", tableCodeUpdateCR, colCodeUpdateID)
}

// NewPackageChangeRequestRepository links change requests to packages
func NewPackageChangeRequestRepository() *ChangeRequestLinkRepository {
	return newChangeRequestLinkRepository("PackageChangeRequest", tablePackageCR, colPackageID)
}

// TableName returns the unqualified table name
func (r *ChangeRequestLinkRepository) TableName() string {
	return r.table.Name
}

// Link records cr against ownerID and returns the new link
func (r *ChangeRequestLinkRepository) Link(ctx context.Context, s *storage.Session, ownerID int64, cr *ChangeRequest, by storage.Actor) (*ChangeRequestLink, error) {
	op := "Add" + r.entity
	if err := requireRef(s, op, r.ownerCol, ownerID); err != nil {
		return nil, err
	}
	if cr == nil {
		return nil, s.Invalid(op, "change request is required")
	}

	var out *ChangeRequestLink
	err := s.InTx(ctx, func(tx *storage.Session) error {
		id, err := r.table.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(r.table.IDCol, id).
			Set(r.ownerCol, ownerID).
			Set(colChangeRequestID, cr.ID()).
			Created(by, storage.Now())
		if err := r.table.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		out, err = r.LookupByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LookupByID returns the link with id or ROW_NOT_FOUND
func (r *ChangeRequestLinkRepository) LookupByID(ctx context.Context, s *storage.Session, id int64) (*ChangeRequestLink, error) {
	return r.table.ByID(ctx, s, "Lookup"+r.entity+"ByID", id, storage.IncludeDeleted)
}

// LookupByPair returns the link between ownerID and cr
func (r *ChangeRequestLinkRepository) LookupByPair(ctx context.Context, s *storage.Session, ownerID int64, cr *ChangeRequest) (*ChangeRequestLink, error) {
	q := r.table.Select(s).
		Where(r.ownerCol+" = ?", ownerID).
		Where(colChangeRequestID+" = ?", cr.ID())
	return r.table.One(ctx, s, "Lookup"+r.entity+"ByPair", q)
}

// ListByOwner returns the links of one owner in insertion order
func (r *ChangeRequestLinkRepository) ListByOwner(ctx context.Context, s *storage.Session, ownerID int64) ([]*ChangeRequestLink, error) {
	q := r.table.Select(s).Where(r.ownerCol+" = ?", ownerID).OrderBy(r.table.IDCol)
	return r.table.Many(ctx, s, "List"+r.entity+"ByOwner", q)
}

// ListByChangeRequest returns the links of one change request
func (r *ChangeRequestLinkRepository) ListByChangeRequest(ctx context.Context, s *storage.Session, cr *ChangeRequest) ([]*ChangeRequestLink, error) {
	q := r.table.Select(s).Where(colChangeRequestID+" = ?", cr.ID()).OrderBy(r.table.IDCol)
	return r.table.Many(ctx, s, "List"+r.entity+"ByChangeRequest", q)
}

// Unlink removes the link
func (r *ChangeRequestLinkRepository) Unlink(ctx context.Context, s *storage.Session, l *ChangeRequestLink) error {
	return r.table.HardDelete(ctx, s, "Delete"+r.entity, l.id)
}
