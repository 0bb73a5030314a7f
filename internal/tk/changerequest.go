package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// CHANGEREQUEST columns
const (
	tableChangeRequest = "CHANGEREQUEST"
	colChangeRequestID = "CHANGEREQUEST_ID"
	colCQName          = "CQ_NAME"
	colHeadline        = "HEADLINE"
)

// ChangeRequest is a tracked defect or feature against a component
type ChangeRequest struct {
	id          int64
	name        string
	headline    string
	description string
	status      storage.Ref[int16, ChangeRequestStatus]
	crType      storage.Ref[int16, ChangeRequestType]
	severity    storage.Ref[int16, ChangeRequestSeverity]
	component   storage.Ref[int16, Component]
	audit       storage.Audit
	loaded      bool
}

// NewChangeRequest builds a change request for insert
func NewChangeRequest(name, headline, description string, status *ChangeRequestStatus, crType *ChangeRequestType, severity *ChangeRequestSeverity, component *Component) *ChangeRequest {
	return &ChangeRequest{
		name:        name,
		headline:    headline,
		description: description,
		status:      loadedRef[int16](status),
		crType:      loadedRef[int16](crType),
		severity:    loadedRef[int16](severity),
		component:   loadedRef[int16](component),
	}
}

// ChangeRequestByID builds an id-only change request to be loaded later
func ChangeRequestByID(id int64) *ChangeRequest {
	return &ChangeRequest{id: id}
}

// Getters; IsLoaded reports whether the record was read from the database
func (cr *ChangeRequest) ID() int64            { return cr.id }
func (cr *ChangeRequest) Name() string         { return cr.name }
func (cr *ChangeRequest) Headline() string     { return cr.headline }
func (cr *ChangeRequest) Description() string  { return cr.description }
func (cr *ChangeRequest) Audit() storage.Audit { return cr.audit }
func (cr *ChangeRequest) IsLoaded() bool       { return cr.loaded }

func (cr *ChangeRequest) Status() storage.Ref[int16, ChangeRequestStatus] { return cr.status }
func (cr *ChangeRequest) Type() storage.Ref[int16, ChangeRequestType]     { return cr.crType }
func (cr *ChangeRequest) Severity() storage.Ref[int16, ChangeRequestSeverity] {
	return cr.severity
}
func (cr *ChangeRequest) Component() storage.Ref[int16, Component] { return cr.component }

// LoadStatus resolves the status reference
func (cr *ChangeRequest) LoadStatus(ctx context.Context, s *storage.Session) (*ChangeRequestStatus, error) {
	return cr.status.Resolve(ctx, func(ctx context.Context, id int16) (*ChangeRequestStatus, error) {
		return crStatuses.LookupByID(ctx, s, id)
	})
}

// LoadType resolves the type reference
func (cr *ChangeRequest) LoadType(ctx context.Context, s *storage.Session) (*ChangeRequestType, error) {
	return cr.crType.Resolve(ctx, func(ctx context.Context, id int16) (*ChangeRequestType, error) {
		return crTypes.LookupByID(ctx, s, id)
	})
}

// LoadSeverity resolves the severity reference
func (cr *ChangeRequest) LoadSeverity(ctx context.Context, s *storage.Session) (*ChangeRequestSeverity, error) {
	return cr.severity.Resolve(ctx, func(ctx context.Context, id int16) (*ChangeRequestSeverity, error) {
		return crSeverities.LookupByID(ctx, s, id)
	})
}

// LoadComponent resolves the component reference
func (cr *ChangeRequest) LoadComponent(ctx context.Context, s *storage.Session) (*Component, error) {
	return cr.component.Resolve(ctx, func(ctx context.Context, id int16) (*Component, error) {
		return components.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

// LoadAll resolves every reference of cr
func (cr *ChangeRequest) LoadAll(ctx context.Context, s *storage.Session) error {
	if _, err := cr.LoadStatus(ctx, s); err != nil {
		return err
	}
	if _, err := cr.LoadType(ctx, s); err != nil {
		return err
	}
	if _, err := cr.LoadSeverity(ctx, s); err != nil {
		return err
	}
	_, err := cr.LoadComponent(ctx, s)
	return err
}

func (cr *ChangeRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int64                                     `json:"id"`
		Name        string                                    `json:"name"`
		Headline    string                                    `json:"headline"`
		Description string                                    `json:"description,omitempty"`
		Status      storage.Ref[int16, ChangeRequestStatus]   `json:"status"`
		Type        storage.Ref[int16, ChangeRequestType]     `json:"type"`
		Severity    storage.Ref[int16, ChangeRequestSeverity] `json:"severity"`
		Component   storage.Ref[int16, Component]             `json:"component"`
		Audit       storage.Audit                             `json:"audit"`
	}{cr.id, cr.name, cr.headline, cr.description, cr.status, cr.crType, cr.severity, cr.component, cr.audit})
}

func scanChangeRequest(sc storage.Scanner) (*ChangeRequest, error) {
	var cr ChangeRequest
	var headline, desc sql.NullString
	var statusID, typeID, severityID, componentID int16
	var a storage.AuditScan
	dest := append([]any{&cr.id, &cr.name, &headline, &desc, &statusID, &typeID, &severityID, &componentID},
		a.Dest(storage.AuditFull)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	cr.headline = headline.String
	cr.description = desc.String
	cr.status = storage.Unloaded[int16, ChangeRequestStatus](statusID)
	cr.crType = storage.Unloaded[int16, ChangeRequestType](typeID)
	cr.severity = storage.Unloaded[int16, ChangeRequestSeverity](severityID)
	cr.component = storage.Unloaded[int16, Component](componentID)
	cr.audit = a.Audit()
	cr.loaded = true
	return &cr, nil
}

var changeRequestTable = &storage.Table[ChangeRequest]{
	Name:  tableChangeRequest,
	IDCol: colChangeRequestID,
	Columns: []string{colCQName, colHeadline, colDescription,
		colStatusID, colTypeID, colSeverityID, colComponentID},
	Audit: storage.AuditFull,
	Scan:  scanChangeRequest,
}

// ChangeRequestRepository provides access to CHANGEREQUEST
type ChangeRequestRepository struct{}

// NewChangeRequestRepository creates a new change request repository
func NewChangeRequestRepository() *ChangeRequestRepository {
	return &ChangeRequestRepository{}
}

var changeRequests = NewChangeRequestRepository()

// Add inserts cr and re-reads it into cr
func (r *ChangeRequestRepository) Add(ctx context.Context, s *storage.Session, cr *ChangeRequest, by storage.Actor) error {
	const op = "AddChangeRequest"
	if cr.name == "" {
		return s.Invalid(op, "change request name is required")
	}
	refs := []struct {
		what string
		id   int16
	}{
		{"status", cr.status.ID()},
		{"type", cr.crType.ID()},
		{"severity", cr.severity.ID()},
		{"component", cr.component.ID()},
	}
	for _, ref := range refs {
		if err := requireRef(s, op, ref.what, ref.id); err != nil {
			return err
		}
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := changeRequestTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colChangeRequestID, id).
			Set(colCQName, cr.name).
			Set(colHeadline, cr.headline).
			Set(colDescription, cr.description).
			Set(colStatusID, cr.status.ID()).
			Set(colTypeID, cr.crType.ID()).
			Set(colSeverityID, cr.severity.ID()).
			Set(colComponentID, cr.component.ID()).
			Created(by, storage.Now())
		if err := changeRequestTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*cr = *fresh
		return nil
	})
}

// LookupByID returns the change request with id or ROW_NOT_FOUND
func (r *ChangeRequestRepository) LookupByID(ctx context.Context, s *storage.Session, id int64, deleted storage.Deleted) (*ChangeRequest, error) {
	return changeRequestTable.ByID(ctx, s, "LookupChangeRequestByID", id, deleted)
}

// LookupByName returns the change request with the given CQ name
func (r *ChangeRequestRepository) LookupByName(ctx context.Context, s *storage.Session, name string, deleted storage.Deleted) (*ChangeRequest, error) {
	q := changeRequestTable.Select(s).Where(colCQName+" = ?", name).NotDeleted("", deleted)
	return changeRequestTable.One(ctx, s, "LookupChangeRequestByName", q)
}

// ChangeRequestFilter narrows List; zero fields are ignored
type ChangeRequestFilter struct {
	Component *Component
	Status    *ChangeRequestStatus
	Type      *ChangeRequestType
	Severity  *ChangeRequestSeverity
	// Pattern matches CQ name or headline, with '*' wildcards
	Pattern string
	Deleted storage.Deleted
}

// List returns change requests matching f ordered by CQ name
func (r *ChangeRequestRepository) List(ctx context.Context, s *storage.Session, f ChangeRequestFilter) ([]*ChangeRequest, error) {
	q := changeRequestTable.Select(s)
	if f.Component != nil {
		q.Where(colComponentID+" = ?", f.Component.ID())
	}
	if f.Status != nil {
		q.Where(colStatusID+" = ?", f.Status.ID())
	}
	if f.Type != nil {
		q.Where(colTypeID+" = ?", f.Type.ID())
	}
	if f.Severity != nil {
		q.Where(colSeverityID+" = ?", f.Severity.ID())
	}
	if f.Pattern != "" {
		like := storage.Like(f.Pattern)
		q.Where("(UPPER("+colCQName+") LIKE UPPER(?)"+storage.LikeEscape+" OR UPPER("+colHeadline+") LIKE UPPER(?)"+storage.LikeEscape+")", like, like)
	}
	q.NotDeleted("", f.Deleted).OrderBy(colCQName)
	return changeRequestTable.Many(ctx, s, "ListChangeRequests", q)
}

// History returns the live change requests delivered with component in
// toolKit, ordered by CQ name. When location is non-nil only versions
// installed there count.
func (r *ChangeRequestRepository) History(ctx context.Context, s *storage.Session, component *Component, toolKit *ToolKit, location *Location) ([]*ChangeRequest, error) {
	const op = "ChangeRequestHistory"
	if component == nil || toolKit == nil {
		return nil, s.Invalid(op, "component and tool kit are required")
	}

	// EXISTS keeps one row per change request however many versions link it
	match := "EXISTS (SELECT 1 FROM " + s.Qualify(tableCompVersionCR) + " x" +
		" JOIN " + s.Qualify(tableComponentVersion) + " cv ON cv." + colComponentVersionID + " = x." + colComponentVersionID +
		" WHERE x." + colChangeRequestID + " = cr." + colChangeRequestID +
		" AND cv." + colComponentID + " = ?" +
		" AND cv." + colToolKitID + " = ?" +
		" AND cv." + storage.ColDeletedOn + " IS NULL"
	args := []any{component.ID(), toolKit.ID()}
	if location != nil {
		match += " AND EXISTS (SELECT 1 FROM " + s.Qualify(tableCompVersionLoc) + " l" +
			" WHERE l." + colComponentVersionID + " = cv." + colComponentVersionID +
			" AND l." + colLocationID + " = ?" +
			" AND l." + storage.ColDeletedOn + " IS NULL)"
		args = append(args, location.ID())
	}
	q := changeRequestTable.SelectAs(s, "cr").
		Where(match+")", args...).
		NotDeleted("cr.", storage.ExcludeDeleted)
	q.OrderBy("cr." + colCQName)

	return changeRequestTable.Many(ctx, s, op, q)
}

// UpdateStatus moves cr to another workflow status
func (r *ChangeRequestRepository) UpdateStatus(ctx context.Context, s *storage.Session, cr *ChangeRequest, status *ChangeRequestStatus, by storage.Actor) error {
	const op = "UpdateChangeRequestStatus"
	if status == nil {
		return s.Invalid(op, "status is required")
	}
	set := storage.NewValues().Set(colStatusID, status.ID())
	audit := touch(cr.audit, set, by)
	if err := changeRequestTable.Update(ctx, s, op, set, cr.id); err != nil {
		return err
	}
	cr.status = loadedRef[int16](status)
	cr.audit = audit
	return nil
}

// ChangeRequestUpdate lists optional changes; nil fields are left alone
type ChangeRequestUpdate struct {
	Headline    *string
	Description *string
	Type        *ChangeRequestType
	Severity    *ChangeRequestSeverity
}

// Update applies u to cr; only the supplied columns are written
func (r *ChangeRequestRepository) Update(ctx context.Context, s *storage.Session, cr *ChangeRequest, u ChangeRequestUpdate, by storage.Actor) error {
	const op = "UpdateChangeRequest"
	set := storage.NewValues()
	if u.Headline != nil {
		set.Set(colHeadline, *u.Headline)
	}
	if u.Description != nil {
		set.Set(colDescription, *u.Description)
	}
	if u.Type != nil {
		set.Set(colTypeID, u.Type.ID())
	}
	if u.Severity != nil {
		set.Set(colSeverityID, u.Severity.ID())
	}
	if set.Len() == 0 {
		return s.Invalid(op, "nothing to update")
	}

	audit := touch(cr.audit, set, by)
	if err := changeRequestTable.Update(ctx, s, op, set, cr.id); err != nil {
		return err
	}
	if u.Headline != nil {
		cr.headline = *u.Headline
	}
	if u.Description != nil {
		cr.description = *u.Description
	}
	if u.Type != nil {
		cr.crType = loadedRef[int16](u.Type)
	}
	if u.Severity != nil {
		cr.severity = loadedRef[int16](u.Severity)
	}
	cr.audit = audit
	return nil
}

// Delete soft-deletes cr
func (r *ChangeRequestRepository) Delete(ctx context.Context, s *storage.Session, cr *ChangeRequest, by storage.Actor) error {
	return softDelete(ctx, s, changeRequestTable, "DeleteChangeRequest", cr.id, &cr.audit, by)
}
