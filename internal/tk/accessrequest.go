package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// ACCESS_REQUEST columns
const (
	tableAccessRequest = "ACCESS_REQUEST"
	colAccessRequestID = "ACCESS_REQUEST_ID"
	colReason          = "REASON"
	colState           = "STATE"
)

// AccessState is the workflow state of an access request
type AccessState string

const (
	AccessRequested AccessState = "REQUESTED"
	AccessApproved  AccessState = "APPROVED"
	AccessDenied    AccessState = "DENIED"
)

// Valid reports whether st is one of the known states
func (st AccessState) Valid() bool {
	switch st {
	case AccessRequested, AccessApproved, AccessDenied:
		return true
	}
	return false
}

// AccessRequest asks for a user to be given access to a component
type AccessRequest struct {
	id        int64
	reason    string
	state     AccessState
	user      storage.Ref[int64, User]
	component storage.Ref[int16, Component]
	audit     storage.Audit
	loaded    bool
}

// NewAccessRequest builds a request in the REQUESTED state
func NewAccessRequest(user *User, component *Component, reason string) *AccessRequest {
	return &AccessRequest{
		reason:    reason,
		state:     AccessRequested,
		user:      loadedRef[int64](user),
		component: loadedRef[int16](component),
	}
}

// Getters
func (a *AccessRequest) ID() int64                                { return a.id }
func (a *AccessRequest) Reason() string                           { return a.reason }
func (a *AccessRequest) State() AccessState                       { return a.state }
func (a *AccessRequest) User() storage.Ref[int64, User]           { return a.user }
func (a *AccessRequest) Component() storage.Ref[int16, Component] { return a.component }
func (a *AccessRequest) Audit() storage.Audit                     { return a.audit }
func (a *AccessRequest) IsLoaded() bool                           { return a.loaded }

// LoadUser resolves the user reference
func (a *AccessRequest) LoadUser(ctx context.Context, s *storage.Session) (*User, error) {
	return a.user.Resolve(ctx, func(ctx context.Context, id int64) (*User, error) {
		return users.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

// LoadComponent resolves the component reference
func (a *AccessRequest) LoadComponent(ctx context.Context, s *storage.Session) (*Component, error) {
	return a.component.Resolve(ctx, func(ctx context.Context, id int16) (*Component, error) {
		return components.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

func (a *AccessRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        int64                         `json:"id"`
		Reason    string                        `json:"reason,omitempty"`
		State     AccessState                   `json:"state"`
		User      storage.Ref[int64, User]      `json:"user"`
		Component storage.Ref[int16, Component] `json:"component"`
		Audit     storage.Audit                 `json:"audit"`
	}{a.id, a.reason, a.state, a.user, a.component, a.audit})
}

func scanAccessRequest(sc storage.Scanner) (*AccessRequest, error) {
	var ar AccessRequest
	var reason sql.NullString
	var state string
	var userID int64
	var componentID int16
	var a storage.AuditScan
	dest := append([]any{&ar.id, &reason, &state, &userID, &componentID}, a.Dest(storage.AuditFull)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	ar.reason = reason.String
	ar.state = AccessState(state)
	ar.user = storage.Unloaded[int64, User](userID)
	ar.component = storage.Unloaded[int16, Component](componentID)
	ar.audit = a.Audit()
	ar.loaded = true
	return &ar, nil
}

var accessRequestTable = &storage.Table[AccessRequest]{
	Name:    tableAccessRequest,
	IDCol:   colAccessRequestID,
	Columns: []string{colReason, colState, colUserID, colComponentID},
	Audit:   storage.AuditFull,
	Scan:    scanAccessRequest,
}

// AccessRequestRepository provides access to ACCESS_REQUEST
type AccessRequestRepository struct{}

// NewAccessRequestRepository creates a new access request repository
func NewAccessRequestRepository() *AccessRequestRepository {
	return &AccessRequestRepository{}
}

// Add inserts ar and re-reads it into ar
func (r *AccessRequestRepository) Add(ctx context.Context, s *storage.Session, ar *AccessRequest, by storage.Actor) error {
	const op = "AddAccessRequest"
	if err := requireRef(s, op, "user", ar.user.ID()); err != nil {
		return err
	}
	if err := requireRef(s, op, "component", ar.component.ID()); err != nil {
		return err
	}
	if ar.state == "" {
		ar.state = AccessRequested
	}
	if !ar.state.Valid() {
		return s.Invalid(op, "unknown access state %q", ar.state)
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := accessRequestTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colAccessRequestID, id).
			Set(colReason, ar.reason).
			Set(colState, string(ar.state)).
			Set(colUserID, ar.user.ID()).
			Set(colComponentID, ar.component.ID()).
			Created(by, storage.Now())
		if err := accessRequestTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*ar = *fresh
		return nil
	})
}

// LookupByID returns the request with id or ROW_NOT_FOUND
func (r *AccessRequestRepository) LookupByID(ctx context.Context, s *storage.Session, id int64, deleted storage.Deleted) (*AccessRequest, error) {
	return accessRequestTable.ByID(ctx, s, "LookupAccessRequestByID", id, deleted)
}

// ListByUser returns the live requests raised for user
func (r *AccessRequestRepository) ListByUser(ctx context.Context, s *storage.Session, user *User) ([]*AccessRequest, error) {
	q := accessRequestTable.Select(s).
		Where(colUserID+" = ?", user.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colAccessRequestID)
	return accessRequestTable.Many(ctx, s, "ListAccessRequestsByUser", q)
}

// ListByComponent returns the live requests against component
func (r *AccessRequestRepository) ListByComponent(ctx context.Context, s *storage.Session, component *Component) ([]*AccessRequest, error) {
	q := accessRequestTable.Select(s).
		Where(colComponentID+" = ?", component.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colAccessRequestID)
	return accessRequestTable.Many(ctx, s, "ListAccessRequestsByComponent", q)
}

// ListByState returns the live requests in state, oldest first
func (r *AccessRequestRepository) ListByState(ctx context.Context, s *storage.Session, state AccessState) ([]*AccessRequest, error) {
	const op = "ListAccessRequestsByState"
	if !state.Valid() {
		return nil, s.Invalid(op, "unknown access state %q", state)
	}
	q := accessRequestTable.Select(s).
		Where(colState+" = ?", string(state)).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colAccessRequestID)
	return accessRequestTable.Many(ctx, s, op, q)
}

// SetState moves ar to state
func (r *AccessRequestRepository) SetState(ctx context.Context, s *storage.Session, ar *AccessRequest, state AccessState, by storage.Actor) error {
	const op = "UpdateAccessRequestState"
	if !state.Valid() {
		return s.Invalid(op, "unknown access state %q", state)
	}
	set := storage.NewValues().Set(colState, string(state))
	audit := touch(ar.audit, set, by)
	if err := accessRequestTable.Update(ctx, s, op, set, ar.id); err != nil {
		return err
	}
	ar.state = state
	ar.audit = audit
	return nil
}

// Approve moves ar to APPROVED
func (r *AccessRequestRepository) Approve(ctx context.Context, s *storage.Session, ar *AccessRequest, by storage.Actor) error {
	return r.SetState(ctx, s, ar, AccessApproved, by)
}

// Deny moves ar to DENIED
func (r *AccessRequestRepository) Deny(ctx context.Context, s *storage.Session, ar *AccessRequest, by storage.Actor) error {
	return r.SetState(ctx, s, ar, AccessDenied, by)
}

// Delete soft-deletes ar
func (r *AccessRequestRepository) Delete(ctx context.Context, s *storage.Session, ar *AccessRequest, by storage.Actor) error {
	return softDelete(ctx, s, accessRequestTable, "DeleteAccessRequest", ar.id, &ar.audit, by)
}
