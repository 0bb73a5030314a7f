package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// USERS columns
const (
	tableUsers        = "USERS"
	colUserID         = "USER_ID"
	colIntranetID     = "INTRANET_ID"
	colDisplayName    = "DISPLAY_NAME"
	colEmail          = "EMAIL"
	userAuditNameSize = 64
)

// User is a person known to the system. A *User is a storage.Actor, so it can
// be passed wherever a change needs to be attributed.
type User struct {
	id          int64
	intranetID  string
	displayName string
	email       string
	audit       storage.Audit
	loaded      bool
}

// NewUser builds a user for insert
func NewUser(intranetID, displayName, email string) *User {
	return &User{intranetID: intranetID, displayName: displayName, email: email}
}

// UserByID builds an id-only user to be loaded later
func UserByID(id int64) *User {
	return &User{id: id}
}

// Getters. AuditName makes a User usable as the actor of audited changes.
func (u *User) ID() int64            { return u.id }
func (u *User) IntranetID() string   { return u.intranetID }
func (u *User) DisplayName() string  { return u.displayName }
func (u *User) Email() string        { return u.email }
func (u *User) Audit() storage.Audit { return u.audit }
func (u *User) IsLoaded() bool       { return u.loaded }
func (u *User) AuditName() string    { return u.intranetID }

func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int64         `json:"id"`
		IntranetID  string        `json:"intranetId"`
		DisplayName string        `json:"displayName"`
		Email       string        `json:"email,omitempty"`
		Audit       storage.Audit `json:"audit"`
	}{u.id, u.intranetID, u.displayName, u.email, u.audit})
}

func scanUser(sc storage.Scanner) (*User, error) {
	var u User
	var email sql.NullString
	var a storage.AuditScan
	dest := append([]any{&u.id, &u.intranetID, &u.displayName, &email}, a.Dest(storage.AuditFull)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	u.email = email.String
	u.audit = a.Audit()
	u.loaded = true
	return &u, nil
}

var userTable = &storage.Table[User]{
	Name:    tableUsers,
	IDCol:   colUserID,
	Columns: []string{colIntranetID, colDisplayName, colEmail},
	Audit:   storage.AuditFull,
	Scan:    scanUser,
}

// UserRepository provides access to USERS
type UserRepository struct{}

// NewUserRepository creates a new user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

var users = NewUserRepository()

// Add inserts u and re-reads it into u
func (r *UserRepository) Add(ctx context.Context, s *storage.Session, u *User, by storage.Actor) error {
	const op = "AddUser"
	if u.intranetID == "" || len(u.intranetID) > userAuditNameSize {
		return s.Invalid(op, "intranet id must be 1-%d characters", userAuditNameSize)
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := userTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colUserID, id).
			Set(colIntranetID, u.intranetID).
			Set(colDisplayName, u.displayName).
			Set(colEmail, u.email).
			Created(by, storage.Now())
		if err := userTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*u = *fresh
		return nil
	})
}

// LookupByID returns the user with id or ROW_NOT_FOUND
func (r *UserRepository) LookupByID(ctx context.Context, s *storage.Session, id int64, deleted storage.Deleted) (*User, error) {
	return userTable.ByID(ctx, s, "LookupUserByID", id, deleted)
}

// LookupByIntranetID returns the user with the given intranet id
func (r *UserRepository) LookupByIntranetID(ctx context.Context, s *storage.Session, intranetID string, deleted storage.Deleted) (*User, error) {
	q := userTable.Select(s).Where(colIntranetID+" = ?", intranetID).NotDeleted("", deleted)
	return userTable.One(ctx, s, "LookupUserByIntranetID", q)
}

// List returns live users ordered by intranet id
func (r *UserRepository) List(ctx context.Context, s *storage.Session) ([]*User, error) {
	q := userTable.Select(s).NotDeleted("", storage.ExcludeDeleted).OrderBy(colIntranetID)
	return userTable.Many(ctx, s, "ListUsers", q)
}

// Search matches pattern ('*' wildcards) against intranet id and display name
func (r *UserRepository) Search(ctx context.Context, s *storage.Session, pattern string) ([]*User, error) {
	like := storage.Like(pattern)
	q := userTable.Select(s).
		Where("(UPPER("+colIntranetID+") LIKE UPPER(?)"+storage.LikeEscape+" OR UPPER("+colDisplayName+") LIKE UPPER(?)"+storage.LikeEscape+")", like, like).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colIntranetID)
	return userTable.Many(ctx, s, "SearchUsers", q)
}

// UpdateContact changes the display name and/or email; empty values are kept
func (r *UserRepository) UpdateContact(ctx context.Context, s *storage.Session, u *User, displayName, email string, by storage.Actor) error {
	const op = "UpdateUser"
	if displayName == "" && email == "" {
		return s.Invalid(op, "nothing to update")
	}
	set := storage.NewValues().
		SetIf(displayName != "", colDisplayName, displayName).
		SetIf(email != "", colEmail, email)
	audit := touch(u.audit, set, by)
	if err := userTable.Update(ctx, s, op, set, u.id); err != nil {
		return err
	}
	if displayName != "" {
		u.displayName = displayName
	}
	if email != "" {
		u.email = email
	}
	u.audit = audit
	return nil
}

// Delete soft-deletes u
func (r *UserRepository) Delete(ctx context.Context, s *storage.Session, u *User, by storage.Actor) error {
	return softDelete(ctx, s, userTable, "DeleteUser", u.id, &u.audit, by)
}
