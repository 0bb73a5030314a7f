package tk

import (
	"context"
	"reflect"
	"testing"

	tkerrors "tkdb/internal/errors"
	"tkdb/internal/storage"
)

func TestUserRoundTrip(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	u := NewUser("jdoe", "Jane Doe", "jane.doe@example.com")
	if err := users.Add(ctx, s, u, tester); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if u.ID() != 1 {
		t.Errorf("Expected id 1, got %d", u.ID())
	}
	if u.Audit().CreatedBy != "tester" || u.Audit().CreatedOn.IsZero() {
		t.Errorf("Created audit not populated: %+v", u.Audit())
	}
	if u.Audit().UpdatedOn != nil || u.Audit().DeletedOn != nil {
		t.Errorf("Expected empty update/delete audit, got %+v", u.Audit())
	}

	// Re-reading the same row twice yields identical records
	first, err := users.LookupByIntranetID(ctx, s, "jdoe", storage.ExcludeDeleted)
	if err != nil {
		t.Fatalf("LookupByIntranetID failed: %v", err)
	}
	second, err := users.LookupByID(ctx, s, u.ID(), storage.ExcludeDeleted)
	if err != nil {
		t.Fatalf("LookupByID failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(first, u) {
		t.Errorf("Re-read mismatch:\n%+v\n%+v\n%+v", u, first, second)
	}
}

func TestUserActsAsAuditor(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	admin := NewUser("admin", "Administrator", "")
	if err := users.Add(ctx, s, admin, tester); err != nil {
		t.Fatalf("Add admin failed: %v", err)
	}
	u := NewUser("bsmith", "Bob Smith", "bob@example.com")
	if err := users.Add(ctx, s, u, admin); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if u.Audit().CreatedBy != "admin" {
		t.Errorf("CreatedBy = %q, want admin", u.Audit().CreatedBy)
	}

	if err := users.UpdateContact(ctx, s, u, "Robert Smith", "", admin); err != nil {
		t.Fatalf("UpdateContact failed: %v", err)
	}
	again, err := users.LookupByID(ctx, s, u.ID(), storage.ExcludeDeleted)
	if err != nil {
		t.Fatalf("LookupByID failed: %v", err)
	}
	if again.DisplayName() != "Robert Smith" || again.Email() != "bob@example.com" {
		t.Errorf("Unexpected contact after update: %q %q", again.DisplayName(), again.Email())
	}
	if again.Audit().UpdatedBy != "admin" || again.Audit().UpdatedOn == nil {
		t.Errorf("Update audit not stamped: %+v", again.Audit())
	}
	if !reflect.DeepEqual(again.Audit(), u.Audit()) {
		t.Errorf("In-memory audit %+v differs from stored %+v", u.Audit(), again.Audit())
	}

	err = users.UpdateContact(ctx, s, u, "", "", admin)
	assertCode(t, err, tkerrors.InvalidArgument)
}

func TestUserSoftDelete(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	u := NewUser("gone", "Gone Person", "")
	if err := users.Add(ctx, s, u, tester); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := users.Delete(ctx, s, u, tester); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !u.Audit().Deleted() || u.Audit().DeletedBy != "tester" {
		t.Errorf("In-memory audit not stamped after delete: %+v", u.Audit())
	}

	_, err := users.LookupByID(ctx, s, u.ID(), storage.ExcludeDeleted)
	assertNotFound(t, err)

	deleted, err := users.LookupByID(ctx, s, u.ID(), storage.IncludeDeleted)
	if err != nil {
		t.Fatalf("LookupByID with deleted rows failed: %v", err)
	}
	if !deleted.Audit().Deleted() || deleted.Audit().DeletedBy != "tester" {
		t.Errorf("Expected deleted audit, got %+v", deleted.Audit())
	}
	if !deleted.Audit().DeletedOn.Equal(*u.Audit().DeletedOn) {
		t.Errorf("DeletedOn differs: stored %v, in memory %v", deleted.Audit().DeletedOn, u.Audit().DeletedOn)
	}

	list, err := users.List(ctx, s)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected deleted user to be hidden, got %d users", len(list))
	}

	// A second delete finds no live row
	err = users.Delete(ctx, s, u, tester)
	assertCode(t, err, tkerrors.RowCountMismatch)

	// Updates never touch deleted rows
	err = users.UpdateContact(ctx, s, u, "Back Again", "", tester)
	assertCode(t, err, tkerrors.RowCountMismatch)
}

func TestUserSearch(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	for _, u := range []*User{
		NewUser("adavis", "Alice Davis", ""),
		NewUser("bdavison", "Bob Davison", ""),
		NewUser("cjones", "Carol Jones", ""),
	} {
		if err := users.Add(ctx, s, u, tester); err != nil {
			t.Fatalf("Add %s failed: %v", u.IntranetID(), err)
		}
	}

	found, err := users.Search(ctx, s, "*davis*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	byID := storage.KeyBy(found, func(u *User) string { return u.IntranetID() })
	if len(byID) != 2 || byID["adavis"] == nil || byID["bdavison"] == nil {
		t.Errorf("Search returned %v", byID)
	}

	none, err := users.Search(ctx, s, "zzz*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", none)
	}
}

func TestUserSearchMatchesUnderscoreLiterally(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	for _, id := range []string{"a_b", "axb", "100%"} {
		if err := users.Add(ctx, s, NewUser(id, "User "+id, ""), tester); err != nil {
			t.Fatalf("Add %s failed: %v", id, err)
		}
	}

	found, err := users.Search(ctx, s, "a_b")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 1 || found[0].IntranetID() != "a_b" {
		t.Errorf("Search(a_b) returned %d users", len(found))
	}

	found, err = users.Search(ctx, s, "1%*")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("Search(1%%*) should not treat %% as a wildcard, got %d users", len(found))
	}
}

func TestUserAddValidation(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	err := users.Add(ctx, s, NewUser("", "No Id", ""), tester)
	assertCode(t, err, tkerrors.InvalidArgument)

	err = users.Add(ctx, s, NewUser("nobody", "No Actor", ""), nil)
	assertCode(t, err, tkerrors.InvalidArgument)

	if _, err := users.LookupByIntranetID(ctx, s, "nobody", storage.IncludeDeleted); !tkerrors.IsNotFound(err) {
		t.Errorf("Rejected insert left a row behind: %v", err)
	}
}
