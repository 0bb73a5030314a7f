package tk

import (
	"context"
	"reflect"
	"testing"

	tkerrors "tkdb/internal/errors"
	"tkdb/internal/storage"
)

func addChangeRequest(t *testing.T, f *fixture, name, headline string) *ChangeRequest {
	t.Helper()
	cr := NewChangeRequest(name, headline, "", f.reserved, f.defect, f.high, f.component)
	if err := changeRequests.Add(context.Background(), f.s, cr, tester); err != nil {
		t.Fatalf("Failed to add change request %s: %v", name, err)
	}
	return cr
}

func TestChangeRequestRoundTripByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cr := addChangeRequest(t, f, "MY0001234", "Parser drops trailing comments")

	got, err := changeRequests.LookupByName(ctx, f.s, "MY0001234", storage.ExcludeDeleted)
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if !reflect.DeepEqual(got, cr) {
		t.Errorf("LookupByName = %+v, want %+v", got, cr)
	}
	if err := got.LoadAll(ctx, f.s); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	status, _ := got.Status().Record()
	crType, _ := got.Type().Record()
	severity, _ := got.Severity().Record()
	component, _ := got.Component().Record()
	if status.Name() != "RESERVED" {
		t.Errorf("Status = %q, want RESERVED", status.Name())
	}
	if crType.Name() != "DEFECT" {
		t.Errorf("Type = %q, want DEFECT", crType.Name())
	}
	if severity.Name() != "HIGH" {
		t.Errorf("Severity = %q, want HIGH", severity.Name())
	}
	if component.Name() != "libparse" {
		t.Errorf("Component = %q, want libparse", component.Name())
	}

	_, err = changeRequests.LookupByName(ctx, f.s, "MY0009999", storage.ExcludeDeleted)
	assertNotFound(t, err)
}

func TestChangeRequestRequiresReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cr   *ChangeRequest
	}{
		{"no status", NewChangeRequest("MY1", "", "", nil, f.defect, f.high, f.component)},
		{"no type", NewChangeRequest("MY2", "", "", f.reserved, nil, f.high, f.component)},
		{"no severity", NewChangeRequest("MY3", "", "", f.reserved, f.defect, nil, f.component)},
		{"no component", NewChangeRequest("MY4", "", "", f.reserved, f.defect, f.high, nil)},
		{"no name", NewChangeRequest("", "", "", f.reserved, f.defect, f.high, f.component)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := changeRequests.Add(ctx, f.s, tt.cr, tester)
			assertCode(t, err, tkerrors.InvalidArgument)
		})
	}
}

func TestChangeRequestUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cr := addChangeRequest(t, f, "MY0000001", "Old headline")

	assigned, err := crStatuses.LookupByName(ctx, f.s, "ASSIGNED")
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if err := changeRequests.UpdateStatus(ctx, f.s, cr, assigned, tester); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	headline := "New headline"
	if err := changeRequests.Update(ctx, f.s, cr, ChangeRequestUpdate{Headline: &headline}, tester); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	err = changeRequests.Update(ctx, f.s, cr, ChangeRequestUpdate{}, tester)
	assertCode(t, err, tkerrors.InvalidArgument)

	got, err := changeRequests.LookupByID(ctx, f.s, cr.ID(), storage.ExcludeDeleted)
	if err != nil {
		t.Fatalf("LookupByID failed: %v", err)
	}
	if got.Headline() != "New headline" || got.Status().ID() != assigned.ID() {
		t.Errorf("Updates not persisted: %+v", got)
	}
	if got.Audit().UpdatedOn == nil {
		t.Error("UPDATED_ON not stamped")
	}

	list, err := changeRequests.List(ctx, f.s, ChangeRequestFilter{Status: assigned})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 assigned change request, got %d", len(list))
	}
	list, err = changeRequests.List(ctx, f.s, ChangeRequestFilter{Pattern: "*headline"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected pattern match, got %d", len(list))
	}

	if err := changeRequests.Delete(ctx, f.s, cr, tester); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	list, _ = changeRequests.List(ctx, f.s, ChangeRequestFilter{})
	if len(list) != 0 {
		t.Errorf("Deleted change request still listed")
	}
	list, _ = changeRequests.List(ctx, f.s, ChangeRequestFilter{Deleted: storage.IncludeDeleted})
	if len(list) != 1 {
		t.Errorf("Deleted change request missing with IncludeDeleted")
	}
}

func TestChangeRequestLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cr := addChangeRequest(t, f, "MY0000002", "")

	links := NewCompVersionChangeRequestRepository()
	link, err := links.Link(ctx, f.s, f.cv.ID(), cr, tester)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if link.OwnerID() != f.cv.ID() || link.ChangeRequest().ID() != cr.ID() {
		t.Errorf("Unexpected link %+v", link)
	}

	// A pair is linked at most once
	_, err = links.Link(ctx, f.s, f.cv.ID(), cr, tester)
	assertCode(t, err, tkerrors.QueryFailed)

	pair, err := links.LookupByPair(ctx, f.s, f.cv.ID(), cr)
	if err != nil {
		t.Fatalf("LookupByPair failed: %v", err)
	}
	if pair.ID() != link.ID() {
		t.Errorf("LookupByPair returned %d, want %d", pair.ID(), link.ID())
	}
	linked, err := pair.LoadChangeRequest(ctx, f.s)
	if err != nil {
		t.Fatalf("LoadChangeRequest failed: %v", err)
	}
	if linked.Name() != "MY0000002" {
		t.Errorf("Linked change request = %q", linked.Name())
	}

	byCR, err := links.ListByChangeRequest(ctx, f.s, cr)
	if err != nil {
		t.Fatalf("ListByChangeRequest failed: %v", err)
	}
	if len(byCR) != 1 {
		t.Errorf("Expected 1 link, got %d", len(byCR))
	}

	if err := links.Unlink(ctx, f.s, link); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	byOwner, err := links.ListByOwner(ctx, f.s, f.cv.ID())
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(byOwner) != 0 {
		t.Errorf("Expected no links after unlink, got %d", len(byOwner))
	}
}

func TestChangeRequestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	links := NewCompVersionChangeRequestRepository()

	// A second kit where the component is installed at staging
	kit2 := NewToolKit("TK-2026.1.1", "", f.release, f.dev)
	if err := toolKits.Add(ctx, f.s, kit2, tester); err != nil {
		t.Fatalf("Add tool kit failed: %v", err)
	}
	cv2 := NewComponentVersion(f.component, kit2, f.dev)
	if err := componentVersions.Add(ctx, f.s, cv2, tester); err != nil {
		t.Fatalf("Add component version failed: %v", err)
	}
	if _, err := NewCompVersionLocationRepository().Add(ctx, f.s, cv2, f.staging, tester); err != nil {
		t.Fatalf("Add location failed: %v", err)
	}

	for _, name := range []string{"MY0000030", "MY0000010"} {
		cr := addChangeRequest(t, f, name, "")
		if _, err := links.Link(ctx, f.s, f.cv.ID(), cr, tester); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
	}
	cr := addChangeRequest(t, f, "MY0000020", "")
	if _, err := links.Link(ctx, f.s, cv2.ID(), cr, tester); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	names := func(crs []*ChangeRequest) []string {
		out := make([]string, 0, len(crs))
		for _, cr := range crs {
			out = append(out, cr.Name())
		}
		return out
	}

	history, err := changeRequests.History(ctx, f.s, f.component, f.kit, nil)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if got, want := names(history), []string{"MY0000010", "MY0000030"}; !reflect.DeepEqual(got, want) {
		t.Errorf("History = %v, want %v", got, want)
	}

	// The first kit's version is not installed anywhere
	history, err = changeRequests.History(ctx, f.s, f.component, f.kit, f.staging)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no history at staging for first kit, got %v", names(history))
	}

	history, err = changeRequests.History(ctx, f.s, f.component, kit2, f.staging)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if got, want := names(history), []string{"MY0000020"}; !reflect.DeepEqual(got, want) {
		t.Errorf("History at staging = %v, want %v", got, want)
	}

	_, err = changeRequests.History(ctx, f.s, nil, f.kit, nil)
	assertCode(t, err, tkerrors.InvalidArgument)
}

func TestChangeRequestHistoryListsEachRequestOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	links := NewCompVersionChangeRequestRepository()

	dup := NewComponentVersion(f.component, f.kit, f.qa)
	err := componentVersions.Add(ctx, f.s, dup, tester)
	assertCode(t, err, tkerrors.InvalidArgument)

	cv, err := componentVersions.LookupByComponentAndToolKit(ctx, f.s, f.component, f.kit)
	if err != nil {
		t.Fatalf("LookupByComponentAndToolKit failed: %v", err)
	}
	if cv.ID() != f.cv.ID() {
		t.Errorf("Expected version %d, got %d", f.cv.ID(), cv.ID())
	}

	cr := addChangeRequest(t, f, "MY0000099", "")
	for i := 0; i < 2; i++ {
		if _, err := links.Link(ctx, f.s, f.cv.ID(), cr, tester); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
	}

	// Replacing the version is allowed once the old one is deleted
	if err := componentVersions.Delete(ctx, f.s, f.cv, tester); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	next := NewComponentVersion(f.component, f.kit, f.qa)
	if err := componentVersions.Add(ctx, f.s, next, tester); err != nil {
		t.Fatalf("Add after delete failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := links.Link(ctx, f.s, next.ID(), cr, tester); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
	}

	history, err := changeRequests.History(ctx, f.s, f.component, f.kit, nil)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Name() != "MY0000099" {
		t.Errorf("Expected MY0000099 once, got %d rows", len(history))
	}
}
