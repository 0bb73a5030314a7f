package tk

import (
	"context"
	"reflect"
	"testing"
	"time"

	tkerrors "tkdb/internal/errors"
	"tkdb/internal/storage"
)

func TestCodeUpdateRevisionRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	updates := NewCodeUpdateRepository()

	committed := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC)
	for _, rev := range []int64{100, 105, 110, 120} {
		cu := NewCodeUpdate(rev, "jdoe", committed, "commit", f.cv)
		if err := updates.Add(ctx, f.s, cu, tester); err != nil {
			t.Fatalf("Add revision %d failed: %v", rev, err)
		}
	}

	revisions := func(t *testing.T, rng RevisionRange) []int64 {
		t.Helper()
		list, err := updates.ListByComponentVersion(ctx, f.s, f.cv, rng)
		if err != nil {
			t.Fatalf("ListByComponentVersion failed: %v", err)
		}
		out := make([]int64, 0, len(list))
		for _, cu := range list {
			out = append(out, cu.Revision())
		}
		return out
	}

	tests := []struct {
		name string
		rng  RevisionRange
		want []int64
	}{
		{"unbounded", RevisionRange{}, []int64{100, 105, 110, 120}},
		{"from", RevisionRange{From: 105}, []int64{105, 110, 120}},
		{"to", RevisionRange{To: 110}, []int64{100, 105, 110}},
		{"both", RevisionRange{From: 101, To: 119}, []int64{105, 110}},
		{"empty", RevisionRange{From: 200}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := revisions(t, tt.rng); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("revisions = %v, want %v", got, tt.want)
			}
		})
	}

	cu, err := updates.LookupByRevision(ctx, f.s, f.cv, 110)
	if err != nil {
		t.Fatalf("LookupByRevision failed: %v", err)
	}
	if !cu.CommittedOn().Equal(committed.Truncate(time.Microsecond)) {
		t.Errorf("CommittedOn = %v, want %v", cu.CommittedOn(), committed)
	}
	if cu.CommittedBy() != "jdoe" {
		t.Errorf("CommittedBy = %q", cu.CommittedBy())
	}

	err = updates.Add(ctx, f.s, NewCodeUpdate(0, "jdoe", committed, "", f.cv), tester)
	assertCode(t, err, tkerrors.InvalidArgument)

	if err := updates.Delete(ctx, f.s, cu); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, err = updates.LookupByID(ctx, f.s, cu.ID())
	assertNotFound(t, err)
}

func TestPackageLineage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	packages := NewPackageRepository()

	pkg := NewPackage("libparse-1.4.2-linux-amd64.tar.gz", 120, f.cv, f.linux)
	if err := packages.Add(ctx, f.s, pkg, tester); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := packages.LookupByName(ctx, f.s, pkg.Name(), storage.ExcludeDeleted)
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if !reflect.DeepEqual(got, pkg) {
		t.Errorf("LookupByName = %+v, want %+v", got, pkg)
	}

	lineage, err := packages.Lineage(ctx, f.s, "libparse-*")
	if err != nil {
		t.Fatalf("Lineage failed: %v", err)
	}
	if len(lineage) != 1 {
		t.Fatalf("Expected 1 lineage row, got %d", len(lineage))
	}
	want := PackageLineage{
		PackageID:          pkg.ID(),
		PackageName:        pkg.Name(),
		Revision:           120,
		ComponentVersionID: f.cv.ID(),
		ComponentID:        f.component.ID(),
		ComponentName:      "libparse",
		ToolKitID:          f.kit.ID(),
		ToolKitName:        "TK-2026.1.0",
		ReleaseID:          f.release.ID(),
		ReleaseName:        "2026.1",
		StageID:            f.dev.ID(),
		StageName:          "DEVELOPMENT",
		PlatformID:         f.linux.ID(),
		PlatformName:       "linux-amd64",
	}
	if *lineage[0] != want {
		t.Errorf("Lineage = %+v, want %+v", *lineage[0], want)
	}

	links := NewPackageChangeRequestRepository()
	cr := addChangeRequest(t, f, "MY0000100", "")
	if _, err := links.Link(ctx, f.s, pkg.ID(), cr, tester); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	if err := packages.Delete(ctx, f.s, pkg, tester); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	lineage, err = packages.Lineage(ctx, f.s, "libparse-*")
	if err != nil {
		t.Fatalf("Lineage failed: %v", err)
	}
	if len(lineage) != 0 {
		t.Errorf("Deleted package still has lineage")
	}
	byPlatform, err := packages.ListByPlatform(ctx, f.s, f.linux)
	if err != nil {
		t.Fatalf("ListByPlatform failed: %v", err)
	}
	if len(byPlatform) != 0 {
		t.Errorf("Deleted package still listed by platform")
	}
}

func TestEventLatestFindsNewest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	events := NewEventRepository()

	ev, ok, err := events.Latest(ctx, f.s, f.cv, f.build)
	if err != nil || ok || ev != nil {
		t.Fatalf("Latest on empty table = (%v, %v, %v), want (nil, false, nil)", ev, ok, err)
	}

	var last *Event
	for _, desc := range []string{"build 1", "build 2", "build 3"} {
		e := NewEvent(f.build, f.cv, desc)
		if err := events.Add(ctx, f.s, e, tester); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		last = e
	}
	deploy, err := eventNames.LookupByName(ctx, f.s, "DEPLOY")
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if err := events.Add(ctx, f.s, NewEvent(deploy, f.cv, "to staging"), tester); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ev, ok, err = events.Latest(ctx, f.s, f.cv, f.build)
	if err != nil || !ok {
		t.Fatalf("Latest failed: ok=%v err=%v", ok, err)
	}
	if ev.ID() != last.ID() || ev.Description() != "build 3" {
		t.Errorf("Latest = %+v, want %+v", ev, last)
	}

	all, err := events.ListByComponentVersion(ctx, f.s, f.cv, nil)
	if err != nil {
		t.Fatalf("ListByComponentVersion failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Expected 4 events, got %d", len(all))
	}
	builds, err := events.ListByComponentVersion(ctx, f.s, f.cv, f.build)
	if err != nil {
		t.Fatalf("ListByComponentVersion failed: %v", err)
	}
	if len(builds) != 3 {
		t.Errorf("Expected 3 build events, got %d", len(builds))
	}

	name, err := builds[0].LoadEventName(ctx, f.s)
	if err != nil {
		t.Fatalf("LoadEventName failed: %v", err)
	}
	if name.Name() != "BUILD" {
		t.Errorf("Event name = %q", name.Name())
	}

	_, _, err = events.Latest(ctx, f.s, nil, f.build)
	assertCode(t, err, tkerrors.InvalidArgument)
}

func TestAccessRequestWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requests := NewAccessRequestRepository()

	u := NewUser("jdoe", "Jane Doe", "")
	if err := users.Add(ctx, f.s, u, tester); err != nil {
		t.Fatalf("Add user failed: %v", err)
	}

	ar := NewAccessRequest(u, f.component, "needs to ship fixes")
	if err := requests.Add(ctx, f.s, ar, u); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if ar.State() != AccessRequested || ar.Audit().CreatedBy != "jdoe" {
		t.Errorf("Unexpected new request %+v", ar)
	}

	pending, err := requests.ListByState(ctx, f.s, AccessRequested)
	if err != nil {
		t.Fatalf("ListByState failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending request, got %d", len(pending))
	}

	if err := requests.Approve(ctx, f.s, ar, tester); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	got, err := requests.LookupByID(ctx, f.s, ar.ID(), storage.ExcludeDeleted)
	if err != nil {
		t.Fatalf("LookupByID failed: %v", err)
	}
	if got.State() != AccessApproved || got.Audit().UpdatedBy != "tester" {
		t.Errorf("Approval not persisted: %+v", got)
	}
	who, err := got.LoadUser(ctx, f.s)
	if err != nil {
		t.Fatalf("LoadUser failed: %v", err)
	}
	if who.IntranetID() != "jdoe" {
		t.Errorf("User = %q", who.IntranetID())
	}

	err = requests.SetState(ctx, f.s, ar, AccessState("MAYBE"), tester)
	assertCode(t, err, tkerrors.InvalidArgument)

	byUser, _ := requests.ListByUser(ctx, f.s, u)
	byComponent, _ := requests.ListByComponent(ctx, f.s, f.component)
	if len(byUser) != 1 || len(byComponent) != 1 {
		t.Errorf("Expected request listed by user and component, got %d and %d", len(byUser), len(byComponent))
	}

	if err := requests.Delete(ctx, f.s, ar, tester); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, err = requests.LookupByID(ctx, f.s, ar.ID(), storage.ExcludeDeleted)
	assertNotFound(t, err)
}
