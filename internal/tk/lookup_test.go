package tk

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	tkerrors "tkdb/internal/errors"
)

func TestLookupRoundTrip(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	p := NewPlatform("aix-ppc64", "IBM AIX")
	if err := platforms.Add(ctx, s, p); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if p.ID() != 1 || !p.IsLoaded() {
		t.Fatalf("Expected loaded platform with id 1, got id=%d loaded=%v", p.ID(), p.IsLoaded())
	}

	byID, err := platforms.LookupByID(ctx, s, p.ID())
	if err != nil {
		t.Fatalf("LookupByID failed: %v", err)
	}
	if !reflect.DeepEqual(byID, p) {
		t.Errorf("LookupByID = %+v, want %+v", byID, p)
	}

	byName, err := platforms.LookupByName(ctx, s, "aix-ppc64")
	if err != nil {
		t.Fatalf("LookupByName failed: %v", err)
	}
	if byName.ID() != p.ID() || byName.Description() != "IBM AIX" {
		t.Errorf("LookupByName returned %+v", byName)
	}

	if err := platforms.UpdateDescription(ctx, s, p, "AIX on POWER"); err != nil {
		t.Fatalf("UpdateDescription failed: %v", err)
	}
	again, _ := platforms.LookupByID(ctx, s, p.ID())
	if again.Description() != "AIX on POWER" || p.Description() != "AIX on POWER" {
		t.Errorf("Description not updated: db=%q mem=%q", again.Description(), p.Description())
	}

	if err := platforms.Delete(ctx, s, p); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, err = platforms.LookupByID(ctx, s, p.ID())
	assertNotFound(t, err)
}

func TestLookupNextIDMonotonic(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	var last int16
	for _, name := range []string{"ALPHA", "BETA", "GAMMA"} {
		st := NewStageName(name, "")
		if err := stageNames.Add(ctx, s, st); err != nil {
			t.Fatalf("Add %s failed: %v", name, err)
		}
		if st.ID() <= last {
			t.Errorf("Expected id greater than %d, got %d", last, st.ID())
		}
		last = st.ID()
	}

	list, err := stageNames.List(ctx, s)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var names []string
	for _, st := range list {
		names = append(names, st.Name())
	}
	if !reflect.DeepEqual(names, []string{"ALPHA", "BETA", "GAMMA"}) {
		t.Errorf("List order = %v", names)
	}
}

func TestLookupValidation(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	err := eventNames.Add(ctx, s, NewEventName("", "no name"))
	assertCode(t, err, tkerrors.InvalidArgument)

	if err := eventNames.Add(ctx, s, NewEventName("BUILD", "")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	err = eventNames.Add(ctx, s, NewEventName("BUILD", "again"))
	assertCode(t, err, tkerrors.QueryFailed)

	_, err = eventNames.LookupByName(ctx, s, "DEPLOY")
	assertNotFound(t, err)
}

func TestLookupJSON(t *testing.T) {
	ct := NewComponentType("LIBRARY", "Linked into other components")
	data, err := json.Marshal(ct)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"id":0,"name":"LIBRARY","description":"Linked into other components"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}
