package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// EVENT columns
const (
	tableEvent = "EVENT"
	colEventID = "EVENT_ID"
)

// Event records something that happened to a component version (a build,
// a deploy, a test run) under one of the EVENT_NAME values.
type Event struct {
	id               int64
	description      string
	eventName        storage.Ref[int16, EventName]
	componentVersion storage.Ref[int64, ComponentVersion]
	audit            storage.Audit
	loaded           bool
}

// NewEvent builds an event for insert
func NewEvent(eventName *EventName, cv *ComponentVersion, description string) *Event {
	return &Event{
		description:      description,
		eventName:        loadedRef[int16](eventName),
		componentVersion: loadedRef[int64](cv),
	}
}

// Getters
func (e *Event) ID() int64                                { return e.id }
func (e *Event) Description() string                      { return e.description }
func (e *Event) EventName() storage.Ref[int16, EventName] { return e.eventName }
func (e *Event) Audit() storage.Audit                     { return e.audit }
func (e *Event) IsLoaded() bool                           { return e.loaded }

func (e *Event) ComponentVersion() storage.Ref[int64, ComponentVersion] {
	return e.componentVersion
}

// LoadEventName resolves the event name reference
func (e *Event) LoadEventName(ctx context.Context, s *storage.Session) (*EventName, error) {
	return e.eventName.Resolve(ctx, func(ctx context.Context, id int16) (*EventName, error) {
		return eventNames.LookupByID(ctx, s, id)
	})
}

// LoadComponentVersion resolves the component version reference
func (e *Event) LoadComponentVersion(ctx context.Context, s *storage.Session) (*ComponentVersion, error) {
	return e.componentVersion.Resolve(ctx, func(ctx context.Context, id int64) (*ComponentVersion, error) {
		return componentVersions.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID               int64                                `json:"id"`
		EventName        storage.Ref[int16, EventName]        `json:"eventName"`
		ComponentVersion storage.Ref[int64, ComponentVersion] `json:"componentVersion"`
		Description      string                               `json:"description,omitempty"`
		Audit            storage.Audit                        `json:"audit"`
	}{e.id, e.eventName, e.componentVersion, e.description, e.audit})
}

func scanEvent(sc storage.Scanner) (*Event, error) {
	var e Event
	var desc sql.NullString
	var nameID int16
	var cvID int64
	var a storage.AuditScan
	if err := sc.Scan(append([]any{&e.id, &desc, &nameID, &cvID}, a.Dest(storage.AuditCreated)...)...); err != nil {
		return nil, err
	}
	e.description = desc.String
	e.eventName = storage.Unloaded[int16, EventName](nameID)
	e.componentVersion = storage.Unloaded[int64, ComponentVersion](cvID)
	e.audit = a.Audit()
	e.loaded = true
	return &e, nil
}

var eventTable = &storage.Table[Event]{
	Name:    tableEvent,
	IDCol:   colEventID,
	Columns: []string{colDescription, colEventNameID, colComponentVersionID},
	Audit:   storage.AuditCreated,
	Scan:    scanEvent,
}

// EventRepository provides access to EVENT
type EventRepository struct{}

// NewEventRepository creates a new event repository
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

// Add inserts e and re-reads it into e
func (r *EventRepository) Add(ctx context.Context, s *storage.Session, e *Event, by storage.Actor) error {
	const op = "AddEvent"
	if err := requireRef(s, op, "event name", e.eventName.ID()); err != nil {
		return err
	}
	if err := requireRef(s, op, "component version", e.componentVersion.ID()); err != nil {
		return err
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := eventTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colEventID, id).
			Set(colDescription, e.description).
			Set(colEventNameID, e.eventName.ID()).
			Set(colComponentVersionID, e.componentVersion.ID()).
			Created(by, storage.Now())
		if err := eventTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id)
		if err != nil {
			return err
		}
		*e = *fresh
		return nil
	})
}

// LookupByID returns the event with id or ROW_NOT_FOUND
func (r *EventRepository) LookupByID(ctx context.Context, s *storage.Session, id int64) (*Event, error) {
	return eventTable.ByID(ctx, s, "LookupEventByID", id, storage.IncludeDeleted)
}

// ListByComponentVersion returns the events of cv oldest first. A nil
// eventName returns events of every name.
func (r *EventRepository) ListByComponentVersion(ctx context.Context, s *storage.Session, cv *ComponentVersion, eventName *EventName) ([]*Event, error) {
	q := eventTable.Select(s).Where(colComponentVersionID+" = ?", cv.ID())
	if eventName != nil {
		q.Where(colEventNameID+" = ?", eventName.ID())
	}
	q.OrderBy(storage.ColCreatedOn, colEventID)
	return eventTable.Many(ctx, s, "ListEventsByComponentVersion", q)
}

// Latest returns the most recent event of eventName for cv. No such event
// is not an error: it returns (nil, false, nil).
func (r *EventRepository) Latest(ctx context.Context, s *storage.Session, cv *ComponentVersion, eventName *EventName) (*Event, bool, error) {
	const op = "LookupLatestEvent"
	if cv == nil || eventName == nil {
		return nil, false, s.Invalid(op, "component version and event name are required")
	}

	q := eventTable.Select(s).
		Where(colComponentVersionID+" = ?", cv.ID()).
		Where(colEventNameID+" = ?", eventName.ID()).
		OrderBy(storage.ColCreatedOn+" DESC", colEventID+" DESC").
		Append("LIMIT 1")
	events, err := eventTable.Many(ctx, s, op, q)
	if err != nil {
		return nil, false, err
	}
	if len(events) == 0 {
		return nil, false, nil
	}
	return events[0], true, nil
}

// Delete removes e
func (r *EventRepository) Delete(ctx context.Context, s *storage.Session, e *Event) error {
	return eventTable.HardDelete(ctx, s, "DeleteEvent", e.id)
}
