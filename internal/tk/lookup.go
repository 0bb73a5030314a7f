package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// Reference table columns
const (
	colDescription = "DESCRIPTION"

	tableComponentType   = "COMPONENT_TYPE"
	colComponentTypeID   = "COMPONENT_TYPE_ID"
	colComponentTypeName = "COMPONENT_TYPE_NAME"
	tableStageName       = "STAGE_NAME"
	colStageNameID       = "STAGE_NAME_ID"
	colStageName         = "STAGE_NAME"
	tableLocation        = "LOCATION"
	colLocationID        = "LOCATION_ID"
	colLocationName      = "LOCATION_NAME"
	tablePlatform        = "PLATFORM"
	colPlatformID        = "PLATFORM_ID"
	colPlatformName      = "PLATFORM_NAME"
	tableCRStatus        = "CHANGEREQUEST_STATUS"
	colStatusID          = "STATUS_ID"
	colStatusName        = "STATUS_NAME"
	tableCRType          = "CHANGEREQUEST_TYPE"
	colTypeID            = "TYPE_ID"
	colTypeName          = "TYPE_NAME"
	tableCRSeverity      = "CHANGEREQUEST_SEVERITY"
	colSeverityID        = "SEVERITY_ID"
	colSeverityName      = "SEVERITY_NAME"
	tableEventName       = "EVENT_NAME"
	colEventNameID       = "EVENT_NAME_ID"
	colEventName         = "EVENT_NAME"
)

// lookupRecord is the shape shared by every reference table: a short id, a
// unique name and a description. No audit columns; rows are hard-deleted.
type lookupRecord struct {
	id          int16
	name        string
	description string
	loaded      bool
}

func (r *lookupRecord) base() *lookupRecord { return r }

// ID returns the surrogate key
func (r *lookupRecord) ID() int16 { return r.id }

// Name returns the unique name
func (r *lookupRecord) Name() string { return r.name }

// Description returns the free-text description
func (r *lookupRecord) Description() string { return r.description }

// IsLoaded reports whether the record was read from the database
func (r *lookupRecord) IsLoaded() bool { return r.loaded }

func (r *lookupRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int16  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}{r.id, r.name, r.description})
}

// ComponentType classifies components (library, service, tool, ...)
type ComponentType struct{ lookupRecord }

// StageName is a lifecycle stage of a tool kit or component version
type StageName struct{ lookupRecord }

// Location is an install location for component versions
type Location struct{ lookupRecord }

// Platform is a build target for packages
type Platform struct{ lookupRecord }

// ChangeRequestStatus is a change-request workflow state
type ChangeRequestStatus struct{ lookupRecord }

// ChangeRequestType classifies change requests (DEFECT, FEATURE, ...)
type ChangeRequestType struct{ lookupRecord }

// ChangeRequestSeverity ranks change requests
type ChangeRequestSeverity struct{ lookupRecord }

// EventName names a component-version event (BUILD, DEPLOY, ...)
type EventName struct{ lookupRecord }

func newLookup(id int16, name, description string) lookupRecord {
	return lookupRecord{id: id, name: name, description: description}
}

// NewComponentType builds a component type for insert
func NewComponentType(name, description string) *ComponentType {
	return &ComponentType{newLookup(0, name, description)}
}

// ComponentTypeByID builds an id-only component type to be loaded later
func ComponentTypeByID(id int16) *ComponentType { return &ComponentType{newLookup(id, "", "")} }

// NewStageName builds a stage for insert
func NewStageName(name, description string) *StageName {
	return &StageName{newLookup(0, name, description)}
}

// StageNameByID builds an id-only stage to be loaded later
func StageNameByID(id int16) *StageName { return &StageName{newLookup(id, "", "")} }

// NewLocation builds a install location for insert
func NewLocation(name, description string) *Location {
	return &Location{newLookup(0, name, description)}
}

// LocationByID builds an id-only install location to be loaded later
func LocationByID(id int16) *Location { return &Location{newLookup(id, "", "")} }

// NewPlatform builds a platform for insert
func NewPlatform(name, description string) *Platform {
	return &Platform{newLookup(0, name, description)}
}

// PlatformByID builds an id-only platform to be loaded later
func PlatformByID(id int16) *Platform { return &Platform{newLookup(id, "", "")} }

// NewChangeRequestStatus builds a change request status for insert
func NewChangeRequestStatus(name, description string) *ChangeRequestStatus {
	return &ChangeRequestStatus{newLookup(0, name, description)}
}

// ChangeRequestStatusByID builds an id-only change request status to be loaded later
func ChangeRequestStatusByID(id int16) *ChangeRequestStatus {
	return &ChangeRequestStatus{newLookup(id, "", "")}
}

// NewChangeRequestType builds a change request type for insert
func NewChangeRequestType(name, description string) *ChangeRequestType {
	return &ChangeRequestType{newLookup(0, name, description)}
}

// ChangeRequestTypeByID builds an id-only change request type to be loaded later
func ChangeRequestTypeByID(id int16) *ChangeRequestType {
	return &ChangeRequestType{newLookup(id, "", "")}
}

// NewChangeRequestSeverity builds a change request severity for insert
func NewChangeRequestSeverity(name, description string) *ChangeRequestSeverity {
	return &ChangeRequestSeverity{newLookup(0, name, description)}
}

// ChangeRequestSeverityByID builds an id-only change request severity to be loaded later
func ChangeRequestSeverityByID(id int16) *ChangeRequestSeverity {
	return &ChangeRequestSeverity{newLookup(id, "", "")}
}

// NewEventName builds a event name for insert
func NewEventName(name, description string) *EventName {
	return &EventName{newLookup(0, name, description)}
}

// EventNameByID builds an id-only event name to be loaded later
func EventNameByID(id int16) *EventName { return &EventName{newLookup(id, "", "")} }

type lookupPtr[T any] interface {
	*T
	base() *lookupRecord
}

// LookupRepository is the DAO shared by all reference tables
type LookupRepository[T any, P lookupPtr[T]] struct {
	entity  string
	nameCol string
	table   *storage.Table[T]
}

func newLookupRepository[T any, P lookupPtr[T]](entity, table, idCol, nameCol string) *LookupRepository[T, P] {
	return &LookupRepository[T, P]{
		entity:  entity,
		nameCol: nameCol,
		table: &storage.Table[T]{
			Name:    table,
			IDCol:   idCol,
			Columns: []string{nameCol, colDescription},
			Audit:   storage.AuditNone,
			Scan: func(sc storage.Scanner) (*T, error) {
				rec := new(T)
				b := P(rec).base()
				var desc sql.NullString
				if err := sc.Scan(&b.id, &b.name, &desc); err != nil {
					return nil, err
				}
				b.description = desc.String
				b.loaded = true
				return rec, nil
			},
		},
	}
}

// NewComponentTypeRepository creates a repository for the component type reference table
func NewComponentTypeRepository() *LookupRepository[ComponentType, *ComponentType] {
	return newLookupRepository[ComponentType]("ComponentType", tableComponentType, colComponentTypeID, colComponentTypeName)
}

// NewStageNameRepository creates a repository for the stage reference table
func NewStageNameRepository() *LookupRepository[StageName, *StageName] {
	return newLookupRepository[StageName]("StageName", tableStageName, colStageNameID, colStageName)
}

// NewLocationRepository creates a repository for the install location reference table
func NewLocationRepository() *LookupRepository[Location, *Location] {
	return newLookupRepository[Location]("Location", tableLocation, colLocationID, colLocationName)
}

// NewPlatformRepository creates a repository for the platform reference table
func NewPlatformRepository() *LookupRepository[Platform, *Platform] {
	return newLookupRepository[Platform]("Platform", tablePlatform, colPlatformID, colPlatformName)
}

// NewChangeRequestStatusRepository creates a repository for the change request status reference table
func NewChangeRequestStatusRepository() *LookupRepository[ChangeRequestStatus, *ChangeRequestStatus] {
	return newLookupRepository[ChangeRequestStatus]("ChangeRequestStatus", tableCRStatus, colStatusID, colStatusName)
}

// NewChangeRequestTypeRepository creates a repository for the change request type reference table
func NewChangeRequestTypeRepository() *LookupRepository[ChangeRequestType, *ChangeRequestType] {
	return newLookupRepository[ChangeRequestType]("ChangeRequestType", tableCRType, colTypeID, colTypeName)
}

// NewChangeRequestSeverityRepository creates a repository for the change request severity reference table
func NewChangeRequestSeverityRepository() *LookupRepository[ChangeRequestSeverity, *ChangeRequestSeverity] {
	return newLookupRepository[ChangeRequestSeverity]("ChangeRequestSeverity", tableCRSeverity, colSeverityID, colSeverityName)
}

// NewEventNameRepository creates a repository for the event name reference table
func NewEventNameRepository() *LookupRepository[EventName, *EventName] {
	return newLookupRepository[EventName]("EventName", tableEventName, colEventNameID, colEventName)
}

// Package-level instances used to resolve references
var (
	componentTypes = NewComponentTypeRepository()
	stageNames     = NewStageNameRepository()
	locations      = NewLocationRepository()
	platforms      = NewPlatformRepository()
	crStatuses     = NewChangeRequestStatusRepository()
	crTypes        = NewChangeRequestTypeRepository()
	crSeverities   = NewChangeRequestSeverityRepository()
	eventNames     = NewEventNameRepository()
)

// TableName returns the unqualified table name
func (r *LookupRepository[T, P]) TableName() string {
	return r.table.Name
}

// Add inserts rec with the next id and re-reads it into rec
func (r *LookupRepository[T, P]) Add(ctx context.Context, s *storage.Session, rec P) error {
	op := "Add" + r.entity
	b := rec.base()
	if b.name == "" {
		return s.Invalid(op, "%s name is required", r.entity)
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := nextShortID(ctx, tx, r.table, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(r.table.IDCol, id).
			Set(r.nameCol, b.name).
			Set(colDescription, b.description)
		if err := r.table.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id)
		if err != nil {
			return err
		}
		*rec = *fresh
		return nil
	})
}

// LookupByID returns the row with id or ROW_NOT_FOUND
func (r *LookupRepository[T, P]) LookupByID(ctx context.Context, s *storage.Session, id int16) (*T, error) {
	return r.table.ByID(ctx, s, "Lookup"+r.entity+"ByID", id, storage.IncludeDeleted)
}

// LookupByName returns the row with the given name or ROW_NOT_FOUND
func (r *LookupRepository[T, P]) LookupByName(ctx context.Context, s *storage.Session, name string) (*T, error) {
	q := r.table.Select(s).Where(r.nameCol+" = ?", name)
	return r.table.One(ctx, s, "Lookup"+r.entity+"ByName", q)
}

// List returns every row ordered by name
func (r *LookupRepository[T, P]) List(ctx context.Context, s *storage.Session) ([]*T, error) {
	q := r.table.Select(s).OrderBy(r.nameCol)
	return r.table.Many(ctx, s, "List"+r.entity, q)
}

// UpdateDescription rewrites the description of rec
func (r *LookupRepository[T, P]) UpdateDescription(ctx context.Context, s *storage.Session, rec P, description string) error {
	b := rec.base()
	set := storage.NewValues().Set(colDescription, description)
	if err := r.table.Update(ctx, s, "Update"+r.entity, set, b.id); err != nil {
		return err
	}
	b.description = description
	return nil
}

// Delete removes the row
func (r *LookupRepository[T, P]) Delete(ctx context.Context, s *storage.Session, rec P) error {
	return r.table.HardDelete(ctx, s, "Delete"+r.entity, rec.base().id)
}
