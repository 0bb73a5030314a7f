package tk

import (
	"context"
	"encoding/json"

	"tkdb/internal/storage"
)

// COMPONENT_VERSION and COMPVERSION_X_LOCATION columns
const (
	tableComponentVersion = "COMPONENT_VERSION"
	colComponentVersionID = "COMPONENT_VERSION_ID"
	tableCompVersionLoc   = "COMPVERSION_X_LOCATION"
	colCompVersionLocID   = "COMPVERSION_X_LOCATION_ID"
)

// ComponentVersion is a component as delivered in one tool kit
type ComponentVersion struct {
	id        int64
	component storage.Ref[int16, Component]
	toolKit   storage.Ref[int16, ToolKit]
	stage     storage.Ref[int16, StageName]
	audit     storage.Audit
	loaded    bool
}

// NewComponentVersion builds a component version for insert
func NewComponentVersion(component *Component, toolKit *ToolKit, stage *StageName) *ComponentVersion {
	return &ComponentVersion{
		component: loadedRef[int16](component),
		toolKit:   loadedRef[int16](toolKit),
		stage:     loadedRef[int16](stage),
	}
}

// ComponentVersionByID builds an id-only component version to be loaded later
func ComponentVersionByID(id int64) *ComponentVersion {
	return &ComponentVersion{id: id}
}

// Getters; references stay unloaded until the matching Load method runs
func (cv *ComponentVersion) ID() int64                                { return cv.id }
func (cv *ComponentVersion) Component() storage.Ref[int16, Component] { return cv.component }
func (cv *ComponentVersion) ToolKit() storage.Ref[int16, ToolKit]     { return cv.toolKit }
func (cv *ComponentVersion) Stage() storage.Ref[int16, StageName]     { return cv.stage }
func (cv *ComponentVersion) Audit() storage.Audit                     { return cv.audit }
func (cv *ComponentVersion) IsLoaded() bool                           { return cv.loaded }

// LoadComponent resolves the component reference
func (cv *ComponentVersion) LoadComponent(ctx context.Context, s *storage.Session) (*Component, error) {
	return cv.component.Resolve(ctx, func(ctx context.Context, id int16) (*Component, error) {
		return components.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

// LoadToolKit resolves the tool kit reference
func (cv *ComponentVersion) LoadToolKit(ctx context.Context, s *storage.Session) (*ToolKit, error) {
	return cv.toolKit.Resolve(ctx, func(ctx context.Context, id int16) (*ToolKit, error) {
		return toolKits.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

// LoadStage resolves the stage reference
func (cv *ComponentVersion) LoadStage(ctx context.Context, s *storage.Session) (*StageName, error) {
	return cv.stage.Resolve(ctx, func(ctx context.Context, id int16) (*StageName, error) {
		return stageNames.LookupByID(ctx, s, id)
	})
}

func (cv *ComponentVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        int64                         `json:"id"`
		Component storage.Ref[int16, Component] `json:"component"`
		ToolKit   storage.Ref[int16, ToolKit]   `json:"toolKit"`
		Stage     storage.Ref[int16, StageName] `json:"stage"`
		Audit     storage.Audit                 `json:"audit"`
	}{cv.id, cv.component, cv.toolKit, cv.stage, cv.audit})
}

func scanComponentVersion(sc storage.Scanner) (*ComponentVersion, error) {
	var cv ComponentVersion
	var componentID, toolKitID, stageID int16
	var a storage.AuditScan
	dest := append([]any{&cv.id, &componentID, &toolKitID, &stageID}, a.Dest(storage.AuditFull)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	cv.component = storage.Unloaded[int16, Component](componentID)
	cv.toolKit = storage.Unloaded[int16, ToolKit](toolKitID)
	cv.stage = storage.Unloaded[int16, StageName](stageID)
	cv.audit = a.Audit()
	cv.loaded = true
	return &cv, nil
}

var componentVersionTable = &storage.Table[ComponentVersion]{
	Name:    tableComponentVersion,
	IDCol:   colComponentVersionID,
	Columns: []string{colComponentID, colToolKitID, colStageNameID},
	Audit:   storage.AuditFull,
	Scan:    scanComponentVersion,
}

// ComponentVersionRepository provides access to COMPONENT_VERSION
type ComponentVersionRepository struct{}

// NewComponentVersionRepository creates a new component version repository
func NewComponentVersionRepository() *ComponentVersionRepository {
	return &ComponentVersionRepository{}
}

var componentVersions = NewComponentVersionRepository()

// Add inserts cv and re-reads it into cv
func (r *ComponentVersionRepository) Add(ctx context.Context, s *storage.Session, cv *ComponentVersion, by storage.Actor) error {
	const op = "AddComponentVersion"
	if err := requireRef(s, op, "component", cv.component.ID()); err != nil {
		return err
	}
	if err := requireRef(s, op, "tool kit", cv.toolKit.ID()); err != nil {
		return err
	}
	if err := requireRef(s, op, "stage", cv.stage.ID()); err != nil {
		return err
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		if err := r.requireUnique(ctx, tx, op, cv); err != nil {
			return err
		}
		id, err := componentVersionTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colComponentVersionID, id).
			Set(colComponentID, cv.component.ID()).
			Set(colToolKitID, cv.toolKit.ID()).
			Set(colStageNameID, cv.stage.ID()).
			Created(by, storage.Now())
		if err := componentVersionTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*cv = *fresh
		return nil
	})
}

// A component has at most one live version per tool kit
func (r *ComponentVersionRepository) requireUnique(ctx context.Context, s *storage.Session, op string, cv *ComponentVersion) error {
	q := componentVersionTable.Select(s).
		Where(colComponentID+" = ?", cv.component.ID()).
		Where(colToolKitID+" = ?", cv.toolKit.ID()).
		NotDeleted("", storage.ExcludeDeleted)
	existing, err := componentVersionTable.Many(ctx, s, op, q)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return s.Invalid(op, "component %d already has live version %d in tool kit %d",
			cv.component.ID(), existing[0].id, cv.toolKit.ID())
	}
	return nil
}

// LookupByID returns the component version with id or ROW_NOT_FOUND
func (r *ComponentVersionRepository) LookupByID(ctx context.Context, s *storage.Session, id int64, deleted storage.Deleted) (*ComponentVersion, error) {
	return componentVersionTable.ByID(ctx, s, "LookupComponentVersionByID", id, deleted)
}

// LookupByComponentAndToolKit returns the live version of component in toolKit
func (r *ComponentVersionRepository) LookupByComponentAndToolKit(ctx context.Context, s *storage.Session, component *Component, toolKit *ToolKit) (*ComponentVersion, error) {
	q := componentVersionTable.Select(s).
		Where(colComponentID+" = ?", component.ID()).
		Where(colToolKitID+" = ?", toolKit.ID()).
		NotDeleted("", storage.ExcludeDeleted)
	return componentVersionTable.One(ctx, s, "LookupComponentVersionByComponentAndToolKit", q)
}

// ListByToolKit returns the live component versions of a tool kit
func (r *ComponentVersionRepository) ListByToolKit(ctx context.Context, s *storage.Session, toolKit *ToolKit) ([]*ComponentVersion, error) {
	q := componentVersionTable.Select(s).
		Where(colToolKitID+" = ?", toolKit.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colComponentVersionID)
	return componentVersionTable.Many(ctx, s, "ListComponentVersionsByToolKit", q)
}

// ListByComponent returns the live versions of a component across tool kits
func (r *ComponentVersionRepository) ListByComponent(ctx context.Context, s *storage.Session, component *Component) ([]*ComponentVersion, error) {
	q := componentVersionTable.Select(s).
		Where(colComponentID+" = ?", component.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colComponentVersionID)
	return componentVersionTable.Many(ctx, s, "ListComponentVersionsByComponent", q)
}

// SetStage moves cv to another stage
func (r *ComponentVersionRepository) SetStage(ctx context.Context, s *storage.Session, cv *ComponentVersion, stage *StageName, by storage.Actor) error {
	const op = "UpdateComponentVersionStage"
	if stage == nil {
		return s.Invalid(op, "stage is required")
	}
	set := storage.NewValues().Set(colStageNameID, stage.ID())
	audit := touch(cv.audit, set, by)
	if err := componentVersionTable.Update(ctx, s, op, set, cv.id); err != nil {
		return err
	}
	cv.stage = loadedRef[int16](stage)
	cv.audit = audit
	return nil
}

// Delete soft-deletes cv
func (r *ComponentVersionRepository) Delete(ctx context.Context, s *storage.Session, cv *ComponentVersion, by storage.Actor) error {
	return softDelete(ctx, s, componentVersionTable, "DeleteComponentVersion", cv.id, &cv.audit, by)
}

// CompVersionLocation records that a component version is installed at a location
type CompVersionLocation struct {
	id               int64
	componentVersion storage.Ref[int64, ComponentVersion]
	location         storage.Ref[int16, Location]
	audit            storage.Audit
	loaded           bool
}

func (l *CompVersionLocation) ID() int64 { return l.id }
func (l *CompVersionLocation) ComponentVersion() storage.Ref[int64, ComponentVersion] {
	return l.componentVersion
}
func (l *CompVersionLocation) Location() storage.Ref[int16, Location] { return l.location }
func (l *CompVersionLocation) Audit() storage.Audit                   { return l.audit }
func (l *CompVersionLocation) IsLoaded() bool                         { return l.loaded }

// LoadLocation resolves the location reference
func (l *CompVersionLocation) LoadLocation(ctx context.Context, s *storage.Session) (*Location, error) {
	return l.location.Resolve(ctx, func(ctx context.Context, id int16) (*Location, error) {
		return locations.LookupByID(ctx, s, id)
	})
}

func (l *CompVersionLocation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID               int64                                `json:"id"`
		ComponentVersion storage.Ref[int64, ComponentVersion] `json:"componentVersion"`
		Location         storage.Ref[int16, Location]         `json:"location"`
		Audit            storage.Audit                        `json:"audit"`
	}{l.id, l.componentVersion, l.location, l.audit})
}

func scanCompVersionLocation(sc storage.Scanner) (*CompVersionLocation, error) {
	var l CompVersionLocation
	var cvID int64
	var locationID int16
	var a storage.AuditScan
	if err := sc.Scan(append([]any{&l.id, &cvID, &locationID}, a.Dest(storage.AuditFull)...)...); err != nil {
		return nil, err
	}
	l.componentVersion = storage.Unloaded[int64, ComponentVersion](cvID)
	l.location = storage.Unloaded[int16, Location](locationID)
	l.audit = a.Audit()
	l.loaded = true
	return &l, nil
}

var compVersionLocationTable = &storage.Table[CompVersionLocation]{
	Name:    tableCompVersionLoc,
	IDCol:   colCompVersionLocID,
	Columns: []string{colComponentVersionID, colLocationID},
	Audit:   storage.AuditFull,
	Scan:    scanCompVersionLocation,
}

// CompVersionLocationRepository provides access to COMPVERSION_X_LOCATION
type CompVersionLocationRepository struct{}

// NewCompVersionLocationRepository creates a new install-location repository
func NewCompVersionLocationRepository() *CompVersionLocationRepository {
	return &CompVersionLocationRepository{}
}

// Add records cv as installed at location and returns the new row
func (r *CompVersionLocationRepository) Add(ctx context.Context, s *storage.Session, cv *ComponentVersion, location *Location, by storage.Actor) (*CompVersionLocation, error) {
	const op = "AddCompVersionLocation"
	if cv == nil || location == nil {
		return nil, s.Invalid(op, "component version and location are required")
	}

	var out *CompVersionLocation
	err := s.InTx(ctx, func(tx *storage.Session) error {
		id, err := compVersionLocationTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colCompVersionLocID, id).
			Set(colComponentVersionID, cv.ID()).
			Set(colLocationID, location.ID()).
			Created(by, storage.Now())
		if err := compVersionLocationTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		out, err = r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LookupByID returns the row with id or ROW_NOT_FOUND
func (r *CompVersionLocationRepository) LookupByID(ctx context.Context, s *storage.Session, id int64, deleted storage.Deleted) (*CompVersionLocation, error) {
	return compVersionLocationTable.ByID(ctx, s, "LookupCompVersionLocationByID", id, deleted)
}

// ListByComponentVersion returns where cv is installed
func (r *CompVersionLocationRepository) ListByComponentVersion(ctx context.Context, s *storage.Session, cv *ComponentVersion) ([]*CompVersionLocation, error) {
	q := compVersionLocationTable.Select(s).
		Where(colComponentVersionID+" = ?", cv.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colCompVersionLocID)
	return compVersionLocationTable.Many(ctx, s, "ListCompVersionLocationsByComponentVersion", q)
}

// ListByLocation returns what is installed at location
func (r *CompVersionLocationRepository) ListByLocation(ctx context.Context, s *storage.Session, location *Location) ([]*CompVersionLocation, error) {
	q := compVersionLocationTable.Select(s).
		Where(colLocationID+" = ?", location.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colCompVersionLocID)
	return compVersionLocationTable.Many(ctx, s, "ListCompVersionLocationsByLocation", q)
}

// Delete soft-deletes the install record
func (r *CompVersionLocationRepository) Delete(ctx context.Context, s *storage.Session, l *CompVersionLocation, by storage.Actor) error {
	return softDelete(ctx, s, compVersionLocationTable, "DeleteCompVersionLocation", l.id, &l.audit, by)
}
