package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// TOOL_KIT columns
const (
	tableToolKit   = "TOOL_KIT"
	colToolKitID   = "TOOL_KIT_ID"
	colToolKitName = "TOOL_KIT_NAME"
)

// ToolKit is one version of a release, moving through stages
type ToolKit struct {
	id          int16
	name        string
	description string
	release     storage.Ref[int16, Release]
	stage       storage.Ref[int16, StageName]
	audit       storage.Audit
	loaded      bool
}

// NewToolKit builds a tool kit for insert
func NewToolKit(name, description string, release *Release, stage *StageName) *ToolKit {
	return &ToolKit{
		name:        name,
		description: description,
		release:     loadedRef[int16](release),
		stage:       loadedRef[int16](stage),
	}
}

// ToolKitByID builds an id-only tool kit to be loaded later
func ToolKitByID(id int16) *ToolKit {
	return &ToolKit{id: id}
}

// Getters
func (t *ToolKit) ID() int16                            { return t.id }
func (t *ToolKit) Name() string                         { return t.name }
func (t *ToolKit) Description() string                  { return t.description }
func (t *ToolKit) Release() storage.Ref[int16, Release] { return t.release }
func (t *ToolKit) Stage() storage.Ref[int16, StageName] { return t.stage }
func (t *ToolKit) Audit() storage.Audit                 { return t.audit }
func (t *ToolKit) IsLoaded() bool                       { return t.loaded }

// LoadRelease resolves the release reference
func (t *ToolKit) LoadRelease(ctx context.Context, s *storage.Session) (*Release, error) {
	return t.release.Resolve(ctx, func(ctx context.Context, id int16) (*Release, error) {
		return releases.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

// LoadStage resolves the stage reference
func (t *ToolKit) LoadStage(ctx context.Context, s *storage.Session) (*StageName, error) {
	return t.stage.Resolve(ctx, func(ctx context.Context, id int16) (*StageName, error) {
		return stageNames.LookupByID(ctx, s, id)
	})
}

func (t *ToolKit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int16                         `json:"id"`
		Name        string                        `json:"name"`
		Description string                        `json:"description,omitempty"`
		Release     storage.Ref[int16, Release]   `json:"release"`
		Stage       storage.Ref[int16, StageName] `json:"stage"`
		Audit       storage.Audit                 `json:"audit"`
	}{t.id, t.name, t.description, t.release, t.stage, t.audit})
}

func scanToolKit(sc storage.Scanner) (*ToolKit, error) {
	var t ToolKit
	var desc sql.NullString
	var releaseID, stageID int16
	var a storage.AuditScan
	dest := append([]any{&t.id, &t.name, &desc, &releaseID, &stageID}, a.Dest(storage.AuditFull)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	t.description = desc.String
	t.release = storage.Unloaded[int16, Release](releaseID)
	t.stage = storage.Unloaded[int16, StageName](stageID)
	t.audit = a.Audit()
	t.loaded = true
	return &t, nil
}

var toolKitTable = &storage.Table[ToolKit]{
	Name:    tableToolKit,
	IDCol:   colToolKitID,
	Columns: []string{colToolKitName, colDescription, colReleaseID, colStageNameID},
	Audit:   storage.AuditFull,
	Scan:    scanToolKit,
}

// ToolKitRepository provides access to TOOL_KIT
type ToolKitRepository struct{}

// NewToolKitRepository creates a new tool kit repository
func NewToolKitRepository() *ToolKitRepository {
	return &ToolKitRepository{}
}

var toolKits = NewToolKitRepository()

// Add inserts kit and re-reads it into kit
func (r *ToolKitRepository) Add(ctx context.Context, s *storage.Session, kit *ToolKit, by storage.Actor) error {
	const op = "AddToolKit"
	if kit.name == "" {
		return s.Invalid(op, "tool kit name is required")
	}
	if err := requireRef(s, op, "release", kit.release.ID()); err != nil {
		return err
	}
	if err := requireRef(s, op, "stage", kit.stage.ID()); err != nil {
		return err
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := nextShortID(ctx, tx, toolKitTable, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colToolKitID, id).
			Set(colToolKitName, kit.name).
			Set(colDescription, kit.description).
			Set(colReleaseID, kit.release.ID()).
			Set(colStageNameID, kit.stage.ID()).
			Created(by, storage.Now())
		if err := toolKitTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*kit = *fresh
		return nil
	})
}

// LookupByID returns the tool kit with id or ROW_NOT_FOUND
func (r *ToolKitRepository) LookupByID(ctx context.Context, s *storage.Session, id int16, deleted storage.Deleted) (*ToolKit, error) {
	return toolKitTable.ByID(ctx, s, "LookupToolKitByID", id, deleted)
}

// LookupByName returns the tool kit with the given name
func (r *ToolKitRepository) LookupByName(ctx context.Context, s *storage.Session, name string, deleted storage.Deleted) (*ToolKit, error) {
	q := toolKitTable.Select(s).Where(colToolKitName+" = ?", name).NotDeleted("", deleted)
	return toolKitTable.One(ctx, s, "LookupToolKitByName", q)
}

// List returns live tool kits ordered by name
func (r *ToolKitRepository) List(ctx context.Context, s *storage.Session) ([]*ToolKit, error) {
	q := toolKitTable.Select(s).NotDeleted("", storage.ExcludeDeleted).OrderBy(colToolKitName)
	return toolKitTable.Many(ctx, s, "ListToolKits", q)
}

// ListByRelease returns the live tool kits of a release
func (r *ToolKitRepository) ListByRelease(ctx context.Context, s *storage.Session, release *Release) ([]*ToolKit, error) {
	q := toolKitTable.Select(s).
		Where(colReleaseID+" = ?", release.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colToolKitName)
	return toolKitTable.Many(ctx, s, "ListToolKitsByRelease", q)
}

// ListByStage returns the live tool kits currently in a stage
func (r *ToolKitRepository) ListByStage(ctx context.Context, s *storage.Session, stage *StageName) ([]*ToolKit, error) {
	q := toolKitTable.Select(s).
		Where(colStageNameID+" = ?", stage.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colToolKitName)
	return toolKitTable.Many(ctx, s, "ListToolKitsByStage", q)
}

// SetStage moves kit to another stage
func (r *ToolKitRepository) SetStage(ctx context.Context, s *storage.Session, kit *ToolKit, stage *StageName, by storage.Actor) error {
	const op = "UpdateToolKitStage"
	if stage == nil {
		return s.Invalid(op, "stage is required")
	}
	set := storage.NewValues().Set(colStageNameID, stage.ID())
	audit := touch(kit.audit, set, by)
	if err := toolKitTable.Update(ctx, s, op, set, kit.id); err != nil {
		return err
	}
	kit.stage = loadedRef[int16](stage)
	kit.audit = audit
	return nil
}

// UpdateDescription rewrites the description of kit
func (r *ToolKitRepository) UpdateDescription(ctx context.Context, s *storage.Session, kit *ToolKit, description string, by storage.Actor) error {
	set := storage.NewValues().Set(colDescription, description)
	audit := touch(kit.audit, set, by)
	if err := toolKitTable.Update(ctx, s, "UpdateToolKit", set, kit.id); err != nil {
		return err
	}
	kit.description = description
	kit.audit = audit
	return nil
}

// Delete soft-deletes kit
func (r *ToolKitRepository) Delete(ctx context.Context, s *storage.Session, kit *ToolKit, by storage.Actor) error {
	return softDelete(ctx, s, toolKitTable, "DeleteToolKit", kit.id, &kit.audit, by)
}
