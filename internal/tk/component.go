package tk

import (
	"context"
	"database/sql"
	"encoding/json"

	"tkdb/internal/storage"
)

// COMPONENT columns
const (
	tableComponent   = "COMPONENT"
	colComponentID   = "COMPONENT_ID"
	colComponentName = "COMPONENT_NAME"
)

// Component is a deliverable part of a tool kit
type Component struct {
	id            int16
	name          string
	description   string
	componentType storage.Ref[int16, ComponentType]
	audit         storage.Audit
	loaded        bool
}

// NewComponent builds a component for insert
func NewComponent(name, description string, componentType *ComponentType) *Component {
	return &Component{
		name:          name,
		description:   description,
		componentType: loadedRef[int16](componentType),
	}
}

// ComponentByID builds an id-only component to be loaded later
func ComponentByID(id int16) *Component {
	return &Component{id: id}
}

// Getters
func (c *Component) ID() int16            { return c.id }
func (c *Component) Name() string         { return c.name }
func (c *Component) Description() string  { return c.description }
func (c *Component) Audit() storage.Audit { return c.audit }
func (c *Component) IsLoaded() bool       { return c.loaded }

// ComponentType returns the type reference, loaded or not
func (c *Component) ComponentType() storage.Ref[int16, ComponentType] {
	return c.componentType
}

// LoadComponentType resolves the type reference
func (c *Component) LoadComponentType(ctx context.Context, s *storage.Session) (*ComponentType, error) {
	return c.componentType.Resolve(ctx, func(ctx context.Context, id int16) (*ComponentType, error) {
		return componentTypes.LookupByID(ctx, s, id)
	})
}

func (c *Component) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            int16                             `json:"id"`
		Name          string                            `json:"name"`
		Description   string                            `json:"description,omitempty"`
		ComponentType storage.Ref[int16, ComponentType] `json:"componentType"`
		Audit         storage.Audit                     `json:"audit"`
	}{c.id, c.name, c.description, c.componentType, c.audit})
}

func scanComponent(sc storage.Scanner) (*Component, error) {
	var c Component
	var desc sql.NullString
	var typeID int16
	var a storage.AuditScan
	dest := append([]any{&c.id, &c.name, &desc, &typeID}, a.Dest(storage.AuditFull)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	c.description = desc.String
	c.componentType = storage.Unloaded[int16, ComponentType](typeID)
	c.audit = a.Audit()
	c.loaded = true
	return &c, nil
}

var componentTable = &storage.Table[Component]{
	Name:    tableComponent,
	IDCol:   colComponentID,
	Columns: []string{colComponentName, colDescription, colComponentTypeID},
	Audit:   storage.AuditFull,
	Scan:    scanComponent,
}

// ComponentRepository provides access to COMPONENT
type ComponentRepository struct{}

// NewComponentRepository creates a new component repository
func NewComponentRepository() *ComponentRepository {
	return &ComponentRepository{}
}

var components = NewComponentRepository()

// Add inserts c and re-reads it into c
func (r *ComponentRepository) Add(ctx context.Context, s *storage.Session, c *Component, by storage.Actor) error {
	const op = "AddComponent"
	if c.name == "" {
		return s.Invalid(op, "component name is required")
	}
	if err := requireRef(s, op, "component type", c.componentType.ID()); err != nil {
		return err
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := nextShortID(ctx, tx, componentTable, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colComponentID, id).
			Set(colComponentName, c.name).
			Set(colDescription, c.description).
			Set(colComponentTypeID, c.componentType.ID()).
			Created(by, storage.Now())
		if err := componentTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*c = *fresh
		return nil
	})
}

// LookupByID returns the component with id or ROW_NOT_FOUND
func (r *ComponentRepository) LookupByID(ctx context.Context, s *storage.Session, id int16, deleted storage.Deleted) (*Component, error) {
	return componentTable.ByID(ctx, s, "LookupComponentByID", id, deleted)
}

// LookupByName returns the component with the given name
func (r *ComponentRepository) LookupByName(ctx context.Context, s *storage.Session, name string, deleted storage.Deleted) (*Component, error) {
	q := componentTable.Select(s).Where(colComponentName+" = ?", name).NotDeleted("", deleted)
	return componentTable.One(ctx, s, "LookupComponentByName", q)
}

// List returns live components ordered by name
func (r *ComponentRepository) List(ctx context.Context, s *storage.Session) ([]*Component, error) {
	q := componentTable.Select(s).NotDeleted("", storage.ExcludeDeleted).OrderBy(colComponentName)
	return componentTable.Many(ctx, s, "ListComponents", q)
}

// ListByType returns live components of one type
func (r *ComponentRepository) ListByType(ctx context.Context, s *storage.Session, componentType *ComponentType) ([]*Component, error) {
	q := componentTable.Select(s).
		Where(colComponentTypeID+" = ?", componentType.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colComponentName)
	return componentTable.Many(ctx, s, "ListComponentsByType", q)
}

// Search matches pattern ('*' wildcards) against component names
func (r *ComponentRepository) Search(ctx context.Context, s *storage.Session, pattern string) ([]*Component, error) {
	q := componentTable.Select(s).
		Where("UPPER("+colComponentName+") LIKE UPPER(?)"+storage.LikeEscape, storage.Like(pattern)).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colComponentName)
	return componentTable.Many(ctx, s, "SearchComponents", q)
}

// Update changes the description and, when componentType is non-nil, the type
func (r *ComponentRepository) Update(ctx context.Context, s *storage.Session, c *Component, description string, componentType *ComponentType, by storage.Actor) error {
	set := storage.NewValues().Set(colDescription, description)
	if componentType != nil {
		set.Set(colComponentTypeID, componentType.ID())
	}
	audit := touch(c.audit, set, by)
	if err := componentTable.Update(ctx, s, "UpdateComponent", set, c.id); err != nil {
		return err
	}
	c.description = description
	if componentType != nil {
		c.componentType = loadedRef[int16](componentType)
	}
	c.audit = audit
	return nil
}

// Delete soft-deletes c
func (r *ComponentRepository) Delete(ctx context.Context, s *storage.Session, c *Component, by storage.Actor) error {
	return softDelete(ctx, s, componentTable, "DeleteComponent", c.id, &c.audit, by)
}
