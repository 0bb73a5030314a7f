package tk

import (
	"context"
	"encoding/json"

	"tkdb/internal/storage"
)

// PACKAGE columns
const (
	tablePackage   = "PACKAGE"
	colPackageID   = "PACKAGE_ID"
	colPackageName = "PACKAGE_NAME"
)

// Package is a built artifact of a component version for one platform
type Package struct {
	id               int64
	name             string
	revision         int64
	componentVersion storage.Ref[int64, ComponentVersion]
	platform         storage.Ref[int16, Platform]
	audit            storage.Audit
	loaded           bool
}

// NewPackage builds a package for insert
func NewPackage(name string, revision int64, cv *ComponentVersion, platform *Platform) *Package {
	return &Package{
		name:             name,
		revision:         revision,
		componentVersion: loadedRef[int64](cv),
		platform:         loadedRef[int16](platform),
	}
}

// PackageByID builds an id-only package to be loaded later
func PackageByID(id int64) *Package {
	return &Package{id: id}
}

// Getters
func (p *Package) ID() int64                              { return p.id }
func (p *Package) Name() string                           { return p.name }
func (p *Package) Revision() int64                        { return p.revision }
func (p *Package) Platform() storage.Ref[int16, Platform] { return p.platform }
func (p *Package) Audit() storage.Audit                   { return p.audit }
func (p *Package) IsLoaded() bool                         { return p.loaded }

func (p *Package) ComponentVersion() storage.Ref[int64, ComponentVersion] {
	return p.componentVersion
}

// LoadComponentVersion resolves the component version reference
func (p *Package) LoadComponentVersion(ctx context.Context, s *storage.Session) (*ComponentVersion, error) {
	return p.componentVersion.Resolve(ctx, func(ctx context.Context, id int64) (*ComponentVersion, error) {
		return componentVersions.LookupByID(ctx, s, id, storage.IncludeDeleted)
	})
}

// LoadPlatform resolves the platform reference
func (p *Package) LoadPlatform(ctx context.Context, s *storage.Session) (*Platform, error) {
	return p.platform.Resolve(ctx, func(ctx context.Context, id int16) (*Platform, error) {
		return platforms.LookupByID(ctx, s, id)
	})
}

func (p *Package) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID               int64                                `json:"id"`
		Name             string                               `json:"name"`
		Revision         int64                                `json:"revision"`
		ComponentVersion storage.Ref[int64, ComponentVersion] `json:"componentVersion"`
		Platform         storage.Ref[int16, Platform]         `json:"platform"`
		Audit            storage.Audit                        `json:"audit"`
	}{p.id, p.name, p.revision, p.componentVersion, p.platform, p.audit})
}

func scanPackage(sc storage.Scanner) (*Package, error) {
	var p Package
	var cvID int64
	var platformID int16
	var a storage.AuditScan
	dest := append([]any{&p.id, &p.name, &p.revision, &cvID, &platformID}, a.Dest(storage.AuditFull)...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	p.componentVersion = storage.Unloaded[int64, ComponentVersion](cvID)
	p.platform = storage.Unloaded[int16, Platform](platformID)
	p.audit = a.Audit()
	p.loaded = true
	return &p, nil
}

var packageTable = &storage.Table[Package]{
	Name:    tablePackage,
	IDCol:   colPackageID,
	Columns: []string{colPackageName, colRevision, colComponentVersionID, colPlatformID},
	Audit:   storage.AuditFull,
	Scan:    scanPackage,
}

// PackageLineage is one package traced back through its component version
// to the component, tool kit, release, stage and platform.
type PackageLineage struct {
	PackageID          int64  `json:"packageId"`
	PackageName        string `json:"packageName"`
	Revision           int64  `json:"revision"`
	ComponentVersionID int64  `json:"componentVersionId"`
	ComponentID        int16  `json:"componentId"`
	ComponentName      string `json:"componentName"`
	ToolKitID          int16  `json:"toolKitId"`
	ToolKitName        string `json:"toolKitName"`
	ReleaseID          int16  `json:"releaseId"`
	ReleaseName        string `json:"releaseName"`
	StageID            int16  `json:"stageId"`
	StageName          string `json:"stageName"`
	PlatformID         int16  `json:"platformId"`
	PlatformName       string `json:"platformName"`
}

func scanPackageLineage(sc storage.Scanner) (*PackageLineage, error) {
	var l PackageLineage
	err := sc.Scan(&l.PackageID, &l.PackageName, &l.Revision, &l.ComponentVersionID,
		&l.ComponentID, &l.ComponentName, &l.ToolKitID, &l.ToolKitName,
		&l.ReleaseID, &l.ReleaseName, &l.StageID, &l.StageName,
		&l.PlatformID, &l.PlatformName)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// PackageRepository provides access to PACKAGE
type PackageRepository struct{}

// NewPackageRepository creates a new package repository
func NewPackageRepository() *PackageRepository {
	return &PackageRepository{}
}

// Add inserts p and re-reads it into p
func (r *PackageRepository) Add(ctx context.Context, s *storage.Session, p *Package, by storage.Actor) error {
	const op = "AddPackage"
	if p.name == "" {
		return s.Invalid(op, "package name is required")
	}
	if err := requireRef(s, op, "component version", p.componentVersion.ID()); err != nil {
		return err
	}
	if err := requireRef(s, op, "platform", p.platform.ID()); err != nil {
		return err
	}

	return s.InTx(ctx, func(tx *storage.Session) error {
		id, err := packageTable.NextID(ctx, tx, op)
		if err != nil {
			return err
		}
		v := storage.NewValues().
			Set(colPackageID, id).
			Set(colPackageName, p.name).
			Set(colRevision, p.revision).
			Set(colComponentVersionID, p.componentVersion.ID()).
			Set(colPlatformID, p.platform.ID()).
			Created(by, storage.Now())
		if err := packageTable.Insert(ctx, tx, op, v); err != nil {
			return err
		}
		fresh, err := r.LookupByID(ctx, tx, id, storage.ExcludeDeleted)
		if err != nil {
			return err
		}
		*p = *fresh
		return nil
	})
}

// LookupByID returns the package with id or ROW_NOT_FOUND
func (r *PackageRepository) LookupByID(ctx context.Context, s *storage.Session, id int64, deleted storage.Deleted) (*Package, error) {
	return packageTable.ByID(ctx, s, "LookupPackageByID", id, deleted)
}

// LookupByName returns the package with the given name
func (r *PackageRepository) LookupByName(ctx context.Context, s *storage.Session, name string, deleted storage.Deleted) (*Package, error) {
	q := packageTable.Select(s).Where(colPackageName+" = ?", name).NotDeleted("", deleted)
	return packageTable.One(ctx, s, "LookupPackageByName", q)
}

// ListByComponentVersion returns the live packages built from cv
func (r *PackageRepository) ListByComponentVersion(ctx context.Context, s *storage.Session, cv *ComponentVersion) ([]*Package, error) {
	q := packageTable.Select(s).
		Where(colComponentVersionID+" = ?", cv.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colPackageName)
	return packageTable.Many(ctx, s, "ListPackagesByComponentVersion", q)
}

// ListByPlatform returns the live packages built for platform
func (r *PackageRepository) ListByPlatform(ctx context.Context, s *storage.Session, platform *Platform) ([]*Package, error) {
	q := packageTable.Select(s).
		Where(colPlatformID+" = ?", platform.ID()).
		NotDeleted("", storage.ExcludeDeleted).
		OrderBy(colPackageName)
	return packageTable.Many(ctx, s, "ListPackagesByPlatform", q)
}

// Lineage traces live packages whose name matches pattern ('*' wildcards
// allowed) back to where they came from. Rows are ordered by package name.
func (r *PackageRepository) Lineage(ctx context.Context, s *storage.Session, pattern string) ([]*PackageLineage, error) {
	const op = "PackageLineage"
	if pattern == "" {
		return nil, s.Invalid(op, "package name is required")
	}

	q := storage.NewQuery("SELECT p."+colPackageID+", p."+colPackageName+", p."+colRevision+
		", cv."+colComponentVersionID+
		", c."+colComponentID+", c."+colComponentName+
		", k."+colToolKitID+", k."+colToolKitName+
		", rl."+colReleaseID+", rl."+colReleaseName+
		", st."+colStageNameID+", st."+colStageName+
		", pl."+colPlatformID+", pl."+colPlatformName).
		Append("FROM " + s.Qualify(tablePackage) + " p").
		Append("JOIN " + s.Qualify(tableComponentVersion) + " cv ON cv." + colComponentVersionID + " = p." + colComponentVersionID).
		Append("JOIN " + s.Qualify(tableComponent) + " c ON c." + colComponentID + " = cv." + colComponentID).
		Append("JOIN " + s.Qualify(tableToolKit) + " k ON k." + colToolKitID + " = cv." + colToolKitID).
		Append("JOIN " + s.Qualify(tableRelease) + " rl ON rl." + colReleaseID + " = k." + colReleaseID).
		Append("JOIN " + s.Qualify(tableStageName) + " st ON st." + colStageNameID + " = cv." + colStageNameID).
		Append("JOIN " + s.Qualify(tablePlatform) + " pl ON pl." + colPlatformID + " = p." + colPlatformID).
		Where("p."+colPackageName+" LIKE ?"+storage.LikeEscape, storage.Like(pattern)).
		NotDeleted("p.", storage.ExcludeDeleted).
		OrderBy("p."+colPackageName, "p."+colPackageID)

	return storage.QueryMany(ctx, s, op, q, scanPackageLineage)
}

// Delete soft-deletes p
func (r *PackageRepository) Delete(ctx context.Context, s *storage.Session, p *Package, by storage.Actor) error {
	return softDelete(ctx, s, packageTable, "DeletePackage", p.id, &p.audit, by)
}
