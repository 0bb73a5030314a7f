package tk

import (
	"context"

	"tkdb/internal/storage"
)

// SchemaVersion is the TK schema version this package reads and writes
const SchemaVersion = 1

func shortKey(name string) storage.ColumnDef {
	return storage.ColumnDef{Name: name, Type: storage.ShortID}
}

func longKey(name string) storage.ColumnDef {
	return storage.ColumnDef{Name: name, Type: storage.LongID}
}

func text(name string, size int) storage.ColumnDef {
	return storage.ColumnDef{Name: name, Type: storage.Text, Size: size}
}

func uniqueName(col string, size int) storage.ColumnDef {
	return storage.ColumnDef{Name: col, Type: storage.Text, Size: size, NotNull: true, Unique: true}
}

func fk(col string, typ storage.ColumnType, table string) storage.ColumnDef {
	return storage.ColumnDef{Name: col, Type: typ, NotNull: true, References: table, RefColumn: col}
}

func lookupDef(table, idCol, nameCol string) storage.TableDef {
	return storage.TableDef{
		Name:    table,
		Key:     shortKey(idCol),
		Columns: []storage.ColumnDef{uniqueName(nameCol, 64), text(colDescription, 255)},
		Audit:   storage.AuditNone,
	}
}

func linkDef(table, ownerCol, ownerTable string) storage.TableDef {
	return storage.TableDef{
		Name: table,
		Key:  longKey(table + "_ID"),
		Columns: []storage.ColumnDef{
			fk(ownerCol, storage.LongID, ownerTable),
			fk(colChangeRequestID, storage.LongID, tableChangeRequest),
		},
		Audit:  storage.AuditCreated,
		Unique: [][]string{{ownerCol, colChangeRequestID}},
	}
}

// Tables returns the TK table definitions in dependency order
func Tables() []storage.TableDef {
	return []storage.TableDef{
		lookupDef(tableComponentType, colComponentTypeID, colComponentTypeName),
		lookupDef(tableStageName, colStageNameID, colStageName),
		lookupDef(tableLocation, colLocationID, colLocationName),
		lookupDef(tablePlatform, colPlatformID, colPlatformName),
		lookupDef(tableCRStatus, colStatusID, colStatusName),
		lookupDef(tableCRType, colTypeID, colTypeName),
		lookupDef(tableCRSeverity, colSeverityID, colSeverityName),
		lookupDef(tableEventName, colEventNameID, colEventName),
		{
			Name: tableUsers,
			Key:  longKey(colUserID),
			Columns: []storage.ColumnDef{
				uniqueName(colIntranetID, userAuditNameSize),
				text(colDisplayName, 128),
				text(colEmail, 255),
			},
			Audit: storage.AuditFull,
		},
		{
			Name: tableComponent,
			Key:  shortKey(colComponentID),
			Columns: []storage.ColumnDef{
				uniqueName(colComponentName, 64),
				text(colDescription, 255),
				fk(colComponentTypeID, storage.ShortID, tableComponentType),
			},
			Audit: storage.AuditFull,
		},
		{
			Name:    tableRelease,
			Key:     shortKey(colReleaseID),
			Columns: []storage.ColumnDef{uniqueName(colReleaseName, 64), text(colDescription, 255)},
			Audit:   storage.AuditFull,
		},
		{
			Name: tableToolKit,
			Key:  shortKey(colToolKitID),
			Columns: []storage.ColumnDef{
				uniqueName(colToolKitName, 64),
				text(colDescription, 255),
				fk(colReleaseID, storage.ShortID, tableRelease),
				fk(colStageNameID, storage.ShortID, tableStageName),
			},
			Audit: storage.AuditFull,
		},
		{
			Name: tableComponentVersion,
			Key:  longKey(colComponentVersionID),
			Columns: []storage.ColumnDef{
				fk(colComponentID, storage.ShortID, tableComponent),
				fk(colToolKitID, storage.ShortID, tableToolKit),
				fk(colStageNameID, storage.ShortID, tableStageName),
			},
			Audit: storage.AuditFull,
		},
		{
			Name: tableCompVersionLoc,
			Key:  longKey(colCompVersionLocID),
			Columns: []storage.ColumnDef{
				fk(colComponentVersionID, storage.LongID, tableComponentVersion),
				fk(colLocationID, storage.ShortID, tableLocation),
			},
			Audit: storage.AuditFull,
		},
		{
			Name: tableChangeRequest,
			Key:  longKey(colChangeRequestID),
			Columns: []storage.ColumnDef{
				uniqueName(colCQName, 32),
				text(colHeadline, 255),
				text(colDescription, 0),
				fk(colStatusID, storage.ShortID, tableCRStatus),
				fk(colTypeID, storage.ShortID, tableCRType),
				fk(colSeverityID, storage.ShortID, tableCRSeverity),
				fk(colComponentID, storage.ShortID, tableComponent),
			},
			Audit: storage.AuditFull,
		},
		linkDef(tableCompVersionCR, colComponentVersionID, tableComponentVersion),
		{
			Name: tableCodeUpdate,
			Key:  longKey(colCodeUpdateID),
			Columns: []storage.ColumnDef{
				{Name: colRevision, Type: storage.Integer, NotNull: true},
				text(colCommittedBy, 64),
				{Name: colCommittedOn, Type: storage.TimestampCol},
				text(colDescription, 0),
				fk(colComponentVersionID, storage.LongID, tableComponentVersion),
			},
			Audit: storage.AuditCreated,
		},
		linkDef(tableCodeUpdateCR, colCodeUpdateID, tableCodeUpdate),
		{
			Name: tablePackage,
			Key:  longKey(colPackageID),
			Columns: []storage.ColumnDef{
				uniqueName(colPackageName, 255),
				{Name: colRevision, Type: storage.Integer},
				fk(colComponentVersionID, storage.LongID, tableComponentVersion),
				fk(colPlatformID, storage.ShortID, tablePlatform),
			},
			Audit: storage.AuditFull,
		},
		linkDef(tablePackageCR, colPackageID, tablePackage),
		{
			Name: tableEvent,
			Key:  longKey(colEventID),
			Columns: []storage.ColumnDef{
				text(colDescription, 255),
				fk(colEventNameID, storage.ShortID, tableEventName),
				fk(colComponentVersionID, storage.LongID, tableComponentVersion),
			},
			Audit: storage.AuditCreated,
		},
		{
			Name: tableAccessRequest,
			Key:  longKey(colAccessRequestID),
			Columns: []storage.ColumnDef{
				text(colReason, 255),
				{Name: colState, Type: storage.Text, Size: 16, NotNull: true},
				fk(colUserID, storage.LongID, tableUsers),
				fk(colComponentID, storage.ShortID, tableComponent),
			},
			Audit: storage.AuditFull,
		},
	}
}

// Migrations holds the upgrade steps keyed by target version
var Migrations = map[int]storage.Migration{}

// Migrate brings db up to SchemaVersion
func Migrate(ctx context.Context, db *storage.DB) error {
	return db.ApplySchema(ctx, SchemaVersion, Tables(), Migrations)
}

// TableNames lists every TK table in dependency order
func TableNames() []string {
	defs := Tables()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}
