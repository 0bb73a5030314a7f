package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const schemaVersionTable = "SCHEMA_VERSION"

// ColumnDef declares one column for DDL
type ColumnDef struct {
	Name    string
	Type    ColumnType
	Size    int
	NotNull bool
	Unique  bool
	// References names the parent table; the parent's key column is RefColumn
	References string
	RefColumn  string
}

// TableDef declares a table; audit columns are appended from Audit
type TableDef struct {
	Name    string
	Key     ColumnDef
	Columns []ColumnDef
	Audit   AuditKind
	// Unique lists composite unique constraints
	Unique [][]string
}

// Migration upgrades the schema from version-1 to version
type Migration func(ctx context.Context, tx *sqlx.Tx, d Dialect) error

// CreateTableSQL renders CREATE TABLE and index statements for def
func (d Dialect) CreateTableSQL(def TableDef) []string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%s %s PRIMARY KEY", def.Key.Name, d.SQLType(def.Key.Type, 0)))

	var indexes []string
	for _, c := range def.Columns {
		line := c.Name + " " + d.SQLType(c.Type, c.Size)
		if c.NotNull {
			line += " NOT NULL"
		}
		if c.Unique {
			line += " UNIQUE"
		}
		if c.References != "" {
			line += fmt.Sprintf(" REFERENCES %s(%s)", d.Qualify(c.References), c.RefColumn)
			indexes = append(indexes, fmt.Sprintf("CREATE INDEX IF NOT EXISTS IDX_%s_%s ON %s(%s)",
				def.Name, c.Name, d.Qualify(def.Name), c.Name))
		}
		lines = append(lines, line)
	}

	for _, c := range def.Audit.Columns() {
		typ := Text
		if strings.HasSuffix(c, "_ON") {
			typ = TimestampCol
		}
		line := c + " " + d.SQLType(typ, 64)
		if c == ColCreatedBy || c == ColCreatedOn {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}

	for _, cols := range def.Unique {
		lines = append(lines, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.Qualify(def.Name), strings.Join(lines, ",\n\t"))}
	return append(stmts, indexes...)
}

// SchemaVersion returns the recorded schema version, or 0 for a new database
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	query := "SELECT VERSION FROM " + db.dialect.Qualify(schemaVersionTable)
	err := db.conn.GetContext(ctx, &version, query)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		if !db.hasVersionTable(ctx) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

func (db *DB) hasVersionTable(ctx context.Context) bool {
	var n int
	var err error
	if db.dialect.Driver == DriverSQLite {
		err = db.conn.GetContext(ctx, &n,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", schemaVersionTable)
	} else {
		err = db.conn.GetContext(ctx, &n, db.dialect.Rebind(
			"SELECT COUNT(*) FROM information_schema.tables WHERE UPPER(table_schema) = UPPER(?) AND UPPER(table_name) = ?"),
			db.dialect.Schema, schemaVersionTable)
	}
	return err == nil && n > 0
}

// ApplySchema creates the tables of a new database, or runs migrations up to
// version on an existing one. A database newer than version is an error.
func (db *DB) ApplySchema(ctx context.Context, version int, defs []TableDef, migrations map[int]Migration) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current > version {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, version)
	}
	if current == version {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}

	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if current == 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (VERSION INTEGER NOT NULL)",
				db.dialect.Qualify(schemaVersionTable))); err != nil {
				return fmt.Errorf("failed to create %s: %w", schemaVersionTable, err)
			}
			for _, def := range defs {
				for _, stmt := range db.dialect.CreateTableSQL(def) {
					if _, err := tx.ExecContext(ctx, stmt); err != nil {
						return fmt.Errorf("failed to create table %s: %w", def.Name, err)
					}
				}
			}
			db.logger.Info("Database schema initialized", "version", version, "tables", len(defs))
		} else {
			db.logger.Info("Running database migrations", "from_version", current, "to_version", version)
			for v := current + 1; v <= version; v++ {
				m, ok := migrations[v]
				if !ok {
					return fmt.Errorf("no migration to schema version %d", v)
				}
				if err := m(ctx, tx, db.dialect); err != nil {
					return fmt.Errorf("migration to version %d failed: %w", v, err)
				}
			}
		}

		return setSchemaVersion(ctx, tx, db.dialect, version)
	})
}

func setSchemaVersion(ctx context.Context, tx *sqlx.Tx, d Dialect, version int) error {
	table := d.Qualify(schemaVersionTable)
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO "+table+" (VERSION) VALUES (?)"), version)
	return err
}
