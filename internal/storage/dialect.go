package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DefaultSchema is the schema every TK table lives in
const DefaultSchema = "TK"

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by default
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Dialect captures the per-database differences the DAO layer cares about:
// table qualification, placeholder style and DDL column types.
type Dialect struct {
	Driver string
	Schema string
}

// DialectFor returns the dialect for a driver name
func DialectFor(driver, schema string) (Dialect, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
		return Dialect{Driver: driver, Schema: schema}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// HasSchemas reports whether tables are qualified with the schema name.
// SQLite has no schemas short of ATTACH, so its tables use bare names.
func (d Dialect) HasSchemas() bool {
	return d.Driver == DriverPostgres && d.Schema != ""
}

// Qualify returns the table name as it must appear in SQL text
func (d Dialect) Qualify(table string) string {
	if d.HasSchemas() {
		return d.Schema + "." + table
	}
	return table
}

// Rebind converts '?' placeholders to the driver's bind style
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(d.Driver), query)
}

// ColumnType is a portable column type for DDL
type ColumnType int

const (
	ShortID ColumnType = iota
	LongID
	Text
	Integer
	TimestampCol
)

// SQLType renders a column type; size only applies to Text
func (d Dialect) SQLType(t ColumnType, size int) string {
	if d.Driver == DriverSQLite {
		switch t {
		case ShortID, LongID, Integer:
			return "INTEGER"
		default:
			return "TEXT"
		}
	}

	switch t {
	case ShortID:
		return "SMALLINT"
	case LongID:
		return "BIGINT"
	case Integer:
		return "INTEGER"
	case TimestampCol:
		return "TIMESTAMPTZ"
	default:
		if size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", size)
		}
		return "TEXT"
	}
}
