package export

import "github.com/klauspost/compress/zstd"

// Options controls an export run
type Options struct {
	// Tables limits the export to these tables; empty means every table
	Tables []string
	// IncludeDeleted keeps soft-deleted rows
	IncludeDeleted bool
	// Level is the zstd encoder level; zero means zstd.SpeedDefault
	Level zstd.EncoderLevel
}

// Line is one exported row. Column names are upper case regardless of driver.
type Line struct {
	Table string         `json:"table"`
	Row   map[string]any `json:"row"`
}

// TableCount is the number of rows written for one table
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Summary reports what an export wrote
type Summary struct {
	Tables []TableCount `json:"tables"`
	Rows   int64        `json:"rows"`
}
