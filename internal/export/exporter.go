// Package export dumps TK tables as zstd-compressed JSON lines.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	tkerrors "tkdb/internal/errors"
	"tkdb/internal/storage"
)

const operation = "ExportTables"

// Exporter streams table contents out of a database
type Exporter struct {
	db     *storage.DB
	defs   map[string]storage.TableDef
	order  []string
	logger *slog.Logger
}

// NewExporter creates an exporter for the given table definitions. Tables are
// exported in the order of defs.
func NewExporter(db *storage.DB, defs []storage.TableDef) *Exporter {
	e := &Exporter{
		db:     db,
		defs:   make(map[string]storage.TableDef, len(defs)),
		order:  make([]string, 0, len(defs)),
		logger: db.Logger(),
	}
	for _, d := range defs {
		e.defs[d.Name] = d
		e.order = append(e.order, d.Name)
	}
	return e
}

// Export writes every selected table to w. The zstd frame is closed before
// returning, also on error, so w holds a readable prefix of the export.
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts Options) (*Summary, error) {
	tables, err := e.selectTables(opts.Tables)
	if err != nil {
		return nil, err
	}

	level := opts.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	started := time.Now()
	summary := &Summary{Tables: make([]TableCount, 0, len(tables))}
	out := json.NewEncoder(enc)

	for _, name := range tables {
		n, err := e.exportTable(ctx, out, e.defs[name], opts.IncludeDeleted)
		if err != nil {
			_ = enc.Close()
			return nil, err
		}
		summary.Tables = append(summary.Tables, TableCount{Table: name, Rows: n})
		summary.Rows += n
		e.logger.Debug("Exported table", "table", name, "rows", n)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}

	e.logger.Info("Export complete",
		"tables", len(summary.Tables),
		"rows", summary.Rows,
		"duration", time.Since(started),
	)
	return summary, nil
}

func (e *Exporter) selectTables(names []string) ([]string, error) {
	if len(names) == 0 {
		return e.order, nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if _, ok := e.defs[n]; !ok {
			return nil, tkerrors.New(tkerrors.InvalidArgument, operation, "unknown table "+n, "", nil)
		}
		out = append(out, n)
	}
	return out, nil
}

func (e *Exporter) exportTable(ctx context.Context, out *json.Encoder, def storage.TableDef, includeDeleted bool) (int64, error) {
	query := "SELECT * FROM " + e.db.Dialect().Qualify(def.Name)
	if def.Audit.SoftDeletes() && !includeDeleted {
		query += " WHERE " + storage.ColDeletedOn + " IS NULL"
	}
	query += " ORDER BY " + def.Key.Name

	rows, err := e.db.Conn().QueryxContext(ctx, query)
	if err != nil {
		return 0, e.fail(tkerrors.QueryFailed, "query failed", query, err)
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return n, e.fail(tkerrors.ReadFailed, "failed to read row", query, err)
		}
		if err := out.Encode(Line{Table: def.Name, Row: normalize(raw)}); err != nil {
			return n, fmt.Errorf("failed to write %s row: %w", def.Name, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, e.fail(tkerrors.ReadFailed, "row iteration failed", query, err)
	}
	return n, nil
}

func (e *Exporter) fail(code tkerrors.ErrorCode, message, query string, cause error) error {
	err := tkerrors.New(code, operation, message, query, cause)
	e.logger.Error("Export failed",
		"operation", operation,
		"code", string(code),
		"query", err.Query,
		"error", cause,
	)
	return err
}

// normalize makes driver values JSON-friendly: text arrives as []byte from
// some drivers and Postgres folds unquoted identifiers to lower case.
func normalize(raw map[string]any) map[string]any {
	row := make(map[string]any, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case []byte:
			v = string(val)
		case time.Time:
			v = storage.FormatTime(val)
		}
		row[strings.ToUpper(k)] = v
	}
	return row
}

// Read decodes an export stream, calling fn for every line in order
func Read(r io.Reader, fn func(Line) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	in := json.NewDecoder(dec)
	in.UseNumber()
	for {
		var line Line
		if err := in.Decode(&line); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to decode export line: %w", err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
}
