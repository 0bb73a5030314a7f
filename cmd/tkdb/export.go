package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tkdb/internal/export"
	"tkdb/internal/tk"
)

var (
	exportOut            string
	exportTables         []string
	exportIncludeDeleted bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump TK tables as zstd-compressed JSON lines",
	Long: `Writes every TK table, or the tables named with --table, as one JSON
object per row: {"table": "...", "row": {...}}. The stream is zstd-compressed.

Examples:
  tkdb export --out tk.jsonl.zst
  tkdb export --table COMPONENT --table TOOL_KIT --out - | zstd -d`,
	Args: cobra.NoArgs,
	RunE: withApp(runExport),
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file, '-' for stdout (required)")
	exportCmd.Flags().StringSliceVar(&exportTables, "table", nil, "Table to export (repeatable, default all)")
	exportCmd.Flags().BoolVar(&exportIncludeDeleted, "include-deleted", false, "Keep soft-deleted rows")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, a *app, args []string) error {
	var w io.Writer = os.Stdout
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	summary, err := export.NewExporter(a.db, tk.Tables()).Export(ctx, w, export.Options{
		Tables:         exportTables,
		IncludeDeleted: exportIncludeDeleted,
	})
	if err != nil {
		return err
	}

	// stdout carries the export itself
	if exportOut == "-" {
		a.logger.Info("Exported rows", "rows", summary.Rows)
		return nil
	}
	return a.print(exportTable(summary))
}
