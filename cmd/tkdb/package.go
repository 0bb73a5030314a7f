package main

import (
	"context"

	"github.com/spf13/cobra"

	"tkdb/internal/tk"
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Query delivered packages",
}

var packageLineageCmd = &cobra.Command{
	Use:   "lineage <pattern>",
	Short: "Trace packages back to component, tool kit, release and stage",
	Long: `Shows where each live package matching pattern came from. The pattern
matches package names; '*' is a wildcard.

Examples:
  tkdb package lineage libparse-1.4.2-linux-amd64.tar.gz
  tkdb package lineage 'libparse-*'`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runPackageLineage),
}

func init() {
	packageCmd.AddCommand(packageLineageCmd)
	rootCmd.AddCommand(packageCmd)
}

func runPackageLineage(ctx context.Context, a *app, args []string) error {
	rows, err := tk.NewPackageRepository().Lineage(ctx, a.s, args[0])
	if err != nil {
		return err
	}
	return a.print(lineageTable(rows))
}
