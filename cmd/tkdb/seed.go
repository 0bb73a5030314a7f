package main

import (
	"context"

	"github.com/spf13/cobra"

	"tkdb/internal/tk"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load reference data",
	Long: `Adds reference rows (component types, stages, locations, platforms,
change-request statuses/types/severities, event names) that are not yet present.
Existing rows are left untouched.

The data comes from --file, then seed.file in the config, then the built-in
defaults. Files may be YAML or TOML.`,
	Args: cobra.NoArgs,
	RunE: withApp(runSeed),
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Seed file (.yaml, .yml or .toml)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context, a *app, args []string) error {
	path := seedFile
	if path == "" {
		path = a.cfg.Seed.File
	}

	var (
		sd  *tk.SeedData
		err error
	)
	if path != "" {
		sd, err = tk.LoadSeedFile(path)
	} else {
		sd, err = tk.DefaultSeed()
	}
	if err != nil {
		return err
	}

	counts, err := tk.Seed(ctx, a.s, sd)
	if err != nil {
		return err
	}
	return a.print(seedTable(counts))
}
