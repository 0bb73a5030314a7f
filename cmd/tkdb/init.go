package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tkdb/internal/tk"
)

var (
	initWriteConfig bool
	initSeed        bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the TK schema",
	Long: `Creates every TK table if missing and applies pending migrations.
Safe to run repeatedly.

Examples:
  tkdb init
  tkdb init --seed
  tkdb init --write-config --dsn /var/lib/tkdb/tk.db`,
	Args: cobra.NoArgs,
	RunE: withApp(runInit),
}

func init() {
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "Save the effective config to the config directory")
	initCmd.Flags().BoolVar(&initSeed, "seed", false, "Load the default reference data after creating the schema")
	rootCmd.AddCommand(initCmd)
}

func runInit(ctx context.Context, a *app, args []string) error {
	if err := tk.Migrate(ctx, a.db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if initWriteConfig {
		if err := a.cfg.Save(configDir); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		a.logger.Info("Wrote config", "dir", configDir)
	}

	if initSeed {
		sd, err := tk.DefaultSeed()
		if err != nil {
			return err
		}
		counts, err := tk.Seed(ctx, a.s, sd)
		if err != nil {
			return err
		}
		return a.print(seedTable(counts))
	}

	return a.print(message(fmt.Sprintf("Schema at version %d (%d tables)", tk.SchemaVersion, len(tk.TableNames()))))
}
