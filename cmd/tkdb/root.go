package main

import (
	"github.com/spf13/cobra"
)

var (
	configDir   string
	driverFlag  string
	dsnFlag     string
	logLevel    string
	formatFlag  string
	metricsFile string
	actorFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "tkdb",
	Short: "tkdb - tool-kit release tracking database",
	Long: `tkdb manages the tool-kit release tracking database: components, releases,
tool kits, component versions, change requests, packages and their events.

The database is SQLite by default; set --driver pgx and --dsn to use Postgres.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config", ".", "Directory containing tkdb.{json,yaml,toml}")
	flags.StringVar(&driverFlag, "driver", "", "Database driver: sqlite or pgx (overrides config)")
	flags.StringVar(&dsnFlag, "dsn", "", "SQLite file or Postgres connection string (overrides config)")
	flags.StringVar(&logLevel, "log-level", "", "Session log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&formatFlag, "format", "human", "Output format (json, human)")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write DAO metrics to this Prometheus textfile on exit")
	flags.StringVar(&actorFlag, "as", "", "Intranet id of the user recorded in audit columns")
}
