package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tkdb/internal/config"
	"tkdb/internal/metrics"
	"tkdb/internal/slogutil"
	"tkdb/internal/storage"
	"tkdb/internal/tk"
)

// defaultActor is recorded in audit columns when --as is not given
const defaultActor = storage.SystemActor("tkdb")

// app is everything a command needs to talk to the database
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *storage.DB
	s       *storage.Session
	metrics *metrics.Recorder
	logFile io.Closer
}

// loadConfig reads the config directory and applies command-line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if driverFlag != "" {
		cfg.Database.Driver = driverFlag
	}
	if dsnFlag != "" {
		cfg.Database.DSN = dsnFlag
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if metricsFile != "" {
		cfg.Metrics.TextFile = metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logFile, err := slogutil.NewSessionLogger(cfg.Logging, os.Stderr, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}

	db, err := storage.Open(storage.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Schema: cfg.Database.Schema,
	}, logger)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}

	rec := metrics.NewRecorder()
	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		s:       storage.NewSession(db, storage.WithMetrics(rec)),
		metrics: rec,
		logFile: logFile,
	}, nil
}

// Close writes the metrics textfile if configured and releases the database
func (a *app) Close() error {
	if path := a.cfg.Metrics.TextFile; path != "" {
		if err := a.metrics.WriteTextFile(path); err != nil {
			a.logger.Warn("Failed to write metrics textfile", "path", path, "error", err)
		}
	}
	err := a.db.Close()
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
	return err
}

// actor resolves --as to a user row, or falls back to the tool identity
func (a *app) actor(ctx context.Context) (storage.Actor, error) {
	if actorFlag == "" {
		return defaultActor, nil
	}
	u, err := tk.NewUserRepository().LookupByIntranetID(ctx, a.s, actorFlag, storage.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("unknown user %q for --as: %w", actorFlag, err)
	}
	return u, nil
}

// print writes v in the selected output format
func (a *app) print(v any) error {
	out, err := FormatResponse(v, OutputFormat(formatFlag))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// withApp adapts a command body to cobra's RunE, opening and closing the app
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return fn(cmd.Context(), a, args)
	}
}
