package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.Schema != "TK" {
		t.Errorf("Schema = %q, want %q", cfg.Database.Schema, "TK")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	def := DefaultConfig()
	if cfg.Database.Driver != def.Database.Driver {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, def.Database.Driver)
	}
	if cfg.Database.DSN != def.Database.DSN {
		t.Errorf("DSN = %q, want %q", cfg.Database.DSN, def.Database.DSN)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `version: 1
database:
  driver: pgx
  dsn: postgres://localhost/tk?sslmode=disable
  schema: TK
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(dir, "tkdb.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Database.Driver != "pgx" {
		t.Errorf("Driver = %q, want pgx", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://localhost/tk?sslmode=disable" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TKDB_DATABASE_DSN", "/tmp/override.db")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.DSN != "/tmp/override.db" {
		t.Errorf("DSN = %q, want env override", cfg.Database.DSN)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Logging.File = "session.log"
	cfg.Logging.MaxSize = "10MB"
	cfg.Logging.MaxBackups = 3

	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Logging.File != "session.log" {
		t.Errorf("Logging.File = %q, want session.log", loaded.Logging.File)
	}
	if loaded.Logging.MaxSize != "10MB" {
		t.Errorf("Logging.MaxSize = %q, want 10MB", loaded.Logging.MaxSize)
	}
	if loaded.Logging.MaxBackups != 3 {
		t.Errorf("Logging.MaxBackups = %d, want 3", loaded.Logging.MaxBackups)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad version", func(c *Config) { c.Version = 99 }, "version"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.maxBackups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}
