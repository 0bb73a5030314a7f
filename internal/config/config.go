package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version written by Save
const CurrentVersion = 1

// ConfigName is the base name of the config file (tkdb.json, tkdb.yaml or tkdb.toml)
const ConfigName = "tkdb"

// Config represents the complete tkdb configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Database DatabaseConfig `json:"database" mapstructure:"database"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	Seed     SeedConfig     `json:"seed" mapstructure:"seed"`
}

// DatabaseConfig selects the driver and connection
type DatabaseConfig struct {
	// Driver is "sqlite" or "pgx"
	Driver string `json:"driver" mapstructure:"driver"`
	// DSN is the Postgres connection string, or the SQLite file path
	DSN string `json:"dsn" mapstructure:"dsn"`
	// Schema qualifies table names on dialects that support schemas
	Schema string `json:"schema" mapstructure:"schema"`
}

// LoggingConfig contains session-log configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"`
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file,omitempty" mapstructure:"file"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups"`
}

// MetricsConfig controls where DAO metrics are written
type MetricsConfig struct {
	TextFile string `json:"textFile,omitempty" mapstructure:"textFile"`
}

// SeedConfig points at a reference-data file; empty means the embedded default
type SeedConfig struct {
	File string `json:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(".tkdb", "tk.db"),
			Schema: "TK",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <dir>/tkdb.{json,yaml,toml}, then applies
// TKDB_* environment overrides (TKDB_DATABASE_DSN, TKDB_LOGGING_LEVEL, ...).
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("database.driver", def.Database.Driver)
	v.SetDefault("database.dsn", def.Database.DSN)
	v.SetDefault("database.schema", def.Database.Schema)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxSize", "")
	v.SetDefault("logging.maxBackups", 0)
	v.SetDefault("metrics.textFile", "")
	v.SetDefault("seed.file", "")

	v.SetConfigName(ConfigName)
	v.AddConfigPath(dir)

	v.SetEnvPrefix("TKDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to <dir>/tkdb.json
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, ConfigName+".json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}

	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return &ConfigError{Field: "database.driver", Message: "must be 'sqlite' or 'pgx'"}
	}

	if c.Database.DSN == "" {
		return &ConfigError{Field: "database.dsn", Message: "must not be empty"}
	}

	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be 'human' or 'json'"}
	}

	if c.Logging.MaxBackups < 0 {
		return &ConfigError{Field: "logging.maxBackups", Message: "must not be negative"}
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
