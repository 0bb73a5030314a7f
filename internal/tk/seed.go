package tk

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"tkdb/internal/storage"
)

//go:embed seed/default.yaml
var defaultSeed []byte

// SeedEntry is one reference-table row
type SeedEntry struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty"`
}

// SeedData is the reference data for every lookup table
type SeedData struct {
	Version                 int         `yaml:"version" toml:"version"`
	ComponentTypes          []SeedEntry `yaml:"component_types" toml:"component_types"`
	Stages                  []SeedEntry `yaml:"stages" toml:"stages"`
	Locations               []SeedEntry `yaml:"locations" toml:"locations"`
	Platforms               []SeedEntry `yaml:"platforms" toml:"platforms"`
	ChangeRequestStatuses   []SeedEntry `yaml:"change_request_statuses" toml:"change_request_statuses"`
	ChangeRequestTypes      []SeedEntry `yaml:"change_request_types" toml:"change_request_types"`
	ChangeRequestSeverities []SeedEntry `yaml:"change_request_severities" toml:"change_request_severities"`
	EventNames              []SeedEntry `yaml:"event_names" toml:"event_names"`
}

// SeedCount reports what seeding did to one table
type SeedCount struct {
	Table   string `json:"table"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

// DefaultSeed returns the built-in reference data
func DefaultSeed() (*SeedData, error) {
	return ParseSeed(defaultSeed, "yaml")
}

// ParseSeed decodes seed data in the given format ("yaml" or "toml")
func ParseSeed(data []byte, format string) (*SeedData, error) {
	var sd SeedData
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("failed to parse seed TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q", format)
	}
	if err := sd.validate(); err != nil {
		return nil, err
	}
	return &sd, nil
}

// LoadSeedFile reads seed data, choosing the format from the file extension
func LoadSeedFile(path string) (*SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

func (sd *SeedData) validate() error {
	sets := map[string][]SeedEntry{
		"component_types":           sd.ComponentTypes,
		"stages":                    sd.Stages,
		"locations":                 sd.Locations,
		"platforms":                 sd.Platforms,
		"change_request_statuses":   sd.ChangeRequestStatuses,
		"change_request_types":      sd.ChangeRequestTypes,
		"change_request_severities": sd.ChangeRequestSeverities,
		"event_names":               sd.EventNames,
	}
	for key, entries := range sets {
		seen := make(map[string]bool, len(entries))
		for i, e := range entries {
			if e.Name == "" {
				return fmt.Errorf("seed %s[%d]: name is required", key, i)
			}
			if seen[e.Name] {
				return fmt.Errorf("seed %s: duplicate name %q", key, e.Name)
			}
			seen[e.Name] = true
		}
	}
	return nil
}

// Seed adds the reference rows of sd that are not present yet. Existing names
// are left untouched, so seeding twice is a no-op. All tables are seeded in
// one transaction.
func Seed(ctx context.Context, s *storage.Session, sd *SeedData) ([]SeedCount, error) {
	var counts []SeedCount
	err := s.InTx(ctx, func(tx *storage.Session) error {
		counts = counts[:0]
		steps := []func() (SeedCount, error){
			func() (SeedCount, error) { return seedTable(ctx, tx, componentTypes, sd.ComponentTypes, NewComponentType) },
			func() (SeedCount, error) { return seedTable(ctx, tx, stageNames, sd.Stages, NewStageName) },
			func() (SeedCount, error) { return seedTable(ctx, tx, locations, sd.Locations, NewLocation) },
			func() (SeedCount, error) { return seedTable(ctx, tx, platforms, sd.Platforms, NewPlatform) },
			func() (SeedCount, error) {
				return seedTable(ctx, tx, crStatuses, sd.ChangeRequestStatuses, NewChangeRequestStatus)
			},
			func() (SeedCount, error) {
				return seedTable(ctx, tx, crTypes, sd.ChangeRequestTypes, NewChangeRequestType)
			},
			func() (SeedCount, error) {
				return seedTable(ctx, tx, crSeverities, sd.ChangeRequestSeverities, NewChangeRequestSeverity)
			},
			func() (SeedCount, error) { return seedTable(ctx, tx, eventNames, sd.EventNames, NewEventName) },
		}
		for _, step := range steps {
			c, err := step()
			if err != nil {
				return err
			}
			counts = append(counts, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range counts {
		s.Log().Info("Seeded reference table", "table", c.Table, "added", c.Added, "skipped", c.Skipped)
	}
	return counts, nil
}

func seedTable[T any, P lookupPtr[T]](ctx context.Context, s *storage.Session, repo *LookupRepository[T, P], entries []SeedEntry, mk func(name, description string) P) (SeedCount, error) {
	count := SeedCount{Table: repo.TableName()}

	existing, err := repo.List(ctx, s)
	if err != nil {
		return count, err
	}
	byName := storage.KeyBy(existing, func(rec *T) string { return P(rec).base().name })

	for _, e := range entries {
		if _, ok := byName[e.Name]; ok {
			count.Skipped++
			continue
		}
		if err := repo.Add(ctx, s, mk(e.Name, e.Description)); err != nil {
			return count, err
		}
		count.Added++
	}
	return count, nil
}
