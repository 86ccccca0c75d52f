// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and SCORECARD_* env vars over the defaults.
// - Validation failures are marked with ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the scorecard store: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// DatabaseURL is the pgx connection string, required for postgres.
	DatabaseURL string `koanf:"database_url"`

	// DatabaseMaxConns caps the pgx pool size.
	DatabaseMaxConns int32 `koanf:"database_max_conns"`

	// MigrateOnStart runs goose migrations before serving.
	MigrateOnStart bool `koanf:"migrate_on_start"`

	// CacheTTLMillis bounds read staleness for data not touched by a write.
	CacheTTLMillis int `koanf:"cache_ttl_ms"`

	// CacheSize caps the number of cached snapshots.
	CacheSize int `koanf:"cache_size"`

	// ImportQueueSize bounds the async import queue.
	ImportQueueSize int `koanf:"import_queue_size"`

	// ImportWorkerCount sets the number of import workers.
	ImportWorkerCount int `koanf:"import_worker_count"`

	// ImportDedupeSize sets how many submission fingerprints are remembered.
	ImportDedupeSize int `koanf:"import_dedupe_size"`

	// MaxImportRows and MaxImportBytes bound a single uploaded file.
	MaxImportRows  int   `koanf:"max_import_rows"`
	MaxImportBytes int64 `koanf:"max_import_bytes"`

	// DefaultSeriesLimit and MaxSeriesLimit govern GET .../metrics?limit.
	DefaultSeriesLimit int `koanf:"default_series_limit"`
	MaxSeriesLimit     int `koanf:"max_series_limit"`

	// MaxExportRecords caps one export.
	MaxExportRecords int `koanf:"max_export_records"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// DefaultWeights maps metric names to weights for agents without their own.
	DefaultWeights map[string]float64 `koanf:"default_weights"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StoreDriver:         StoreMemory,
		DatabaseMaxConns:    10,
		CacheTTLMillis:      60_000,
		CacheSize:           10_000,
		ImportQueueSize:     64,
		ImportWorkerCount:   runtime.NumCPU(),
		ImportDedupeSize:    1_024,
		MaxImportRows:       10_000,
		MaxImportBytes:      10 << 20,
		DefaultSeriesLimit:  6,
		MaxSeriesLimit:      24,
		MaxExportRecords:    50_000,
		MaxLeaderboardLimit: 100,
		AllowedOrigins:      []string{"*"},
		DefaultWeights: map[string]float64{
			"service":       1,
			"productivity":  1,
			"quality":       1,
			"assiduity":     1,
			"performance":   1,
			"adherence":     1,
			"lateness":      1,
			"break_exceeds": 1,
		},
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.Mark(errors.New("addr must not be empty"), ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.Mark(errors.New("database_url is required for the postgres store"), ErrInvalidConfig)
		}
	default:
		return errors.Mark(errors.Newf("unknown store_driver %q", c.StoreDriver), ErrInvalidConfig)
	}
	if c.CacheTTLMillis <= 0 || c.CacheSize <= 0 {
		return errors.Mark(errors.New("cache_ttl_ms and cache_size must be positive"), ErrInvalidConfig)
	}
	if c.ImportQueueSize <= 0 || c.ImportWorkerCount <= 0 {
		return errors.Mark(errors.New("import_queue_size and import_worker_count must be positive"), ErrInvalidConfig)
	}
	if c.DefaultSeriesLimit <= 0 || c.MaxSeriesLimit < c.DefaultSeriesLimit {
		return errors.Mark(errors.New("series limits must satisfy 0 < default_series_limit <= max_series_limit"), ErrInvalidConfig)
	}
	for name, w := range c.DefaultWeights {
		if w < 0 {
			return errors.Mark(errors.Newf("default weight %q must not be negative", name), ErrInvalidConfig)
		}
	}
	return nil
}
