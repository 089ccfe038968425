// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers sources on top.
// - External errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"runtime"
)

// Store dialects understood by the storage adapter.
const (
	DialectMemory   = "memory"
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDialect selects the persistent store: memory, sqlite or postgres.
	StoreDialect string `koanf:"store_dialect"`

	// SQLitePath is the database file used by the sqlite dialect.
	SQLitePath string `koanf:"sqlite_path"`

	// PostgresDSN is the connection string used by the postgres dialect.
	PostgresDSN string `koanf:"postgres_dsn"`

	// StoreRetries bounds how many times a failed store operation is retried.
	StoreRetries int `koanf:"store_retries"`

	// StoreRetryBaseMS is the first backoff delay between store retries.
	StoreRetryBaseMS int `koanf:"store_retry_base_ms"`

	// CommandQueueSize bounds the rank-up command queue.
	CommandQueueSize int `koanf:"command_queue_size"`

	// WorkerCount sets the number of rank-up command executors.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many rank-up request ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// StartingBalance is credited to a player on first join, as a decimal string.
	StartingBalance string `koanf:"starting_balance"`

	// MetricsEnabled exposes Prometheus metrics on /healthz.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLabels are constant labels added to every metric, e.g. server: survival.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		StoreDialect:     DialectSQLite,
		SQLitePath:       "data/ranks.sqlite",
		StoreRetries:     3,
		StoreRetryBaseMS: 50,
		CommandQueueSize: 10_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		StartingBalance:  "0",
		MetricsEnabled:   true,
		MetricsNamespace: "prison",
		MetricsSubsystem: "ranks",
	}
}
