// Package config defines service configuration structures and loading hooks.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL is the Postgres connection string. Empty selects the
	// in-memory store, which is only useful for local runs and tests.
	DatabaseURL string `koanf:"database_url"`

	// DBMinConns and DBMaxConns bound the Postgres connection pool.
	DBMinConns int `koanf:"db_min_conns"`
	DBMaxConns int `koanf:"db_max_conns"`

	// SnapshotRefreshSec sets how often the search snapshot is rebuilt.
	SnapshotRefreshSec int `koanf:"snapshot_refresh_sec"`

	// MaxSearchResults caps GET /search result lists.
	MaxSearchResults int `koanf:"max_search_results"`

	// SSOBaseURL overrides the identity provider endpoint; empty keeps
	// the university default.
	SSOBaseURL string `koanf:"sso_base_url"`

	// SSOClientID overrides the OAuth client id.
	SSOClientID string `koanf:"sso_client_id"`

	// ShutdownTimeoutSec bounds graceful HTTP shutdown.
	ShutdownTimeoutSec int `koanf:"shutdown_timeout_sec"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		DBMinConns:         1,
		DBMaxConns:         10,
		SnapshotRefreshSec: 60,
		MaxSearchResults:   20,
		ShutdownTimeoutSec: 10,
	}
}
