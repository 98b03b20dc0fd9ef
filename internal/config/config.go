// Package config loads and hot-reloads process-wide configuration: the
// Postgres DSN, the global admin API key, tracing defaults, and CORS
// policy. Per-tenant channel credentials and agent endpoints live in the
// instance registry, not here.
package config

import (
	"sync"
)

// TraceConfig carries the process-wide tracing defaults; an
// instance may not override these — they are process, not tenant, scope.
type TraceConfig struct {
	MaxPayloadBytes  int64  `json:"max_payload_bytes,omitempty"` // default 1 MiB
	RetentionDays    int    `json:"retention_days,omitempty"`    // default 30
	IncludeSensitive bool   `json:"include_sensitive,omitempty"` // default false (redact)
	SweepCron        string `json:"sweep_cron,omitempty"`        // default "0 * * * *"
	GCBatchSize      int    `json:"gc_batch_size,omitempty"`     // default 500
}

// CORSConfig holds the CORS settings read from the config file. The
// webhook HTTP server does not read or apply them.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	AllowedMethods []string `json:"allowed_methods,omitempty"`
}

// ServerConfig configures the HTTP listener the webhook/admin surface binds to.
type ServerConfig struct {
	Host string     `json:"host,omitempty"`
	Port int        `json:"port,omitempty"`
	CORS CORSConfig `json:"cors,omitempty"`
}

// TelemetryConfig controls OTLP span export, independent of the
// MessageTrace audit pipeline's TraceConfig above.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"` // e.g. "localhost:4317"
	Protocol    string `json:"protocol,omitempty"` // "grpc" (default) or "http"
	ServiceName string `json:"service_name,omitempty"`
}

// Config is the root process-wide configuration.
type Config struct {
	APIKey      string `json:"-"` // global admin API key, env only, never persisted
	DatabaseURL string `json:"-"` // Postgres DSN, env only, never persisted
	// SqliteDatabasePath is the documented fallback when DatabaseURL is
	// absent. No sqlite-backed store is implemented yet, so a caller that
	// sets this instead of DatabaseURL gets a clear "not implemented"
	// error rather than the generic "DatabaseURL required" one.
	SqliteDatabasePath string          `json:"-"`
	Timezone           string          `json:"timezone,omitempty"`
	RunDir             string          `json:"run_dir,omitempty"` // base dir for sockets/ (discord sidecars)
	Trace              TraceConfig     `json:"trace,omitempty"`
	Server             ServerConfig    `json:"server,omitempty"`
	Telemetry          TelemetryConfig `json:"telemetry,omitempty"`

	mu sync.RWMutex
}

// ReplaceFrom atomically swaps in src's data fields, preserving c's mutex.
// Called by the fsnotify-driven hot-reload loop.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Timezone = src.Timezone
	c.RunDir = src.RunDir
	c.Trace = src.Trace
	c.Server = src.Server
	c.Telemetry = src.Telemetry
	// APIKey/DatabaseURL intentionally untouched: env-sourced secrets are
	// re-applied by ApplyEnvOverrides, never by file content.
}

// ErrSqliteFallbackUnimplemented is returned by RequireDatabaseURL when
// DatabaseURL is absent but SqliteDatabasePath is set: the config surface
// accepts the fallback, but no sqlite-backed store exists to serve it.
var ErrSqliteFallbackUnimplemented = sqliteFallbackUnimplementedError{}

type sqliteFallbackUnimplementedError struct{}

func (sqliteFallbackUnimplementedError) Error() string {
	return "config: sqlite_database_path is set but no sqlite-backed store is implemented; set OMNI_DATABASE_URL instead"
}

// RequireDatabaseURL returns DatabaseURL, or an error naming exactly why a
// DSN could not be resolved: ErrSqliteFallbackUnimplemented if the caller
// configured the documented sqlite fallback instead of a Postgres DSN, or a
// plain "required" error if neither is set.
func (c *Config) RequireDatabaseURL() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if c.SqliteDatabasePath != "" {
		return "", ErrSqliteFallbackUnimplemented
	}
	return "", errDatabaseURLRequired
}

var errDatabaseURLRequired = databaseURLRequiredError{}

type databaseURLRequiredError struct{}

func (databaseURLRequiredError) Error() string {
	return "config: OMNI_DATABASE_URL is required (or OMNI_SQLITE_DATABASE_PATH, once the sqlite fallback is implemented)"
}

// Snapshot returns a copy of the current config safe to read without holding c's lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}
