package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Timezone: "UTC",
		RunDir:   "/var/run/automagik-omni",
		Trace: TraceConfig{
			MaxPayloadBytes: 1 << 20,
			RetentionDays:   30,
			SweepCron:       "0 * * * *",
			GCBatchSize:     500,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8882,
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Protocol: "grpc",
		},
	}
}

// Load reads config from a JSON5 file, then overlays OMNI_* env vars.
// A missing file is not an error: defaults + env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays OMNI_* environment variables; env always wins
// over file content, so secrets never need to round-trip through disk.
func (c *Config) applyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("OMNI_API_KEY", &c.APIKey)
	envStr("OMNI_DATABASE_URL", &c.DatabaseURL)
	envStr("OMNI_SQLITE_DATABASE_PATH", &c.SqliteDatabasePath)
	envStr("OMNI_TIMEZONE", &c.Timezone)
	envStr("OMNI_RUN_DIR", &c.RunDir)
	envStr("OMNI_HOST", &c.Server.Host)

	if v := os.Getenv("OMNI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("OMNI_TRACE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			c.Trace.RetentionDays = days
		}
	}
	if v := os.Getenv("OMNI_TRACE_INCLUDE_SENSITIVE"); v != "" {
		c.Trace.IncludeSensitive = v == "true" || v == "1"
	}
	if v := os.Getenv("OMNI_TRACE_SWEEP_CRON"); v != "" {
		c.Trace.SweepCron = v
	}
	if v := os.Getenv("OMNI_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	envStr("OMNI_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
}

// ApplyEnvOverrides re-applies OMNI_* overrides; called after a file reload
// to restore env-sourced secrets that a config file must never carry.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

// Save writes the non-secret portion of the config to a JSON file. The
// output is plain JSON, which is valid input for the JSON5 parser Load uses.
func Save(path string, cfg *Config) error {
	snap := cfg.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Watch starts an fsnotify watcher on path's directory and calls reload
// whenever the file is written or recreated (editors often replace files
// via rename-in-place, so both Write and Create are handled). Returns a
// stop function. Errors opening the watcher are returned; reload errors
// are logged and swallowed so a malformed edit never crashes the process.
func Watch(ctx context.Context, path string, reload func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = watcher.Close()
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					slog.Warn("config: reload failed, keeping previous config", "error", err)
					continue
				}
				reload(cfg)
				slog.Info("config: reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config: watcher error", "error", err)
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}

// Hash returns a short hex digest of the non-secret config, suitable for
// detecting whether a reload actually changed anything.
func (c *Config) Hash() (string, error) {
	snap := c.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

// ExpandHome expands a leading ~ to the current user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
