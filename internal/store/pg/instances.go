package pg

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/namastexlabs/automagik-omni/internal/instance"
)

// InstanceStore implements instance.Store backed by Postgres, fronted by
// an in-memory cache invalidated wholesale on every successful write and
// reloaded on the next read (the registry above it keeps its own
// read-path cache, which it refills from List on Reload).
type InstanceStore struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]instance.Instance
	ready bool
}

// NewInstanceStore constructs an InstanceStore backed by db.
func NewInstanceStore(db *sql.DB) *InstanceStore {
	return &InstanceStore{db: db, cache: make(map[string]instance.Instance)}
}

func (s *InstanceStore) loadAll(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, channel, is_default, provider_url, provider_key,
		       provider_instance, bot_token, agent_url, agent_api_key,
		       agent_name, agent_streaming, agent_timeout_seconds,
		       enable_auto_split, link_hint, created_at, updated_at
		FROM instance_config`)
	if err != nil {
		return fmt.Errorf("pg: list instances: %w", err)
	}
	defer rows.Close()

	next := make(map[string]instance.Instance)
	for rows.Next() {
		var inst instance.Instance
		if err := rows.Scan(
			&inst.Name, &inst.Channel, &inst.IsDefault, &inst.ProviderURL, &inst.ProviderKey,
			&inst.ProviderInstance, &inst.BotToken, &inst.Agent.URL, &inst.Agent.APIKey,
			&inst.Agent.AgentName, &inst.Agent.Streaming, &inst.Agent.TimeoutSeconds,
			&inst.EnableAutoSplit, &inst.LinkHint, &inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return fmt.Errorf("pg: scan instance: %w", err)
		}
		next[inst.Name] = inst
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = next
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *InstanceStore) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	if ready {
		return nil
	}
	return s.loadAll(ctx)
}

// Get returns the instance by name.
func (s *InstanceStore) Get(ctx context.Context, name string) (instance.Instance, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return instance.Instance{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.cache[name]
	if !ok {
		return instance.Instance{}, instance.ErrNotFound
	}
	return inst, nil
}

// List returns every instance.
func (s *InstanceStore) List(ctx context.Context) ([]instance.Instance, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]instance.Instance, 0, len(s.cache))
	for _, inst := range s.cache {
		out = append(out, inst)
	}
	return out, nil
}

// Default returns the single instance currently marked default.
func (s *InstanceStore) Default(ctx context.Context) (instance.Instance, error) {
	all, err := s.List(ctx)
	if err != nil {
		return instance.Instance{}, err
	}
	for _, inst := range all {
		if inst.IsDefault {
			return inst, nil
		}
	}
	return instance.Instance{}, instance.ErrNotFound
}

// Upsert writes inst atomically. Clearing a previous default and setting
// the new one happens inside the same transaction.
func (s *InstanceStore) Upsert(ctx context.Context, inst instance.Instance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pg: upsert instance: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if inst.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE instance_config SET is_default = false WHERE name <> $1`, inst.Name); err != nil {
			return fmt.Errorf("pg: upsert instance: clear default: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO instance_config (
			name, channel, is_default, provider_url, provider_key, provider_instance,
			bot_token, agent_url, agent_api_key, agent_name, agent_streaming,
			agent_timeout_seconds, enable_auto_split, link_hint, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (name) DO UPDATE SET
			channel = EXCLUDED.channel,
			is_default = EXCLUDED.is_default,
			provider_url = EXCLUDED.provider_url,
			provider_key = EXCLUDED.provider_key,
			provider_instance = EXCLUDED.provider_instance,
			bot_token = EXCLUDED.bot_token,
			agent_url = EXCLUDED.agent_url,
			agent_api_key = EXCLUDED.agent_api_key,
			agent_name = EXCLUDED.agent_name,
			agent_streaming = EXCLUDED.agent_streaming,
			agent_timeout_seconds = EXCLUDED.agent_timeout_seconds,
			enable_auto_split = EXCLUDED.enable_auto_split,
			link_hint = EXCLUDED.link_hint,
			updated_at = EXCLUDED.updated_at`,
		inst.Name, inst.Channel, inst.IsDefault, inst.ProviderURL, inst.ProviderKey, inst.ProviderInstance,
		inst.BotToken, inst.Agent.URL, inst.Agent.APIKey, inst.Agent.AgentName, inst.Agent.Streaming,
		inst.Agent.TimeoutSeconds, inst.EnableAutoSplit, inst.LinkHint, now, now,
	)
	if err != nil {
		return fmt.Errorf("pg: upsert instance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return nil
}

// Delete removes an instance. Without cascade it fails while any trace
// references the instance; with cascade, those traces and their payloads
// are removed in the same transaction. The instance's scoped access rules
// are removed either way (explicitly under cascade, otherwise by the
// access_rule foreign key's ON DELETE CASCADE).
func (s *InstanceStore) Delete(ctx context.Context, name string, cascade bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pg: delete instance: begin: %w", err)
	}
	defer tx.Rollback()

	if !cascade {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM message_trace WHERE instance = $1`, name).Scan(&count); err != nil {
			return fmt.Errorf("pg: delete instance: check references: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("pg: delete instance %s: %d traces reference it, cascade required", name, count)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM trace_payload WHERE trace_id IN (SELECT id FROM message_trace WHERE instance = $1)`, name); err != nil {
			return fmt.Errorf("pg: delete instance: cascade payloads: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM message_trace WHERE instance = $1`, name); err != nil {
			return fmt.Errorf("pg: delete instance: cascade traces: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM access_rule WHERE instance_name = $1`, name); err != nil {
			return fmt.Errorf("pg: delete instance: cascade access rules: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM instance_config WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("pg: delete instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return instance.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return nil
}
