package pg

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/namastexlabs/automagik-omni/internal/access"
)

// AccessRuleStore implements access.RuleStore backed by Postgres, with
// an in-memory cache of the full rule set (access checks run on every
// inbound event, so a DB round-trip per check would be wasteful).
type AccessRuleStore struct {
	db *sql.DB

	mu    sync.RWMutex
	cache []access.Rule
	ready bool
}

// NewAccessRuleStore constructs an AccessRuleStore backed by db.
func NewAccessRuleStore(db *sql.DB) *AccessRuleStore {
	return &AccessRuleStore{db: db}
}

func (s *AccessRuleStore) loadAll(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone_pattern, rule_type, coalesce(instance_name, '') FROM access_rule`)
	if err != nil {
		return fmt.Errorf("pg: list access rules: %w", err)
	}
	defer rows.Close()

	var next []access.Rule
	for rows.Next() {
		var r access.Rule
		if err := rows.Scan(&r.ID, &r.PhonePattern, &r.Type, &r.InstanceName); err != nil {
			return fmt.Errorf("pg: scan access rule: %w", err)
		}
		next = append(next, r)
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

// ListForInstance returns every rule scoped to instanceName or global.
func (s *AccessRuleStore) ListForInstance(ctx context.Context, instanceName string) ([]access.Rule, error) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	if !ready {
		if err := s.loadAll(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]access.Rule, 0, len(s.cache))
	for _, r := range s.cache {
		if r.InstanceName == "" || r.InstanceName == instanceName {
			out = append(out, r)
		}
	}
	return out, nil
}

// Insert validates the rule's pattern with access.ValidatePattern, writes
// the rule and invalidates the cache. Not part of access.RuleStore.
func (s *AccessRuleStore) Insert(ctx context.Context, r access.Rule) error {
	if err := access.ValidatePattern(r.PhonePattern); err != nil {
		return fmt.Errorf("pg: insert access rule: %w", err)
	}
	var instanceName any
	if r.InstanceName != "" {
		instanceName = r.InstanceName
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_rule (phone_pattern, rule_type, instance_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone_pattern, (coalesce(instance_name, ''))) DO UPDATE SET rule_type = EXCLUDED.rule_type`,
		r.PhonePattern, r.Type, instanceName,
	)
	if err != nil {
		return fmt.Errorf("pg: insert access rule: %w", err)
	}
	s.invalidate()
	return nil
}

// Delete removes a rule by id and invalidates the cache.
func (s *AccessRuleStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM access_rule WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pg: delete access rule: %w", err)
	}
	s.invalidate()
	return nil
}

func (s *AccessRuleStore) invalidate() {
	s.mu.Lock()
	s.ready = false
	s.cache = nil
	s.mu.Unlock()
}
