package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionLinkStore is the Postgres-backed sessions.Store: a thin
// session_name -> agent_session_id mapping. It intentionally does not
// carry conversation history or token accounting — that memory lives at
// the external agent service, not in this hub.
type SessionLinkStore struct {
	db *sql.DB
}

func NewSessionLinkStore(db *sql.DB) *SessionLinkStore {
	return &SessionLinkStore{db: db}
}

func (s *SessionLinkStore) Lookup(ctx context.Context, name string) (string, error) {
	var agentSessionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_session_id FROM session_link WHERE session_name = $1`,
		name,
	).Scan(&agentSessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pg: lookup session link: %w", err)
	}
	return agentSessionID, nil
}

func (s *SessionLinkStore) Upsert(ctx context.Context, name, agentSessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_link (session_name, agent_session_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_name) DO UPDATE SET agent_session_id = $2, updated_at = $3`,
		name, agentSessionID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("pg: upsert session link: %w", err)
	}
	return nil
}
