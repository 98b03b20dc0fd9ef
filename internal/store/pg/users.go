package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/namastexlabs/automagik-omni/internal/user"
)

// UserStore implements user.Store backed by Postgres.
type UserStore struct {
	db *sql.DB
}

// NewUserStore constructs a UserStore backed by db.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// FindExternalID looks up the user linked to (channel, externalID).
func (s *UserStore) FindExternalID(ctx context.Context, channel, externalID string) (user.ExternalID, error) {
	var ext user.ExternalID
	ext.Channel = channel
	ext.ExternalID = externalID
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, linked_at FROM user_external_id WHERE channel = $1 AND external_id = $2`,
		channel, externalID,
	).Scan(&ext.UserID, &ext.LinkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.ExternalID{}, user.ErrNotFound
	}
	if err != nil {
		return user.ExternalID{}, fmt.Errorf("pg: find external id: %w", err)
	}
	return ext, nil
}

// CreateUser inserts a new user row.
func (s *UserStore) CreateUser(ctx context.Context, displayName string) (user.User, error) {
	u := user.User{
		ID:          uuid.Must(uuid.NewV7()),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO "user" (id, display_name, created_at) VALUES ($1, $2, $3)`,
		u.ID, u.DisplayName, u.CreatedAt,
	)
	if err != nil {
		return user.User{}, fmt.Errorf("pg: create user: %w", err)
	}
	return u, nil
}

// LinkExternalID inserts the (channel, external id) -> user_id link.
func (s *UserStore) LinkExternalID(ctx context.Context, link user.ExternalID) error {
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_external_id (channel, external_id, user_id, linked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel, external_id) DO NOTHING`,
		link.Channel, link.ExternalID, link.UserID, link.LinkedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: link external id: %w", err)
	}
	return nil
}
