// Package user implements the logical identity that spans channels: a
// User is keyed by an opaque id, and one or more UserExternalId rows link
// a (channel, external id) pair to that user so a single history can
// follow someone across WhatsApp and Discord.
package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a logical identity, independent of any one channel.
type User struct {
	ID          uuid.UUID
	DisplayName string
	CreatedAt   time.Time
}

// ExternalID links a (channel, external id) pair to a User. Unique on
// (Channel, ExternalID).
type ExternalID struct {
	Channel    string
	ExternalID string
	UserID     uuid.UUID
	LinkedAt   time.Time
}

// Store is the durable backend behind Resolver.
type Store interface {
	FindExternalID(ctx context.Context, channel, externalID string) (ExternalID, error)
	CreateUser(ctx context.Context, displayName string) (User, error)
	LinkExternalID(ctx context.Context, link ExternalID) error
}

// ErrNotFound is returned by Store lookups that find nothing.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user: not found" }

// Resolver looks up or creates the User behind an inbound event's sender.
type Resolver struct {
	store Store
}

// New constructs a Resolver backed by store.
func New(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up the user linked to (channel, externalID), creating both
// the user and the link on first sighting. linkHint, when non-zero, joins
// the external id to an already-known user instead of minting a new one —
// used when a handler has independent evidence the sender is the same
// person known under a different channel.
func (r *Resolver) Resolve(ctx context.Context, channel, externalID, displayName string, linkHint uuid.UUID) (User, error) {
	existing, err := r.store.FindExternalID(ctx, channel, externalID)
	if err == nil {
		return User{ID: existing.UserID, DisplayName: displayName, CreatedAt: existing.LinkedAt}, nil
	}
	if err != ErrNotFound {
		return User{}, err
	}

	userID := linkHint
	var u User
	if userID == uuid.Nil {
		u, err = r.store.CreateUser(ctx, displayName)
		if err != nil {
			return User{}, err
		}
		userID = u.ID
	} else {
		u = User{ID: userID, DisplayName: displayName}
	}

	if err := r.store.LinkExternalID(ctx, ExternalID{Channel: channel, ExternalID: externalID, UserID: userID}); err != nil {
		return User{}, err
	}
	return u, nil
}
