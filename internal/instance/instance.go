// Package instance implements the Instance Registry: the source of
// truth for per-tenant configuration, cached process-locally and
// invalidated on every write.
package instance

import (
	"errors"
	"time"
)

// ChannelKind is the messaging network an instance is bound to.
type ChannelKind string

const (
	ChannelWhatsApp ChannelKind = "whatsapp"
	ChannelDiscord  ChannelKind = "discord"
)

// ErrNotFound is returned by Get/Default when no matching row exists.
var ErrNotFound = errors.New("instance: not found")

// AgentConfig is the tenant's configured agent endpoint.
type AgentConfig struct {
	URL            string
	APIKey         string
	AgentName      string
	Streaming      bool
	TimeoutSeconds int
}

// Instance is a tenant: a named bundle of channel credentials, agent
// config, and behavior flags.
type Instance struct {
	Name      string
	Channel   ChannelKind
	IsDefault bool

	// WhatsApp credentials (ProviderURL/ProviderKey/ProviderInstance map to
	// the Evolution gateway's own terms).
	ProviderURL      string
	ProviderKey      string
	ProviderInstance string

	// Discord credentials.
	BotToken string

	Agent AgentConfig

	EnableAutoSplit bool
	// LinkHint, when set to an existing user's id (a UUID), links every
	// sender first seen on this instance to that user instead of creating
	// a new one; empty or a non-UUID value disables linking.
	LinkHint string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the invariants upsert must enforce before a write
// is attempted: non-empty name, recognized channel kind, and
// channel-appropriate credential presence.
func (i Instance) Validate() error {
	if i.Name == "" {
		return errors.New("instance: name must not be empty")
	}
	switch i.Channel {
	case ChannelWhatsApp:
		if i.ProviderURL == "" || i.ProviderKey == "" {
			return errors.New("instance: whatsapp instance requires provider_url and provider_key")
		}
	case ChannelDiscord:
		if i.BotToken == "" {
			return errors.New("instance: discord instance requires bot_token")
		}
	default:
		return errors.New("instance: unrecognized channel kind " + string(i.Channel))
	}
	if i.Agent.URL == "" || i.Agent.AgentName == "" {
		return errors.New("instance: agent.url and agent.agent_name are required")
	}
	return nil
}
