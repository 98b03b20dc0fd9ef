// Package store defines the durable-backend container wiring the
// Postgres-backed implementations behind each domain package's Store
// interface (internal/instance, internal/access, internal/tracing,
// internal/user, internal/sessions).
package store

import (
	"github.com/namastexlabs/automagik-omni/internal/access"
	"github.com/namastexlabs/automagik-omni/internal/instance"
	"github.com/namastexlabs/automagik-omni/internal/sessions"
	"github.com/namastexlabs/automagik-omni/internal/tracing"
	"github.com/namastexlabs/automagik-omni/internal/user"
)

// Stores is the top-level container for all storage backends, one per
// domain package's Store interface.
type Stores struct {
	Instances instance.Store
	Access    access.RuleStore
	Tracing   tracing.Store
	Users     user.Store
	Sessions  sessions.Store
}
