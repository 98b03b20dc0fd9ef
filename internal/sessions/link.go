package sessions

import "context"

// Store is the durable backend behind Linker: a small keyed mapping from
// the canonical session name to the agent-assigned session id, so the
// same conversation always resumes the same agent-side session instead
// of starting a fresh one on every inbound event.
type Store interface {
	// Lookup returns the agent session id previously stored for name, or
	// "" if none has been seen yet.
	Lookup(ctx context.Context, name string) (string, error)
	// Upsert records agentSessionID as the agent session id for name,
	// overwriting any previous value.
	Upsert(ctx context.Context, name, agentSessionID string) error
}

// Linker resolves session stickiness: it looks up a previously seen
// agent session id for a session name before a call, and records the one
// the agent returns after a successful call.
type Linker struct {
	store Store
}

// NewLinker constructs a Linker backed by store.
func NewLinker(store Store) *Linker {
	return &Linker{store: store}
}

// AgentSessionID returns the agent session id to use for name: whatever
// was recorded for it previously, or "" on first contact.
func (l *Linker) AgentSessionID(ctx context.Context, name string) (string, error) {
	return l.store.Lookup(ctx, name)
}

// Remember persists agentSessionID as the sticky agent session id for
// name. Callers only invoke this after a successful agent call that
// actually returned a session id.
func (l *Linker) Remember(ctx context.Context, name, agentSessionID string) error {
	return l.store.Upsert(ctx, name, agentSessionID)
}
