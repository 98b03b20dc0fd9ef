package sessions

import (
	"context"
	"testing"
)

type memStore struct{ m map[string]string }

func (s *memStore) Lookup(_ context.Context, name string) (string, error) {
	return s.m[name], nil
}
func (s *memStore) Upsert(_ context.Context, name, agentSessionID string) error {
	if s.m == nil {
		s.m = map[string]string{}
	}
	s.m[name] = agentSessionID
	return nil
}

func TestLinkerAgentSessionIDEmptyOnFirstContact(t *testing.T) {
	l := NewLinker(&memStore{})
	got, err := l.AgentSessionID(context.Background(), "whatsapp:direct:+1555")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty agent session id on first contact, got %q", got)
	}
}

func TestLinkerRemembersAcrossLookups(t *testing.T) {
	store := &memStore{}
	l := NewLinker(store)
	name := "whatsapp:direct:+1555"

	if err := l.Remember(context.Background(), name, "agent-sess-1"); err != nil {
		t.Fatalf("remember failed: %v", err)
	}
	got, err := l.AgentSessionID(context.Background(), name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "agent-sess-1" {
		t.Fatalf("expected sticky session id, got %q", got)
	}
}
