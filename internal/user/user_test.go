package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type fakeStore struct {
	links   map[string]ExternalID
	created []string
	linked  []ExternalID
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string]ExternalID)}
}

func (f *fakeStore) key(channel, externalID string) string { return channel + ":" + externalID }

func (f *fakeStore) FindExternalID(_ context.Context, channel, externalID string) (ExternalID, error) {
	if link, ok := f.links[f.key(channel, externalID)]; ok {
		return link, nil
	}
	return ExternalID{}, ErrNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, displayName string) (User, error) {
	f.created = append(f.created, displayName)
	return User{ID: uuid.Must(uuid.NewV7()), DisplayName: displayName}, nil
}

func (f *fakeStore) LinkExternalID(_ context.Context, link ExternalID) error {
	f.linked = append(f.linked, link)
	f.links[f.key(link.Channel, link.ExternalID)] = link
	return nil
}

func TestResolveReturnsExistingLink(t *testing.T) {
	store := newFakeStore()
	existingID := uuid.Must(uuid.NewV7())
	store.links[store.key("whatsapp", "+1555")] = ExternalID{Channel: "whatsapp", ExternalID: "+1555", UserID: existingID}

	r := New(store)
	u, err := r.Resolve(context.Background(), "whatsapp", "+1555", "Ada", uuid.Nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != existingID {
		t.Fatalf("expected existing user id %s, got %s", existingID, u.ID)
	}
	if len(store.created) != 0 {
		t.Fatal("an already-linked sender must not create a new user")
	}
}

func TestResolveCreatesUserOnFirstSighting(t *testing.T) {
	store := newFakeStore()
	r := New(store)

	u, err := r.Resolve(context.Background(), "discord", "d-123", "Grace", uuid.Nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Fatal("expected a freshly minted user id")
	}
	if len(store.created) != 1 || store.created[0] != "Grace" {
		t.Fatalf("expected exactly one CreateUser call for Grace, got %v", store.created)
	}
	if len(store.linked) != 1 || store.linked[0].ExternalID != "d-123" {
		t.Fatalf("expected the new external id to be linked, got %v", store.linked)
	}
}

func TestResolveUsesLinkHintInsteadOfCreating(t *testing.T) {
	store := newFakeStore()
	r := New(store)
	hint := uuid.Must(uuid.NewV7())

	u, err := r.Resolve(context.Background(), "discord", "d-456", "Hopper", hint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != hint {
		t.Fatalf("expected resolved user id to equal the link hint %s, got %s", hint, u.ID)
	}
	if len(store.created) != 0 {
		t.Fatal("a link hint must join an existing user, not create a new one")
	}
	if len(store.linked) != 1 || store.linked[0].UserID != hint {
		t.Fatalf("expected the link hint to be recorded against the new external id, got %v", store.linked)
	}
}
