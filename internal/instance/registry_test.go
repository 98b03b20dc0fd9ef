package instance

import (
	"context"
	"testing"
	"time"
)

type fakeStore struct {
	instances map[string]Instance
}

func newFakeStore() *fakeStore { return &fakeStore{instances: make(map[string]Instance)} }

func (f *fakeStore) Get(_ context.Context, name string) (Instance, error) {
	inst, ok := f.instances[name]
	if !ok {
		return Instance{}, ErrNotFound
	}
	return inst, nil
}

func (f *fakeStore) List(_ context.Context) ([]Instance, error) {
	out := make([]Instance, 0, len(f.instances))
	for _, inst := range f.instances {
		out = append(out, inst)
	}
	return out, nil
}

func (f *fakeStore) Default(_ context.Context) (Instance, error) {
	for _, inst := range f.instances {
		if inst.IsDefault {
			return inst, nil
		}
	}
	return Instance{}, ErrNotFound
}

func (f *fakeStore) Upsert(_ context.Context, inst Instance) error {
	if inst.IsDefault {
		for name, existing := range f.instances {
			existing.IsDefault = false
			f.instances[name] = existing
		}
	}
	f.instances[inst.Name] = inst
	return nil
}

func (f *fakeStore) Delete(_ context.Context, name string, _ bool) error {
	delete(f.instances, name)
	return nil
}

func validWhatsApp(name string) Instance {
	return Instance{
		Name:        name,
		Channel:     ChannelWhatsApp,
		ProviderURL: "https://evo.example.com",
		ProviderKey: "k",
		Agent:       AgentConfig{URL: "https://agent.example.com", AgentName: "default"},
		CreatedAt:   time.Now(),
	}
}

func TestRegistryUpsertThenGet(t *testing.T) {
	reg := New(newFakeStore())
	ctx := context.Background()

	if err := reg.Upsert(ctx, validWhatsApp("acme")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, err := reg.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "acme" {
		t.Fatalf("unexpected instance: %+v", got)
	}
}

func TestRegistryGetUnknownReturnsNotFound(t *testing.T) {
	reg := New(newFakeStore())
	if _, err := reg.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryExactlyOneDefault(t *testing.T) {
	reg := New(newFakeStore())
	ctx := context.Background()

	first := validWhatsApp("a")
	first.IsDefault = true
	second := validWhatsApp("b")
	second.IsDefault = true

	if err := reg.Upsert(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := reg.Upsert(ctx, second); err != nil {
		t.Fatal(err)
	}

	def, err := reg.Default(ctx)
	if err != nil {
		t.Fatalf("default lookup failed: %v", err)
	}
	if def.Name != "b" {
		t.Fatalf("expected b to be the sole default, got %s", def.Name)
	}

	all, _ := reg.List(ctx)
	defaults := 0
	for _, inst := range all {
		if inst.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func TestRegistryUpsertRejectsInvalid(t *testing.T) {
	reg := New(newFakeStore())
	err := reg.Upsert(context.Background(), Instance{Name: ""})
	if err == nil {
		t.Fatal("expected validation error for empty name")
	}
}

func TestRegistryDeleteInvalidatesCache(t *testing.T) {
	reg := New(newFakeStore())
	ctx := context.Background()
	_ = reg.Upsert(ctx, validWhatsApp("acme"))

	if err := reg.Delete(ctx, "acme", false); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := reg.Get(ctx, "acme"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRegistryNotifiesListenersOnChange(t *testing.T) {
	reg := New(newFakeStore())
	calls := 0
	reg.OnChange(func(context.Context) { calls++ })

	ctx := context.Background()
	_ = reg.Upsert(ctx, validWhatsApp("acme"))
	if calls == 0 {
		t.Fatal("expected listener to be notified on upsert")
	}
}
