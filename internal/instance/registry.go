package instance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Store is the durable backend behind the registry (Postgres in
// production, see internal/store/pg).
type Store interface {
	Get(ctx context.Context, name string) (Instance, error)
	List(ctx context.Context) ([]Instance, error)
	Default(ctx context.Context) (Instance, error)
	Upsert(ctx context.Context, inst Instance) error
	Delete(ctx context.Context, name string, cascade bool) error
}

// Listener is notified whenever the registry's cache is invalidated, so
// the supervisor can start/stop per-instance workers in response.
type Listener func(ctx context.Context)

// Registry is the process-local, cache-fronted view over Store. Reads
// hit the cache; writes go to the store and then invalidate the whole
// cache, tolerating stale reads for at most one event's worth of latency.
type Registry struct {
	store Store

	mu    sync.RWMutex
	cache map[string]Instance
	ready bool

	listenersMu sync.Mutex
	listeners   []Listener
}

// New constructs a Registry backed by store. The cache is empty and
// unready until the first Get/List/Default call or an explicit Reload.
func New(store Store) *Registry {
	return &Registry{store: store, cache: make(map[string]Instance)}
}

// OnChange registers a callback invoked after every cache invalidation.
func (r *Registry) OnChange(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Reload forces a full reload from the store and notifies listeners.
func (r *Registry) Reload(ctx context.Context) error {
	instances, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("instance: reload: %w", err)
	}
	next := make(map[string]Instance, len(instances))
	for _, inst := range instances {
		next[inst.Name] = inst
	}
	r.mu.Lock()
	r.cache = next
	r.ready = true
	r.mu.Unlock()
	r.notify(ctx)
	return nil
}

func (r *Registry) notify(ctx context.Context) {
	r.listenersMu.Lock()
	listeners := append([]Listener(nil), r.listeners...)
	r.listenersMu.Unlock()
	for _, l := range listeners {
		l(ctx)
	}
}

func (r *Registry) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	ready := r.ready
	r.mu.RUnlock()
	if ready {
		return nil
	}
	return r.Reload(ctx)
}

// Get returns the cached instance by name, loading the cache first if
// it has never been populated.
func (r *Registry) Get(ctx context.Context, name string) (Instance, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return Instance{}, err
	}
	r.mu.RLock()
	inst, ok := r.cache[name]
	r.mu.RUnlock()
	if !ok {
		return Instance{}, ErrNotFound
	}
	return inst, nil
}

// List returns every cached instance, newest first.
func (r *Registry) List(ctx context.Context) ([]Instance, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Instance, 0, len(r.cache))
	for _, inst := range r.cache {
		out = append(out, inst)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(instances []Instance) {
	for i := 1; i < len(instances); i++ {
		for j := i; j > 0 && instances[j].CreatedAt.After(instances[j-1].CreatedAt); j-- {
			instances[j], instances[j-1] = instances[j-1], instances[j]
		}
	}
}

// Default returns the single instance currently marked default.
func (r *Registry) Default(ctx context.Context) (Instance, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return Instance{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.cache {
		if inst.IsDefault {
			return inst, nil
		}
	}
	return Instance{}, ErrNotFound
}

// Upsert validates and writes an instance atomically, then invalidates
// the cache. Upserting identical fields is a no-op at the store layer
// (an UPDATE that changes nothing is still safe to invalidate on).
func (r *Registry) Upsert(ctx context.Context, inst Instance) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	if err := r.store.Upsert(ctx, inst); err != nil {
		return fmt.Errorf("instance: upsert %s: %w", inst.Name, err)
	}
	slog.Info("instance upserted", "name", inst.Name, "channel", inst.Channel)
	return r.Reload(ctx)
}

// Delete removes an instance. cascade controls whether referencing
// traces/payloads are removed in the same transaction; the pg store
// removes the instance's scoped access rules either way.
func (r *Registry) Delete(ctx context.Context, name string, cascade bool) error {
	if err := r.store.Delete(ctx, name, cascade); err != nil {
		return fmt.Errorf("instance: delete %s: %w", name, err)
	}
	slog.Info("instance deleted", "name", name, "cascade", cascade)
	return r.Reload(ctx)
}
