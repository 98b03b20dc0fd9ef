package tracing

import (
	"context"
	"testing"
	"time"
)

type fakeStore struct {
	traces   map[string]MessageTrace
	payloads []TracePayload
}

func newFakeStore() *fakeStore {
	return &fakeStore{traces: make(map[string]MessageTrace)}
}

func (f *fakeStore) InsertTrace(_ context.Context, t MessageTrace) error {
	f.traces[t.ID] = t
	return nil
}

func (f *fakeStore) UpdateTrace(_ context.Context, t MessageTrace) error {
	f.traces[t.ID] = t
	return nil
}

func (f *fakeStore) InsertPayload(_ context.Context, p TracePayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakeStore) DeleteOlderThan(_ context.Context, cutoff time.Time, limit int) (int, error) {
	deleted := 0
	for id, tr := range f.traces {
		if deleted >= limit {
			break
		}
		if tr.ReceivedAt.Before(cutoff) {
			delete(f.traces, id)
			deleted++
		}
	}
	return deleted, nil
}

func TestOpenCloseHappyPath(t *testing.T) {
	store := newFakeStore()
	p := New(store, DefaultConfig())
	ctx := context.Background()

	tc := p.Open(ctx, "acme", "whatsapp:direct:+1555", "+1555", "Alice", "text", false, false, "M1")
	tc.Capture(ctx, StageWebhookReceived, DirInbound, map[string]string{"from": "+1555"})
	tc.MarkAgent(42, true)
	tc.Close(ctx, StatusCompleted, "", "")

	tr := store.traces[tc.TraceID()]
	if tr.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", tr.Status)
	}
	if tr.CompletedAt.Before(tr.ReceivedAt) {
		t.Fatal("completed_at must be >= received_at")
	}
	if len(store.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(store.payloads))
	}
}

func TestCloseIsWriteOnce(t *testing.T) {
	store := newFakeStore()
	p := New(store, DefaultConfig())
	ctx := context.Background()

	tc := p.Open(ctx, "acme", "s", "+1", "Alice", "text", false, false, "M1")
	tc.Close(ctx, StatusCompleted, "", "")
	tc.Close(ctx, StatusFailed, StageOutboundRequest, "should not apply")

	tr := store.traces[tc.TraceID()]
	if tr.Status != StatusCompleted {
		t.Fatalf("second Close must be a no-op, got status %s", tr.Status)
	}
}

func TestCaptureTruncatesOversizedPayload(t *testing.T) {
	store := newFakeStore()
	cfg := DefaultConfig()
	cfg.MaxPayloadBytes = 16
	p := New(store, cfg)
	ctx := context.Background()

	tc := p.Open(ctx, "acme", "s", "+1", "Alice", "text", false, false, "M1")
	tc.Capture(ctx, StageWebhookReceived, DirInbound, map[string]string{"text": "this payload is definitely over sixteen bytes"})

	if len(store.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(store.payloads))
	}
	got := store.payloads[0]
	if !got.Truncated {
		t.Fatal("expected truncated=true")
	}
	if got.PayloadSizeBytes > cfg.MaxPayloadBytes*4 {
		// sentinel body is tiny; just sanity-check it didn't store the original
		t.Fatalf("truncated payload unexpectedly large: %d bytes", got.PayloadSizeBytes)
	}
}

func TestCaptureRedactsSensitiveFieldsByDefault(t *testing.T) {
	store := newFakeStore()
	p := New(store, DefaultConfig())
	ctx := context.Background()

	tc := p.Open(ctx, "acme", "s", "+1", "Alice", "text", false, false, "M1")
	tc.Capture(ctx, StageWebhookReceived, DirInbound, map[string]string{"api_key": "sekret"})

	body := string(store.payloads[0].Payload)
	if contains(body, "sekret") {
		t.Fatalf("sensitive value leaked into stored payload: %s", body)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestGCDeletesOnlyOlderThanRetention(t *testing.T) {
	store := newFakeStore()
	cfg := DefaultConfig()
	cfg.RetentionDays = 30
	p := New(store, cfg)

	old := MessageTrace{ID: "old", ReceivedAt: time.Now().AddDate(0, 0, -40)}
	recent := MessageTrace{ID: "recent", ReceivedAt: time.Now().AddDate(0, 0, -1)}
	store.traces["old"] = old
	store.traces["recent"] = recent

	n, err := p.GC(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, ok := store.traces["recent"]; !ok {
		t.Fatal("recent trace should not have been deleted")
	}
	if _, ok := store.traces["old"]; ok {
		t.Fatal("old trace should have been deleted")
	}
}
