package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNewSweeperAppliesDefaults(t *testing.T) {
	p := New(newFakeStore(), DefaultConfig())
	s := NewSweeper(p, "", 0)
	if s.expr != DefaultSweepExpr {
		t.Fatalf("expected default expr, got %q", s.expr)
	}
	if s.batchSize != 500 {
		t.Fatalf("expected default batch size 500, got %d", s.batchSize)
	}
}

func TestSweeperStopReturnsRunPromptly(t *testing.T) {
	p := New(newFakeStore(), DefaultConfig())
	// An hourly schedule means the next tick is far away; Stop must
	// still make Run return well before then.
	s := NewSweeper(p, DefaultSweepExpr, 10)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(context.Background())
	}()

	// Give Run a moment to reach its select before asking it to stop.
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Stop to make Run return promptly")
	}
}

func TestSweeperRunStopsOnContextCancel(t *testing.T) {
	p := New(newFakeStore(), DefaultConfig())
	s := NewSweeper(p, DefaultSweepExpr, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected context cancellation to make Run return")
	}
}
