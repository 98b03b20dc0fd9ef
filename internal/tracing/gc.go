package tracing

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Sweeper schedules the retention GC on a cron expression, computing the
// next tick with gronx the way the pack's own cron services do.
type Sweeper struct {
	pipeline  *Pipeline
	expr      string
	batchSize int
	stop      chan struct{}
}

// DefaultSweepExpr runs the sweeper once an hour, on the hour.
const DefaultSweepExpr = "0 * * * *"

// NewSweeper constructs a Sweeper. An empty expr falls back to
// DefaultSweepExpr; batchSize <= 0 falls back to 500.
func NewSweeper(p *Pipeline, expr string, batchSize int) *Sweeper {
	if expr == "" {
		expr = DefaultSweepExpr
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Sweeper{pipeline: p, expr: expr, batchSize: batchSize, stop: make(chan struct{})}
}

// Run blocks, sweeping on each tick of expr until ctx is cancelled or
// Stop is called. Safe to run as a single long-lived goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.expr, time.Now(), false)
		if err != nil {
			slog.Error("tracing: sweeper cannot compute next tick, stopping", "expr", s.expr, "error", err)
			return
		}
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			n, err := s.pipeline.GC(ctx, s.batchSize)
			if err != nil {
				slog.Error("tracing: retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("tracing: retention sweep complete", "deleted", n)
			}
		}
	}
}

// Stop signals Run to return; a Run waiting for its next tick returns
// immediately, one in the middle of a sweep returns once that sweep ends.
func (s *Sweeper) Stop() { close(s.stop) }
