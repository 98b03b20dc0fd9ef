package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxPayloadBytes is the default per-payload size cap.
const DefaultMaxPayloadBytes = 1024 * 1024

// Store is the durable backend for traces and payloads.
type Store interface {
	InsertTrace(ctx context.Context, t MessageTrace) error
	UpdateTrace(ctx context.Context, t MessageTrace) error
	InsertPayload(ctx context.Context, p TracePayload) error
	// DeleteOlderThan removes traces (and their payloads, in the same
	// transaction) older than cutoff, in batches of at most limit rows,
	// returning the number of traces deleted. Idempotent and re-entrant.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Config controls payload capping and redaction behavior, typically
// sourced from process or tenant config.
type Config struct {
	Enabled           bool
	MaxPayloadBytes   int
	IncludeSensitive  bool
	RetentionDays     int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MaxPayloadBytes:  DefaultMaxPayloadBytes,
		IncludeSensitive: false,
		RetentionDays:    30,
	}
}

// Pipeline opens and manages trace contexts against a Store.
type Pipeline struct {
	store Store
	cfg   Config
}

// New constructs a Pipeline. A zero Config.MaxPayloadBytes is replaced
// with DefaultMaxPayloadBytes.
func New(store Store, cfg Config) *Pipeline {
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Pipeline{store: store, cfg: cfg}
}

// Ctx is a per-trace context object, created at event ingress and closed
// exactly once. All methods are safe to call even when tracing is
// disabled or the store errors — failures are logged and swallowed.
type Ctx struct {
	pipeline *Pipeline
	mu       sync.Mutex
	trace    MessageTrace
	closed   bool
}

// Open writes a MessageTrace row in status received and returns its
// context. instanceName and the canonical session name are recorded
// immediately since they are known at ingress.
func (p *Pipeline) Open(ctx context.Context, instanceName, sessionName string, senderExternalID, senderDisplayName, messageType string, hasMedia, hasQuoted bool, channelMessageID string) *Ctx {
	now := time.Now().UTC()
	t := MessageTrace{
		ID:                uuid.Must(uuid.NewV7()).String(),
		Instance:          instanceName,
		ChannelMessageID:  channelMessageID,
		SenderExternalID:  senderExternalID,
		SenderDisplayName: senderDisplayName,
		MessageType:       messageType,
		HasMedia:          hasMedia,
		HasQuoted:         hasQuoted,
		SessionName:       sessionName,
		Status:            StatusReceived,
		ReceivedAt:        now,
	}
	tc := &Ctx{pipeline: p, trace: t}

	if !p.cfg.Enabled {
		return tc
	}
	if err := p.store.InsertTrace(ctx, t); err != nil {
		slog.Error("tracing: open failed, continuing best-effort", "instance", instanceName, "error", err)
	}
	return tc
}

// TraceID returns the opened trace's id.
func (tc *Ctx) TraceID() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.trace.ID
}

// SetAgentSessionID seeds the sticky agent-side session id the first
// time the agent responds.
func (tc *Ctx) SetAgentSessionID(id string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.trace.AgentSessionID = id
}

// SetProcessing transitions the trace to processing, entered at the
// start of the agent call.
func (tc *Ctx) SetProcessing() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.trace.Status == StatusReceived {
		tc.trace.Status = StatusProcessing
	}
}

// Capture serializes payload, applies size capping and redaction, and
// inserts a TracePayload row. Storage errors are logged and swallowed.
func (tc *Ctx) Capture(ctx context.Context, stage Stage, dir Direction, payload any) {
	if !tc.pipeline.cfg.Enabled {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("tracing: capture marshal failed", "stage", stage, "error", err)
		return
	}

	if !tc.pipeline.cfg.IncludeSensitive {
		redacted, err := Redact(raw)
		if err == nil {
			raw = redacted
		}
	}

	truncated := false
	if len(raw) > tc.pipeline.cfg.MaxPayloadBytes {
		sentinel, _ := json.Marshal(map[string]any{
			"_truncated":    true,
			"original_size": len(raw),
		})
		raw = sentinel
		truncated = true
	}

	tc.mu.Lock()
	traceID := tc.trace.ID
	tc.mu.Unlock()

	p := TracePayload{
		ID:               uuid.Must(uuid.NewV7()).String(),
		TraceID:          traceID,
		Stage:            stage,
		Direction:        dir,
		Payload:          raw,
		PayloadSizeBytes: len(raw),
		Truncated:        truncated,
		CapturedAt:       time.Now().UTC(),
	}
	if err := tc.pipeline.store.InsertPayload(ctx, p); err != nil {
		slog.Error("tracing: capture insert failed", "stage", stage, "error", err)
	}
}

// MarkAgent records the agent call's duration and outcome.
func (tc *Ctx) MarkAgent(ms int64, ok bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.trace.AgentProcessingTimeMs = ms
	tc.trace.AgentResponseSuccess = ok
}

// MarkOutbound records the outbound dispatch outcome.
func (tc *Ctx) MarkOutbound(ok bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.trace.EvolutionSuccess = ok
}

// Close writes the terminal status exactly once. Calling Close a second
// time is a no-op, preserving the "terminal status is write-once"
// invariant even under a buggy caller.
func (tc *Ctx) Close(ctx context.Context, status Status, errorStage Stage, errMsg string) {
	tc.mu.Lock()
	if tc.closed {
		tc.mu.Unlock()
		return
	}
	tc.closed = true
	now := time.Now().UTC()
	tc.trace.Status = status
	tc.trace.ErrorStage = errorStage
	tc.trace.Error = errMsg
	tc.trace.CompletedAt = now
	tc.trace.TotalProcessingTimeMs = now.Sub(tc.trace.ReceivedAt).Milliseconds()
	t := tc.trace
	tc.mu.Unlock()

	if !tc.pipeline.cfg.Enabled {
		return
	}
	if err := tc.pipeline.store.UpdateTrace(ctx, t); err != nil {
		slog.Error("tracing: close failed, trace is best-effort", "trace_id", t.ID, "error", err)
	}
}

// GC deletes traces older than cfg.RetentionDays, in bounded batches.
func (p *Pipeline) GC(ctx context.Context, batchSize int) (int, error) {
	if p.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -p.cfg.RetentionDays)
	total := 0
	for {
		n, err := p.store.DeleteOlderThan(ctx, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("tracing: gc: %w", err)
		}
		total += n
		if n < batchSize {
			return total, nil
		}
	}
}
