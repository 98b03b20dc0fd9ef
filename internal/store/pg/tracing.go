package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/namastexlabs/automagik-omni/internal/tracing"
)

// TracingStore implements tracing.Store backed by Postgres. Unlike
// InstanceStore/AccessRuleStore, trace/payload rows are write-heavy and
// never re-read by the hot path, so there is no read cache here.
type TracingStore struct {
	db *sql.DB
}

// NewTracingStore constructs a TracingStore backed by db.
func NewTracingStore(db *sql.DB) *TracingStore {
	return &TracingStore{db: db}
}

// InsertTrace writes a new MessageTrace row in status received.
func (s *TracingStore) InsertTrace(ctx context.Context, t tracing.MessageTrace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_trace (
			id, instance, channel_message_id, sender_external_id, sender_display_name,
			message_type, has_media, has_quoted, session_name, agent_session_id,
			status, received_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.Instance, nullString(t.ChannelMessageID), t.SenderExternalID, t.SenderDisplayName,
		t.MessageType, t.HasMedia, t.HasQuoted, t.SessionName, nullString(t.AgentSessionID),
		t.Status, t.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: insert trace: %w", err)
	}
	return nil
}

// UpdateTrace writes the trace's terminal fields.
func (s *TracingStore) UpdateTrace(ctx context.Context, t tracing.MessageTrace) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE message_trace SET
			status = $2, error_stage = $3, error = $4, completed_at = $5,
			agent_processing_time_ms = $6, total_processing_time_ms = $7,
			agent_response_success = $8, evolution_success = $9,
			agent_session_id = $10
		WHERE id = $1`,
		t.ID, t.Status, nullString(string(t.ErrorStage)), nullString(t.Error), nullTime(t.CompletedAt),
		t.AgentProcessingTimeMs, t.TotalProcessingTimeMs,
		t.AgentResponseSuccess, t.EvolutionSuccess, nullString(t.AgentSessionID),
	)
	if err != nil {
		return fmt.Errorf("pg: update trace: %w", err)
	}
	return nil
}

// InsertPayload writes a captured stage payload.
func (s *TracingStore) InsertPayload(ctx context.Context, p tracing.TracePayload) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trace_payload (
			id, trace_id, stage, direction, payload, payload_size_bytes, truncated, captured_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.TraceID, p.Stage, p.Direction, p.Payload, p.PayloadSizeBytes, p.Truncated, p.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: insert payload: %w", err)
	}
	return nil
}

// DeleteOlderThan removes traces (and their payloads, in the same
// transaction) older than cutoff, in batches of at most limit rows.
func (s *TracingStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("pg: gc: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM message_trace WHERE received_at < $1 ORDER BY received_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("pg: gc: select candidates: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("pg: gc: scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trace_payload WHERE trace_id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("pg: gc: delete payloads: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM message_trace WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("pg: gc: delete traces: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("pg: gc: commit: %w", err)
	}
	return int(n), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
