// Package tracing implements the message-tracing pipeline: one
// MessageTrace row per inbound event, multi-stage TracePayload capture
// with size caps and sensitive-field redaction, and a retention sweeper.
package tracing

import "time"

// Status is the lifecycle state of a MessageTrace. Transitions only move
// forward: received -> processing -> {completed | failed | access_denied}.
type Status string

const (
	StatusReceived     Status = "received"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusAccessDenied Status = "access_denied"
)

// Stage names a checkpoint within a trace at which a payload may be
// captured.
type Stage string

const (
	StageWebhookReceived  Stage = "webhook_received"
	StageAccessCheck      Stage = "access_check"
	StageAgentRequest     Stage = "agent_request"
	StageAgentResponse    Stage = "agent_response"
	StageOutboundRequest  Stage = "outbound_request"
	StageOutboundResponse Stage = "outbound_response"
	StageError            Stage = "error"
)

// Direction is the flow direction of a captured payload.
type Direction string

const (
	DirInbound  Direction = "inbound"
	DirOutbound Direction = "outbound"
	DirInternal Direction = "internal"
)

// MessageTrace is one row per inbound event.
type MessageTrace struct {
	ID                    string
	Instance              string
	ChannelMessageID      string
	SenderExternalID      string
	SenderDisplayName     string
	MessageType           string
	HasMedia              bool
	HasQuoted             bool
	SessionName           string
	AgentSessionID         string
	Status                Status
	ErrorStage             Stage
	Error                  string
	ReceivedAt             time.Time
	CompletedAt            time.Time
	AgentProcessingTimeMs  int64
	TotalProcessingTimeMs  int64
	AgentResponseSuccess   bool
	EvolutionSuccess       bool
}

// TracePayload is a single captured stage payload.
type TracePayload struct {
	ID               string
	TraceID          string
	Stage            Stage
	Direction        Direction
	Payload          []byte
	PayloadSizeBytes int
	Truncated        bool
	CapturedAt       time.Time
}
