// Package errs classifies pipeline errors by kind rather than by a deep
// type hierarchy, so a trace can record "what stage, what kind" without
// type assertions at every call site.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy used throughout the pipeline and recorded
// on traces. It is a closed set on purpose — new kinds require a
// deliberate addition here, not an ad-hoc string elsewhere.
type Kind string

const (
	KindConfig           Kind = "config"
	KindStorage          Kind = "storage"
	KindAccessDenied     Kind = "access_denied"
	KindAgentTimeout     Kind = "agent_timeout"
	KindAgentHTTP        Kind = "agent_http"
	KindAgentTransport   Kind = "agent_transport"
	KindOutboundBotGone  Kind = "outbound_bot_missing"
	KindOutboundTimeout  Kind = "outbound_timeout"
	KindOutboundHTTP     Kind = "outbound_http"
	KindPayloadTooLarge  Kind = "payload_too_large"
	KindShutdown         Kind = "shutdown"
)

// Stage names a checkpoint in the pipeline, used to set MessageTrace.error_stage.
type Stage string

const (
	StageWebhookReceived Stage = "webhook_received"
	StageAccessCheck     Stage = "access_check"
	StageAgentRequest    Stage = "agent_request"
	StageAgentResponse   Stage = "agent_response"
	StageOutboundRequest Stage = "outbound_request"
	StageOutboundResponse Stage = "outbound_response"
	StageShutdown        Stage = "shutdown"
)

// Error wraps an underlying error with a Kind and the Stage at which it
// occurred, so callers can classify without reaching into err.Error().
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error.
func New(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
