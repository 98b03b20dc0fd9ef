// Package webhook implements the inbound event entry point shared by
// both channel paths: the WhatsApp HTTP webhook and the Discord
// sidecar's forwarded events arrive here as a canonical
// bus.InboundMessage and are driven through access control, tracing,
// the agent client, and the outbound dispatcher identically.
package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/namastexlabs/automagik-omni/internal/access"
	"github.com/namastexlabs/automagik-omni/internal/agent"
	"github.com/namastexlabs/automagik-omni/internal/bus"
	"github.com/namastexlabs/automagik-omni/internal/dispatch"
	"github.com/namastexlabs/automagik-omni/internal/instance"
	"github.com/namastexlabs/automagik-omni/internal/sessions"
	"github.com/namastexlabs/automagik-omni/internal/telemetry"
	"github.com/namastexlabs/automagik-omni/internal/tracing"
	"github.com/namastexlabs/automagik-omni/internal/user"
)

// Handler drives one inbound event through the full pipeline: trace
// open, user resolution, access check, agent call, outbound dispatch,
// trace close. It holds no per-instance state — everything it needs
// comes from the registry lookup at the top of Handle.
type Handler struct {
	Registry       *instance.Registry
	Access         *access.Engine
	Tracing        *tracing.Pipeline
	Users          *user.Resolver
	Agent          *agent.Client
	Sessions       *sessions.Linker
	Dispatcher     *dispatch.Dispatcher
	Telemetry      *telemetry.Provider
	RunDir         string
	DefaultPosture access.DefaultPosture
}

// Handle runs msg through the pipeline. It never returns an error to the
// caller — channel handlers must always terminate the trace themselves,
// per the propagation policy; callers only need the enqueue/auth outcome,
// which happens before Handle is ever invoked.
func (h *Handler) Handle(ctx context.Context, msg bus.InboundMessage) {
	inst, err := h.Registry.Get(ctx, msg.Instance)
	if err != nil {
		slog.Error("webhook: unknown instance at handle time", "instance", msg.Instance, "error", err)
		return
	}

	if h.Telemetry != nil {
		var endSpan func()
		ctx, endSpan = h.Telemetry.StartEvent(ctx, inst.Name, msg.Channel)
		defer endSpan()
	}

	kind := sessions.PeerKindFromGroup(msg.IsGroup)
	sessionName := sessions.BuildSessionName(msg.Channel, kind, msg.ChatID)

	tc := h.Tracing.Open(ctx, inst.Name, sessionName, msg.SenderID, msg.SenderName, string(msg.Kind), msg.HasMedia(), msg.HasQuoted(), msg.MessageID)
	tc.Capture(ctx, tracing.StageWebhookReceived, tracing.DirInbound, msg)

	if msg.Kind == bus.KindGroupEvent || msg.Kind == bus.KindReaction || msg.Kind == bus.KindUnsupported {
		tc.Close(ctx, tracing.StatusCompleted, "", "")
		return
	}

	var linkHint uuid.UUID
	if inst.LinkHint != "" {
		if parsed, err := uuid.Parse(inst.LinkHint); err == nil {
			linkHint = parsed
		}
	}
	usr, err := h.Users.Resolve(ctx, msg.Channel, msg.SenderID, msg.SenderName, linkHint)
	if err != nil {
		slog.Error("webhook: user resolution failed", "instance", inst.Name, "error", err)
		tc.Close(ctx, tracing.StatusFailed, tracing.StageError, err.Error())
		return
	}

	decision, err := h.Access.Check(ctx, msg.SenderID, inst.Name, h.posture())
	tc.Capture(ctx, tracing.StageAccessCheck, tracing.DirInternal, decision)
	if err != nil {
		tc.Close(ctx, tracing.StatusFailed, tracing.StageAccessCheck, err.Error())
		return
	}
	if !decision.Allowed {
		tc.Close(ctx, tracing.StatusAccessDenied, "", "")
		return
	}

	tc.SetProcessing()

	agentSessionID := sessionName
	if h.Sessions != nil {
		if sticky, err := h.Sessions.AgentSessionID(ctx, sessionName); err != nil {
			slog.Error("webhook: session link lookup failed", "instance", inst.Name, "session", sessionName, "error", err)
		} else if sticky != "" {
			agentSessionID = sticky
		}
	}

	agentReq := agent.Request{
		Endpoint:    inst.Agent.URL,
		APIKey:      inst.Agent.APIKey,
		AgentName:   inst.Agent.AgentName,
		SessionID:   agentSessionID,
		UserDisplay: usr.DisplayName,
		Message:     msg.Content,
		Streaming:   inst.Agent.Streaming,
		Timeout:     time.Duration(inst.Agent.TimeoutSeconds) * time.Second,
	}
	tc.Capture(ctx, tracing.StageAgentRequest, tracing.DirOutbound, agentReq)
	agentRes := h.Agent.Call(ctx, agentReq)
	tc.Capture(ctx, tracing.StageAgentResponse, tracing.DirInbound, agentRes)
	tc.MarkAgent(agentRes.ProcessingTimeMs, agentRes.Success)
	if agentRes.SessionID != "" {
		tc.SetAgentSessionID(agentRes.SessionID)
		if h.Sessions != nil {
			if err := h.Sessions.Remember(ctx, sessionName, agentRes.SessionID); err != nil {
				slog.Error("webhook: session link store failed", "instance", inst.Name, "session", sessionName, "error", err)
			}
		}
	}
	if !agentRes.Success {
		msgErr := "agent call failed"
		if agentRes.Err != nil {
			msgErr = agentRes.Err.Error()
		}
		tc.Close(ctx, tracing.StatusFailed, tracing.StageAgentRequest, msgErr)
		return
	}

	transport := h.transportFor(inst)
	result := h.Dispatcher.Send(ctx, inst, transport, msg.ChatID, agentRes.Content, nil)
	tc.Capture(ctx, tracing.StageOutboundRequest, tracing.DirOutbound, result)
	tc.MarkOutbound(result.Success)
	if !result.Success {
		errMsg := "dispatch failed"
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
		tc.Close(ctx, tracing.StatusFailed, tracing.StageOutboundRequest, errMsg)
		return
	}
	tc.Close(ctx, tracing.StatusCompleted, "", "")
}

func (h *Handler) posture() access.DefaultPosture {
	if h.DefaultPosture == "" {
		return access.PostureOpen
	}
	return h.DefaultPosture
}

func (h *Handler) transportFor(inst instance.Instance) dispatch.Transport {
	switch inst.Channel {
	case instance.ChannelDiscord:
		return &dispatch.DiscordTransport{SocketPath: dispatch.DiscordSocketPath(h.RunDir, inst.Name)}
	default:
		return &dispatch.WhatsAppTransport{
			HTTPClient:       http.DefaultClient,
			EvolutionURL:     inst.ProviderURL,
			APIKey:           inst.ProviderKey,
			ProviderInstance: inst.ProviderInstance,
		}
	}
}
