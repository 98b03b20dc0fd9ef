// Package telemetry wraps the OpenTelemetry SDK: one exporter-backed
// TracerProvider for the process, and a single span per inbound event
// wrapping the whole pipeline. This is a distinct concern from
// internal/tracing's MessageTrace audit rows — those are structured,
// queryable application data; this is export-only observability.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Protocol selects the OTLP transport.
type Protocol string

const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http"
)

// Config controls whether and how spans are exported.
type Config struct {
	Enabled     bool
	Endpoint    string
	Protocol    Protocol
	ServiceName string
}

// Provider owns the process TracerProvider and its exporter's shutdown.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// noopProvider is returned when tracing is disabled; Span still works,
// it just never samples or exports anything.
func noopProvider() *Provider {
	return &Provider{tracer: otel.Tracer("automagik-omni")}
}

// Init builds a Provider from cfg. A disabled config returns a working
// no-op provider rather than an error, so callers never need to branch
// on whether telemetry is configured.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return noopProvider(), nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName(cfg))),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer("automagik-omni")}, nil
}

func serviceName(cfg Config) string {
	if cfg.ServiceName == "" {
		return "automagik-omni"
	}
	return cfg.ServiceName
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case ProtocolHTTP:
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	default:
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	}
}

// Shutdown flushes and closes the exporter. Safe to call on a no-op
// Provider (tp is nil there).
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartEvent opens the single span wrapping one inbound event's entire
// pipeline run: webhook receipt through outbound dispatch. Callers end
// it with the returned function once the event reaches a terminal
// trace status.
func (p *Provider) StartEvent(ctx context.Context, instanceName, channel string) (context.Context, func()) {
	ctx, span := p.tracer.Start(ctx, "omni.inbound_event",
		trace.WithAttributes(
			attribute.String("instance", instanceName),
			attribute.String("channel", channel),
		),
	)
	return ctx, func() { span.End() }
}
