package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/namastexlabs/automagik-omni/internal/access"
	"github.com/namastexlabs/automagik-omni/internal/agent"
	"github.com/namastexlabs/automagik-omni/internal/config"
	"github.com/namastexlabs/automagik-omni/internal/dispatch"
	"github.com/namastexlabs/automagik-omni/internal/instance"
	"github.com/namastexlabs/automagik-omni/internal/sessions"
	"github.com/namastexlabs/automagik-omni/internal/store/pg"
	"github.com/namastexlabs/automagik-omni/internal/supervisor"
	"github.com/namastexlabs/automagik-omni/internal/telemetry"
	"github.com/namastexlabs/automagik-omni/internal/tracing"
	"github.com/namastexlabs/automagik-omni/internal/user"
	"github.com/namastexlabs/automagik-omni/internal/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the messaging hub: webhook server, core-inbound socket, and retention sweeper",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("serve: failed to load config", "error", err)
		os.Exit(2)
	}
	if cfg.APIKey == "" {
		slog.Error("serve: OMNI_API_KEY is required")
		os.Exit(2)
	}
	dsn, err := cfg.RequireDatabaseURL()
	if err != nil {
		slog.Error("serve: no usable database configured", "error", err)
		os.Exit(2)
	}

	stores, err := pg.NewStores(dsn)
	if err != nil {
		slog.Error("serve: database unreachable", "error", err)
		os.Exit(3)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := instance.New(stores.Instances)
	if err := registry.Reload(ctx); err != nil {
		slog.Error("serve: initial instance load failed", "error", err)
		os.Exit(3)
	}

	accessEngine := access.New(stores.Access)
	tracingPipeline := tracing.New(stores.Tracing, tracing.Config{
		Enabled:          true,
		MaxPayloadBytes:  int(cfg.Trace.MaxPayloadBytes),
		IncludeSensitive: cfg.Trace.IncludeSensitive,
		RetentionDays:    cfg.Trace.RetentionDays,
	})
	userResolver := user.New(stores.Users)
	sessionLinker := sessions.NewLinker(stores.Sessions)
	agentClient := agent.New(&http.Client{Timeout: 120 * time.Second})
	// 5 segments/sec per instance keeps a burst of split Discord/WhatsApp
	// segments from tripping provider-side rate limits.
	dispatcher := dispatch.NewWithRateLimit(5)

	telemetryProvider, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    telemetry.Protocol(cfg.Telemetry.Protocol),
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		slog.Error("serve: telemetry init failed", "error", err)
		os.Exit(2)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = telemetryProvider.Shutdown(shutdownCtx)
	}()

	handler := &webhook.Handler{
		Registry:       registry,
		Access:         accessEngine,
		Tracing:        tracingPipeline,
		Users:          userResolver,
		Agent:          agentClient,
		Sessions:       sessionLinker,
		Dispatcher:     dispatcher,
		Telemetry:      telemetryProvider,
		RunDir:         cfg.RunDir,
		DefaultPosture: access.PostureOpen,
	}

	sup := supervisor.New(registry, cfg.RunDir)
	sup.Watch()

	webhookServer := webhook.NewServer(registry, handler, cfg.APIKey, 0)
	coreSocketPath := filepath.Join(cfg.RunDir, "sockets", "core-inbound.sock")
	coreServer := webhook.NewCoreInboundServer(webhookServer.Queues(), coreSocketPath)
	if err := coreServer.Start(); err != nil {
		slog.Error("serve: core-inbound socket failed to start", "path", coreSocketPath, "error", err)
		os.Exit(3)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: webhookServer.Routes(),
	}

	stopConfigWatch, err := config.Watch(ctx, cfgPath, func(next *config.Config) {
		next.ApplyEnvOverrides()
		cfg.ReplaceFrom(next)
		slog.Info("serve: config reloaded")
	})
	if err != nil {
		slog.Warn("serve: config hot-reload unavailable", "error", err)
	} else {
		defer stopConfigWatch()
	}

	stopSweep := startRetentionSweep(ctx, tracingPipeline, &cfg.Trace)
	defer stopSweep()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("serve: shutdown initiated", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		_ = coreServer.Stop(shutdownCtx)
		cancel()
	}()

	slog.Info("omni serve starting",
		"version", Version,
		"addr", httpServer.Addr,
		"run_dir", cfg.RunDir,
		"database", "postgres",
	)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("serve: http server error", "error", err)
		os.Exit(1)
	}
	slog.Info("serve: clean shutdown")
}

// startRetentionSweep runs tracingPipeline.GC on cfg.SweepCron's schedule
// until ctx is cancelled, returning a stop function for symmetry with the
// other background components even though cancelling ctx is sufficient.
func startRetentionSweep(ctx context.Context, pipeline *tracing.Pipeline, cfg *config.TraceConfig) func() {
	sweeper := tracing.NewSweeper(pipeline, cfg.SweepCron, cfg.GCBatchSize)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()
	return func() {
		sweeper.Stop()
		<-done
	}
}
