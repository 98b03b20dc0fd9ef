// Command discordbot is the per-instance Discord sidecar process. It
// holds the only Discord gateway connection for one instance,
// forwards normalized events to the core over a Unix socket, and serves
// its own control socket for outbound sends and health probes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namastexlabs/automagik-omni/internal/discordbot"
)

func main() {
	var (
		instance   = flag.String("instance", "", "instance name (must match the registry)")
		token      = flag.String("token", os.Getenv("OMNI_DISCORD_TOKEN"), "discord bot token")
		runDir     = flag.String("run-dir", "/var/run/automagik-omni", "directory containing sockets/")
		coreSocket = flag.String("core-socket", "", "path to the core's inbound event socket (default: {run-dir}/sockets/core-inbound.sock)")
	)
	flag.Parse()

	if *instance == "" || *token == "" {
		slog.Error("discordbot: --instance and --token (or OMNI_DISCORD_TOKEN) are required")
		os.Exit(1)
	}

	if *coreSocket == "" {
		*coreSocket = *runDir + "/sockets/core-inbound.sock"
	}
	ownSocket := *runDir + "/sockets/discord-" + *instance + ".sock"

	bot, err := discordbot.New(*instance, *token, *coreSocket)
	if err != nil {
		slog.Error("discordbot: init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bot.Start(ctx); err != nil {
		slog.Error("discordbot: start failed", "error", err)
		os.Exit(1)
	}

	srv := discordbot.NewServer(bot, ownSocket)
	if err := srv.Start(); err != nil {
		slog.Error("discordbot: control socket failed", "error", err)
		os.Exit(1)
	}

	slog.Info("discordbot ready", "instance", *instance, "socket", ownSocket)

	<-ctx.Done()
	slog.Info("discordbot shutting down", "instance", *instance)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = bot.Stop(context.Background())
}
