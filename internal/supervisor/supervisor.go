// Package supervisor watches the instance registry and reports the
// observed state of each Discord bot sidecar, without ever spawning or
// killing the sidecar process itself — that remains an external
// collaborator the operator manages.
package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/namastexlabs/automagik-omni/internal/dispatch"
	"github.com/namastexlabs/automagik-omni/internal/instance"
)

// State is the observed status of one instance's sidecar.
type State string

const (
	StateRunning    State = "running"
	StateDegraded   State = "degraded"
	StateNotRunning State = "not_running"
)

// Status is one instance's reported sidecar state.
type Status struct {
	Instance string
	State    State
	UptimeS  int
}

// Supervisor tracks Discord sidecar sockets against the instance
// registry: it never spawns a bot, only observes and cleans up.
type Supervisor struct {
	Registry *instance.Registry
	RunDir   string
}

// New constructs a Supervisor. registry and runDir must match the ones
// the webhook handler's DiscordTransport resolves sockets against.
func New(registry *instance.Registry, runDir string) *Supervisor {
	return &Supervisor{Registry: registry, RunDir: runDir}
}

// Watch registers a registry listener that removes stale sidecar socket
// files for instances no longer present or no longer channel=discord.
// Called once at boot, after the registry's first load.
func (s *Supervisor) Watch() {
	s.Registry.OnChange(func(ctx context.Context) {
		if err := s.reconcile(ctx); err != nil {
			slog.Error("supervisor: reconcile failed", "error", err)
		}
	})
}

func (s *Supervisor) reconcile(ctx context.Context) error {
	instances, err := s.Registry.List(ctx)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(instances))
	for _, inst := range instances {
		if inst.Channel == instance.ChannelDiscord {
			wanted[inst.Name] = true
		}
	}
	return s.pruneStaleSockets(wanted)
}

// pruneStaleSockets removes any discord-*.sock file under RunDir whose
// instance is not in wanted.
func (s *Supervisor) pruneStaleSockets(wanted map[string]bool) error {
	dir := filepath.Join(s.RunDir, "sockets")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := instanceNameFromSocket(e.Name())
		if name == "" || wanted[name] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("supervisor: failed to remove stale socket", "path", path, "error", err)
		} else {
			slog.Info("supervisor: removed stale sidecar socket", "instance", name)
		}
	}
	return nil
}

func instanceNameFromSocket(filename string) string {
	const prefix, suffix = "discord-", ".sock"
	if len(filename) <= len(prefix)+len(suffix) {
		return ""
	}
	if filename[:len(prefix)] != prefix {
		return ""
	}
	if filename[len(filename)-len(suffix):] != suffix {
		return ""
	}
	return filename[len(prefix) : len(filename)-len(suffix)]
}

// Check reports the current state of inst's sidecar: not_running if the
// socket file is absent, degraded if present but /health fails or
// returns a non-healthy status, running otherwise.
func (s *Supervisor) Check(ctx context.Context, inst instance.Instance) Status {
	status := Status{Instance: inst.Name, State: StateNotRunning}
	if inst.Channel != instance.ChannelDiscord {
		return status
	}

	socketPath := dispatch.DiscordSocketPath(s.RunDir, inst.Name)
	if _, err := os.Stat(socketPath); err != nil {
		return status
	}

	client := unixSocketClient(socketPath)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/health", nil)
	if err != nil {
		status.State = StateDegraded
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.State = StateDegraded
		return status
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		UptimeS int    `json:"uptime_s"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status != "healthy" {
		status.State = StateDegraded
		return status
	}

	status.State = StateRunning
	status.UptimeS = body.UptimeS
	return status
}

// CheckAll reports the state of every active Discord instance.
func (s *Supervisor) CheckAll(ctx context.Context) ([]Status, error) {
	instances, err := s.Registry.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(instances))
	for _, inst := range instances {
		if inst.Channel == instance.ChannelDiscord {
			out = append(out, s.Check(ctx, inst))
		}
	}
	return out, nil
}

// unixSocketClient builds an http.Client whose Transport dials socketPath
// for every request, regardless of the request's host. One connection
// per call, matching the dispatcher's own outbound socket discipline —
// health probes are infrequent enough that pooling buys nothing.
func unixSocketClient(socketPath string) *http.Client {
	dialer := &net.Dialer{}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}
