package supervisor

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/namastexlabs/automagik-omni/internal/dispatch"
	"github.com/namastexlabs/automagik-omni/internal/instance"
)

func TestInstanceNameFromSocket(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"discord-acme.sock", "acme"},
		{"discord-acme-corp.sock", "acme-corp"},
		{"core-inbound.sock", ""},
		{"discord-.sock", ""},
		{"discord-acme.sockx", ""},
		{"acme.sock", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := instanceNameFromSocket(tc.filename); got != tc.want {
			t.Errorf("instanceNameFromSocket(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}

func TestCheckNotRunningWithoutSocket(t *testing.T) {
	runDir := t.TempDir()
	sup := New(instance.New(emptyStore{}), runDir)
	inst := instance.Instance{Name: "acme", Channel: instance.ChannelDiscord}

	status := sup.Check(context.Background(), inst)
	if status.State != StateNotRunning {
		t.Fatalf("expected not_running with no socket present, got %s", status.State)
	}
}

func TestCheckRunningWhenHealthy(t *testing.T) {
	runDir := t.TempDir()
	socketPath := dispatch.DiscordSocketPath(runDir, "acme")
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "healthy", "uptime_s": 42})
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	sup := New(instance.New(emptyStore{}), runDir)
	inst := instance.Instance{Name: "acme", Channel: instance.ChannelDiscord}

	status := sup.Check(context.Background(), inst)
	if status.State != StateRunning {
		t.Fatalf("expected running, got %s", status.State)
	}
	if status.UptimeS != 42 {
		t.Fatalf("expected uptime_s 42, got %d", status.UptimeS)
	}
}

func TestCheckSkipsNonDiscordInstances(t *testing.T) {
	sup := New(instance.New(emptyStore{}), t.TempDir())
	inst := instance.Instance{Name: "acme", Channel: instance.ChannelWhatsApp}

	status := sup.Check(context.Background(), inst)
	if status.State != StateNotRunning {
		t.Fatalf("expected not_running for a non-discord instance, got %s", status.State)
	}
}

func TestPruneStaleSocketsRemovesUnwanted(t *testing.T) {
	runDir := t.TempDir()
	socketsDir := filepath.Join(runDir, "sockets")
	if err := os.MkdirAll(socketsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(socketsDir, "discord-keep.sock")
	stale := filepath.Join(socketsDir, "discord-stale.sock")
	for _, p := range []string{keep, stale} {
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	sup := New(instance.New(emptyStore{}), runDir)
	if err := sup.pruneStaleSockets(map[string]bool{"keep": true}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("expected wanted socket to survive, stat error: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale socket to be removed, stat error: %v", err)
	}
}

func TestPruneStaleSocketsNoSocketsDir(t *testing.T) {
	sup := New(instance.New(emptyStore{}), t.TempDir())
	if err := sup.pruneStaleSockets(map[string]bool{}); err != nil {
		t.Fatalf("a missing sockets dir must not be an error, got %v", err)
	}
}

type emptyStore struct{}

func (emptyStore) List(context.Context) ([]instance.Instance, error) { return nil, nil }
func (emptyStore) Get(context.Context, string) (instance.Instance, error) {
	return instance.Instance{}, instance.ErrNotFound
}
func (emptyStore) Default(context.Context) (instance.Instance, error) {
	return instance.Instance{}, instance.ErrNotFound
}
func (emptyStore) Upsert(context.Context, instance.Instance) error { return nil }
func (emptyStore) Delete(context.Context, string, bool) error      { return nil }
