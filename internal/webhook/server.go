package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/namastexlabs/automagik-omni/internal/bus"
	"github.com/namastexlabs/automagik-omni/internal/channels/whatsapp"
	"github.com/namastexlabs/automagik-omni/internal/instance"
)

// Server is the public-facing HTTP surface: the WhatsApp/Evolution
// webhook and a legacy default-instance alias. Discord events arrive on
// a separate Unix-socket listener (see CoreInboundServer) since they
// never cross a public network boundary.
type Server struct {
	Registry *instance.Registry
	Handler  *Handler
	APIKey   string

	limiter *rateLimiter
	queues  *QueueSet
}

// NewServer builds a webhook server. queueCapacity is the per-instance
// bounded queue size (0 selects bus.DefaultQueueCapacity).
func NewServer(registry *instance.Registry, handler *Handler, apiKey string, queueCapacity int) *Server {
	s := &Server{
		Registry: registry,
		Handler:  handler,
		APIKey:   apiKey,
		limiter:  newRateLimiter(),
		queues:   NewQueueSet(queueCapacity, handler),
	}
	return s
}

// Queues exposes the shared per-instance queue set so the core-inbound
// Discord socket server can enqueue onto the same workers this HTTP
// server feeds.
func (s *Server) Queues() *QueueSet { return s.queues }

// Routes returns the configured ServeMux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/evolution", s.handleLegacyWebhook)
	mux.HandleFunc("/webhook/", s.handleInstanceWebhook)
	return mux
}

func (s *Server) handleLegacyWebhook(w http.ResponseWriter, r *http.Request) {
	def, err := s.Registry.Default(r.Context())
	if err != nil {
		writeStatus(w, http.StatusNotFound, "no default instance configured")
		return
	}
	s.ingest(w, r, def.Name)
}

func (s *Server) handleInstanceWebhook(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.URL.Path)
	if name == "" || name == "webhook" {
		writeStatus(w, http.StatusNotFound, "instance name required")
		return
	}
	s.ingest(w, r, name)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, instanceName string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	inst, err := s.Registry.Get(r.Context(), instanceName)
	if err != nil {
		writeStatus(w, http.StatusNotFound, "unknown instance")
		return
	}

	if !s.authorized(r, inst) {
		writeStatus(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	if !s.limiter.Allow(instanceName) {
		writeStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "could not read body")
		return
	}

	msg, err := whatsapp.Parse(instanceName, raw)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "could not parse payload")
		return
	}

	if !s.queues.Enqueue(msg) {
		writeStatus(w, http.StatusTooManyRequests, "queue full")
		return
	}
	writeStatus(w, http.StatusOK, "accepted")
}

func (s *Server) authorized(r *http.Request, inst instance.Instance) bool {
	key := r.Header.Get("x-api-key")
	if key == "" {
		return false
	}
	return key == s.APIKey || key == inst.ProviderKey
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// CoreInboundServer listens on the core-owned Unix socket every Discord
// sidecar dials to forward normalized events, mirroring the HTTP webhook
// path but with filesystem-permission authentication instead of an API
// key (mode 0600, same UID).
type CoreInboundServer struct {
	queues     *QueueSet
	socketPath string
	listener   net.Listener
	http       *http.Server
}

// NewCoreInboundServer builds a server bound to socketPath, enqueueing
// onto the same per-instance queues the HTTP webhook path feeds.
func NewCoreInboundServer(queues *QueueSet, socketPath string) *CoreInboundServer {
	s := &CoreInboundServer{queues: queues, socketPath: socketPath}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvent)
	s.http = &http.Server{Handler: mux}
	return s
}

// Start binds the socket and begins serving in a background goroutine.
func (s *CoreInboundServer) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return err
	}
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = ln.Close()
		return err
	}
	s.listener = ln

	go func() { _ = s.http.Serve(ln) }()
	return nil
}

// Stop shuts the server down and removes the socket file.
func (s *CoreInboundServer) Stop(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	_ = os.Remove(s.socketPath)
	return err
}

func (s *CoreInboundServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var msg bus.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !s.queues.Enqueue(msg) {
		writeStatus(w, http.StatusTooManyRequests, "queue full")
		return
	}
	writeStatus(w, http.StatusOK, "accepted")
}
