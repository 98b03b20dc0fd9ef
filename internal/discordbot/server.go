package discordbot

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
)

type sendRequest struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Server exposes the sidecar's own control socket: POST /send (dispatched
// outbound segments from the core) and GET /health (supervisor probe),
// matching the contract the core's DiscordTransport and Supervisor dial
// against.
type Server struct {
	bot        *Bot
	socketPath string
	listener   net.Listener
	http       *http.Server
}

// NewServer builds a control server bound to socketPath. The socket file
// is created mode 0600 so authenticity rests on filesystem permissions
// (same UID as the core process).
func NewServer(bot *Bot, socketPath string) *Server {
	mux := http.NewServeMux()
	s := &Server{bot: bot, socketPath: socketPath}
	mux.HandleFunc("/send", s.handleSend)
	mux.HandleFunc("/health", s.handleHealth)
	s.http = &http.Server{Handler: mux}
	return s
}

// Start binds the Unix socket and begins serving in a background goroutine.
func (s *Server) Start() error {
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

	go func() {
		_ = s.http.Serve(ln)
	}()
	return nil
}

// Stop shuts the server down and removes the socket file.
func (s *Server) Stop(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sendResponse{Error: "invalid request body"})
		return
	}

	messageID, err := s.bot.SendText(req.ChannelID, req.Text)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, sendResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{Success: true, MessageID: messageID})
}

type healthResponse struct {
	Status   string `json:"status"`
	UptimeS  int    `json:"uptime_s"`
	Instance string `json:"instance"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected, uptime := s.bot.Connected()
	status := "down"
	if connected {
		status = "healthy"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		UptimeS:  int(uptime.Seconds()),
		Instance: s.bot.Instance,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// unixSocketHTTPClient builds a client that dials the given Unix socket
// path regardless of request host, mirroring the core's DiscordTransport.
func unixSocketHTTPClient(socketPath string) *http.Client {
	dialer := &net.Dialer{}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}
