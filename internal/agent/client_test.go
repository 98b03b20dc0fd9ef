package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/namastexlabs/automagik-omni/internal/errs"
)

func TestCallNonStreamingHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/playground/agents/default/runs") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":"hi there","session_id":"S1"}`))
	}))
	defer srv.Close()

	c := New(nil)
	result := c.Call(context.Background(), Request{
		Endpoint:  srv.URL,
		AgentName: "default",
		Message:   "hello",
		Timeout:   2 * time.Second,
	})
	if !result.Success {
		t.Fatalf("expected success, got err %v", result.Err)
	}
	if result.Content != "hi there" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
}

func TestCallHTTPErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(nil)
	result := c.Call(context.Background(), Request{
		Endpoint:  srv.URL,
		AgentName: "default",
		Message:   "hello",
		Timeout:   2 * time.Second,
	})
	if result.Success {
		t.Fatal("expected failure for 500 response")
	}
	if result.Err == nil {
		t.Fatal("expected classified error")
	}
}

func TestCallTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"content":"late"}`))
	}))
	defer srv.Close()

	c := New(nil)
	result := c.Call(context.Background(), Request{
		Endpoint:  srv.URL,
		AgentName: "default",
		Message:   "hello",
		Timeout:   1 * time.Millisecond,
	})
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if result.Err == nil || result.Err.Kind != errs.KindAgentTimeout {
		t.Fatalf("expected agent timeout error, got %v", result.Err)
	}
}
