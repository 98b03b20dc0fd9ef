// Package agent implements the Agent Client: the per-tenant call to the
// external agent HTTP service, with streaming aggregation and session
// stickiness.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/namastexlabs/automagik-omni/internal/errs"
)

// Request is one call's worth of input.
type Request struct {
	Endpoint    string // tenant agent.url
	APIKey      string
	AgentName   string
	SessionID   string // session to continue; webhook.Handler passes the local session name until the agent has returned one
	UserDisplay string
	Message     string
	Streaming   bool
	Timeout     time.Duration
}

// Result is the reply produced by the agent, plus outcome metadata.
type Result struct {
	Content           string
	SessionID         string
	Success           bool
	ProcessingTimeMs  int64
	Err               *errs.Error
}

// Client issues calls against the agent endpoint.
type Client struct {
	httpClient *http.Client
}

// New constructs a Client. A nil httpClient falls back to a new
// zero-value http.Client with no extra transport configuration — per-call
// timeout is always applied via context, so the client itself does not
// need its own Timeout field set.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// Call issues a single authenticated HTTP request to the tenant's agent
// endpoint, streaming or not per req.Streaming, and returns the
// aggregated reply.
func (c *Client) Call(ctx context.Context, req Request) Result {
	start := time.Now()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := buildMultipartBody(req)
	if err != nil {
		return Result{Success: false, Err: errs.New(errs.KindAgentTransport, errs.StageAgentRequest, err)}
	}

	url := fmt.Sprintf("%s/playground/agents/%s/runs", req.Endpoint, req.AgentName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Result{Success: false, Err: errs.New(errs.KindAgentTransport, errs.StageAgentRequest, err)}
	}
	httpReq.Header.Set("Content-Type", contentType)
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		kind := errs.KindAgentTransport
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = errs.KindAgentTimeout
		}
		return Result{
			Success:          false,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Err:              errs.New(kind, errs.StageAgentRequest, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{
			Success:          false,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Err:              errs.New(errs.KindAgentHTTP, errs.StageAgentRequest, fmt.Errorf("http_%d", resp.StatusCode)),
		}
	}

	var result Result
	if req.Streaming {
		result, err = consumeStream(resp.Body)
	} else {
		result, err = consumeSingleResponse(resp.Body)
	}
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		kind := errs.KindAgentTransport
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = errs.KindAgentTimeout
		}
		result.Success = false
		result.Err = errs.New(kind, errs.StageAgentRequest, err)
		return result
	}
	result.Success = true
	return result
}

func buildMultipartBody(req Request) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := w.WriteField("message", req.Message); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("stream", strconv.FormatBool(req.Streaming)); err != nil {
		return nil, "", err
	}
	if req.SessionID != "" {
		if err := w.WriteField("session_id", req.SessionID); err != nil {
			return nil, "", err
		}
	}
	if req.UserDisplay != "" {
		if err := w.WriteField("user_id", req.UserDisplay); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// nonStreamResponse is the shape of a non-streaming agent reply.
type nonStreamResponse struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

func consumeSingleResponse(body io.Reader) (Result, error) {
	dec := json.NewDecoder(body)
	var r nonStreamResponse
	if err := dec.Decode(&r); err != nil {
		return Result{}, err
	}
	return Result{Content: r.Content, SessionID: r.SessionID}, nil
}
