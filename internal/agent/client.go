// Package agent is a thin client for the natural-language extraction
// service. The service is session-based: a session is created per
// request, queried once, and must be deleted afterward — the server
// accumulates session state indefinitely otherwise.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"articlescout/internal/types"
)

// Config configures the agent client.
type Config struct {
	APIKey   string
	Endpoint string
}

// Client communicates with the agent gateway over HTTP.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new agent client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "agent_client"),
	}
}

// event is one entry in the agent's reply stream.
type event struct {
	Type    string `json:"type"` // "message", "tool_call", "tool_result"
	Content string `json:"content,omitempty"`
}

// apiError is the service's error envelope.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession opens a session bound to a model, a fixed instruction,
// and the search tool. Returns the session id.
func (c *Client) CreateSession(ctx context.Context, model, instruction string) (string, error) {
	payload := map[string]any{
		"model":       model,
		"instruction": instruction,
		"tools":       []string{"web_search"},
	}

	var result struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", payload, &result); err != nil {
		return "", err
	}
	if result.SessionID == "" {
		return "", fmt.Errorf("agent returned empty session id")
	}
	return result.SessionID, nil
}

// Query sends one prompt into a session and returns the concatenated
// message text. maxTurns caps how many response events are consumed,
// bounding runaway agent loops.
func (c *Client) Query(ctx context.Context, sessionID, prompt string, maxTurns int) (string, error) {
	payload := map[string]any{
		"content":   prompt,
		"max_turns": maxTurns,
	}

	var result struct {
		Events []event `json:"events"`
	}
	path := "/v1/sessions/" + sessionID + "/messages"
	if err := c.do(ctx, http.MethodPost, path, payload, &result); err != nil {
		return "", err
	}

	var sb strings.Builder
	consumed := 0
	for _, ev := range result.Events {
		if consumed >= maxTurns {
			c.logger.Warn("agent turn cap reached", "session", sessionID, "cap", maxTurns)
			break
		}
		consumed++
		if ev.Type == "message" && ev.Content != "" {
			sb.WriteString(ev.Content)
		}
	}
	return sb.String(), nil
}

// DeleteSession releases a session's server-side state. Callers must
// invoke this on every exit path.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil)
}

// do executes one request against the gateway and decodes the response,
// mapping the service's error envelope onto typed sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode agent response: %w", err)
	}
	return nil
}

// mapError converts HTTP error responses into the typed errors the
// extractor dispatches on.
func (c *Client) mapError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	msg := ae.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	lower := strings.ToLower(msg + " " + ae.Error.Code)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "rate limit"):
		return fmt.Errorf("%w: %s", types.ErrQuotaExceeded, msg)
	case strings.Contains(lower, "model") && strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", types.ErrModelNotFound, msg)
	case strings.Contains(lower, "tool") && (strings.Contains(lower, "unsupported") || strings.Contains(lower, "not supported")):
		return fmt.Errorf("%w: %s", types.ErrToolUnsupported, msg)
	default:
		return fmt.Errorf("agent error %s: %s", resp.Status, msg)
	}
}
