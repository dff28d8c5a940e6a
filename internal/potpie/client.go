// ABOUTME: Typed HTTP client for the Potpie API
// ABOUTME: Normalizes transport failures and error responses into a single Err shape

package potpie

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
)

// StatusLocal is the status code carried by failures that originate
// locally (transport errors, malformed payloads) rather than from an
// HTTP response.
const StatusLocal = -1

// invalidObject is the message for response bodies that don't match the
// documented shape.
const invalidObject = "invalid object received"

// defaultSendTimeout bounds SendMessage calls; agent replies are slow.
const defaultSendTimeout = 120 * time.Second

// Err describes a failed API call. For HTTP failures Message carries the
// remote response body verbatim and StatusCode the HTTP status; local
// failures use StatusLocal.
type Err struct {
	Message    string
	StatusCode int
}

// Error formats the failure for logs. User-facing surfaces never show
// this text directly.
func (e *Err) Error() string {
	if e.StatusCode == StatusLocal {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Project is a read-only projection of a Potpie project. Name carries
// the repository the project was parsed from.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"repo_name"`
	Status string `json:"status"`
}

// Ready reports whether the project finished parsing and can back a
// conversation.
func (p Project) Ready() bool {
	return p.Status == "ready"
}

// Agent is a read-only projection of a Potpie agent. Type carries the
// wire status field verbatim.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"status"`
}

// Client communicates with the Potpie HTTP API. Every operation returns
// either a value or an *Err, never both, so callers branch on the error
// instead of catching anything.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewClient creates a Potpie client for the given base URL.
// sendTimeout bounds SendMessage only; zero selects the default.
func NewClient(baseURL string, sendTimeout time.Duration) *Client {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			// Fresh connection per call, never a pooled session.
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		sendTimeout: sendTimeout,
		logger:      slog.Default().With("component", "potpie"),
	}
}

// FetchProjects lists the tenant's projects.
// A 2xx body that is not a JSON array yields an invalid-object error.
func (c *Client) FetchProjects(ctx context.Context, token string) ([]Project, *Err) {
	body, apiErr := c.get(ctx, c.baseURL+"/api/v2/projects/list", token)
	if apiErr != nil {
		return nil, apiErr
	}

	// A nil slice after a clean unmarshal means the body was JSON null,
	// which is not a list either.
	var projects []Project
	if err := json.Unmarshal(body, &projects); err != nil || projects == nil {
		c.logger.Warn("projects response is not a list", "error", err)
		return nil, &Err{Message: invalidObject, StatusCode: StatusLocal}
	}
	return projects, nil
}

// FetchAgents lists the agents available to the tenant.
// A 2xx body that is not a JSON array yields an invalid-object error.
func (c *Client) FetchAgents(ctx context.Context, token string) ([]Agent, *Err) {
	body, apiErr := c.get(ctx, c.baseURL+"/api/v2/list-available-agents", token)
	if apiErr != nil {
		return nil, apiErr
	}

	var agents []Agent
	if err := json.Unmarshal(body, &agents); err != nil || agents == nil {
		c.logger.Warn("agents response is not a list", "error", err)
		return nil, &Err{Message: invalidObject, StatusCode: StatusLocal}
	}
	return agents, nil
}

// CreateConversation opens a remote conversation for one project and one
// agent and returns its ID. The API accepts multiple of each; this
// client always sends singleton lists.
func (c *Client) CreateConversation(ctx context.Context, token, projectID, agentID string) (string, *Err) {
	payload := map[string][]string{
		"project_ids": {projectID},
		"agent_ids":   {agentID},
	}

	body, apiErr := c.post(ctx, c.baseURL+"/api/v2/conversations/", token, payload)
	if apiErr != nil {
		return "", apiErr
	}

	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.ConversationID == "" {
		c.logger.Warn("conversation response missing conversation_id", "error", err)
		return "", &Err{Message: invalidObject, StatusCode: StatusLocal}
	}
	return resp.ConversationID, nil
}

// SendMessage posts one message into a conversation and returns the
// agent's reply. The call is bounded by the client's send timeout.
func (c *Client) SendMessage(ctx context.Context, token, conversationID, content string) (string, *Err) {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	payload := map[string]any{
		"content":  content,
		"node_ids": []string{},
	}

	url := fmt.Sprintf("%s/api/v2/conversations/%s/message", c.baseURL, conversationID)
	body, apiErr := c.post(ctx, url, token, payload)
	if apiErr != nil {
		return "", apiErr
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Message == "" {
		c.logger.Warn("message response missing message", "error", err)
		return "", &Err{Message: invalidObject, StatusCode: StatusLocal}
	}
	return resp.Message, nil
}

// get performs an authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, url, token string) ([]byte, *Err) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Err{Message: err.Error(), StatusCode: StatusLocal}
	}
	setHeaders(req, token)

	return c.do(req)
}

// post performs an authenticated POST with a JSON payload and returns
// the response body.
func (c *Client) post(ctx context.Context, url, token string, payload any) ([]byte, *Err) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &Err{Message: err.Error(), StatusCode: StatusLocal}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &Err{Message: err.Error(), StatusCode: StatusLocal}
	}
	setHeaders(req, token)

	return c.do(req)
}

// do executes the request, propagating non-2xx bodies verbatim as the
// error message.
func (c *Client) do(req *http.Request) ([]byte, *Err) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "url", req.URL.String(), "error", err)
		return nil, &Err{Message: err.Error(), StatusCode: StatusLocal}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Err{Message: err.Error(), StatusCode: StatusLocal}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("request rejected",
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"body", string(body))
		return nil, &Err{Message: string(body), StatusCode: resp.StatusCode}
	}

	return body, nil
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", token)
}
