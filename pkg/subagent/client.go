package subagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// discoveryPath is the well-known location of the agent card.
	discoveryPath = "/.well-known/agent.json"

	// delegationPath accepts delegated messages.
	delegationPath = "/v1/delegate"

	// discoveryTimeout bounds one discovery attempt. Discovery is a
	// startup concern; a slow collaborator must not stall it.
	discoveryTimeout = 5 * time.Second

	// invokeTimeout bounds one delegation. Collaborators run their own
	// model loops, so this is deliberately generous.
	invokeTimeout = 60 * time.Second
)

// Config identifies one collaborator.
type Config struct {
	// ID names the collaborator; its tool is subagent_<id>.
	ID string

	// BaseURL is the collaborator's base URL. The client appends the
	// discovery and delegation paths.
	BaseURL string

	// APIKey is an optional bearer token sent on both endpoints.
	APIKey string
}

// Descriptor is the collaborator's self-description from its agent card.
type Descriptor struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Capability is one advertised collaborator capability.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Reply is the collaborator's answer to a delegation.
type Reply struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// delegationRequest is the body sent to the delegation endpoint. The
// session id is omitted entirely on the first delegation.
type delegationRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Client talks to one collaborator.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a Client for the given collaborator. Returns an error
// if the configuration is invalid.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("subagent: ID is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("subagent %s: BaseURL is required", cfg.ID)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	// Per-call timeouts come from contexts; the client itself is shared
	// between discovery and delegation.
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}, nil
}

// Discover fetches and parses the collaborator's agent card.
func (c *Client) Discover(ctx context.Context) (*Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+discoveryPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discovery failed: HTTP %d", resp.StatusCode)
	}

	var d Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("parse agent card: %w", err)
	}
	return &d, nil
}

// Invoke delegates a message to the collaborator. A non-empty sessionID is
// passed along so the collaborator can resume its session; the reply may
// carry a new one.
func (c *Client) Invoke(ctx context.Context, message, sessionID string) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	body, err := json.Marshal(delegationRequest{
		Message:   message,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal delegation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+delegationPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build delegation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delegation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("delegation failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("parse delegation reply: %w", err)
	}
	return &reply, nil
}

// Close releases client resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
