package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/debug"
	"github.com/dirigent-dev/dirigent/pkg/provider"
)

// Provider implements provider.Provider for Chat Completions backends.
type Provider struct {
	cfg    Config
	client *http.Client
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates a Provider with the given configuration. Returns an error if
// the configuration is invalid.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: BaseURL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Name == "" {
		cfg.Name = "openai-compat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the provider instance identifier.
func (p *Provider) Name() string {
	return p.cfg.Name
}

// Stream performs streaming inference against /v1/chat/completions and
// returns a channel of events. The channel is closed when the stream
// completes, fails, or the context is cancelled.
//
// The HTTP client timeout is not applied to streaming requests because a
// stream can legitimately outlast any fixed timeout; the context controls
// the request lifetime instead.
func (p *Provider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	chatReq := translateToChat(req)

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewServerError("failed to marshal backend request: " + err.Error())
	}

	url := p.cfg.BaseURL + "/v1/chat/completions"
	debug.Log("providers", "backend request",
		"provider", p.cfg.Name, "url", url, "model", req.Model, "tools", len(req.Tools))
	debug.Raw("providers", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError("failed to create backend request: " + err.Error())
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	// Timeout-free client sharing the transport (and its connection pool).
	streamClient := &http.Client{Transport: p.client.Transport}

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}

	// Reject error statuses before any streaming starts.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, mapHTTPError(resp)
	}

	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		dec := newStreamDecoder()
		if err := parseSSEStream(ctx, resp.Body, dec, ch); err != nil {
			sendEvent(ctx, ch, provider.Event{
				Type: provider.EventError,
				Err:  api.NewUpstreamError("stream read error: " + err.Error()),
			})
			return
		}
		if ctx.Err() != nil {
			return
		}
		dec.finish(ctx, ch)
	}()

	return ch, nil
}

// Close releases provider resources.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
