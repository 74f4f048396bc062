package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

// serverConn is the connection to a single MCP server: the SDK client,
// its session, and the tools the server listed during connect.
type serverConn struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession
	tools   []api.ToolDefinition
}

func newServerConn(cfg ServerConfig) *serverConn {
	return &serverConn{cfg: cfg}
}

// connect performs the MCP handshake. A nil transport is built from the
// server configuration; tests inject in-memory transports directly.
func (c *serverConn) connect(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{Name: "dirigent", Version: "1.0.0"},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)

	if transport == nil {
		t, err := c.buildTransport()
		if err != nil {
			return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
		}
		transport = t
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	return nil
}

func (c *serverConn) buildTransport() (mcp.Transport, error) {
	httpClient := c.buildHTTPClient()

	switch c.cfg.Transport {
	case "sse":
		t := &mcp.SSEClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	case "streamable-http", "":
		t := &mcp.StreamableClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// buildHTTPClient returns an HTTP client that injects the configured
// static headers and auth headers, or nil when neither is configured.
func (c *serverConn) buildHTTPClient() *http.Client {
	var auth authProvider
	if c.cfg.Auth.Type == "oauth_client_credentials" {
		auth = newClientCredentialsAuth(
			c.cfg.Auth.TokenURL,
			c.cfg.Auth.ClientID,
			c.cfg.Auth.ClientSecret,
			c.cfg.Auth.Scopes,
		)
	}

	if len(c.cfg.Headers) == 0 && auth == nil {
		return nil
	}
	return &http.Client{
		Transport: &headerInjectingTransport{
			base:    http.DefaultTransport,
			headers: c.cfg.Headers,
			auth:    auth,
		},
	}
}

// headerInjectingTransport adds static headers and dynamically obtained
// auth headers to every request. Auth headers win on conflict.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
	auth    authProvider
}

func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if t.auth != nil {
		authHeaders, err := t.auth.headers(req.Context())
		if err != nil {
			return nil, fmt.Errorf("getting auth headers: %w", err)
		}
		for k, v := range authHeaders {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// listTools asks the server for its tools and caches the converted
// definitions on the connection.
func (c *serverConn) listTools(ctx context.Context) error {
	if c.session == nil {
		return fmt.Errorf("MCP server %q not connected", c.cfg.Name)
	}

	var defs []api.ToolDefinition
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		def, convErr := convertTool(tool)
		if convErr != nil {
			return fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, convErr)
		}
		defs = append(defs, def)
	}
	c.tools = defs
	return nil
}

// call executes one tool call on this server. Protocol and argument
// failures come back as error results, not Go errors, so the model can
// see and react to them.
func (c *serverConn) call(ctx context.Context, call tools.Call) (*tools.Result, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP server %q not connected", c.cfg.Name)
	}

	var args map[string]any
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return &tools.Result{
				CallID:  call.ID,
				Content: fmt.Sprintf("invalid tool input JSON: %v", err),
				IsError: true,
			}, nil
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: args,
	})
	if err != nil {
		return &tools.Result{
			CallID:  call.ID,
			Content: fmt.Sprintf("MCP tool call failed: %v", err),
			IsError: true,
		}, nil
	}
	return convertResult(call.ID, result), nil
}

func (c *serverConn) close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func convertTool(t *mcp.Tool) (api.ToolDefinition, error) {
	schema := json.RawMessage(`{"type": "object"}`)
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return api.ToolDefinition{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		schema = data
	}
	return api.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

// convertResult flattens the text content of an MCP result into a
// single tool result string.
func convertResult(callID string, result *mcp.CallToolResult) *tools.Result {
	var content string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			if content != "" {
				content += "\n"
			}
			content += tc.Text
		}
	}
	return &tools.Result{
		CallID:  callID,
		Content: content,
		IsError: result.IsError,
	}
}
