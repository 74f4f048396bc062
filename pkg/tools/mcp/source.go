package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

// Source exposes the tools of all connected MCP servers as one tool
// source. Servers are connected once via [Source.Connect]; a server
// that fails to connect or list its tools is skipped with a warning and
// contributes nothing.
type Source struct {
	mu sync.RWMutex

	conns        []*serverConn
	toolToServer map[string]*serverConn
}

var _ tools.Source = (*Source)(nil)

// New builds a source for the given server configurations. Call
// [Source.Connect] before registering it.
func New(servers []ServerConfig) (*Source, error) {
	s := &Source{toolToServer: make(map[string]*serverConn)}
	for _, cfg := range servers {
		if cfg.Name == "" {
			return nil, fmt.Errorf("MCP server config missing name")
		}
		if cfg.URL == "" {
			return nil, fmt.Errorf("MCP server %q missing URL", cfg.Name)
		}
		s.conns = append(s.conns, newServerConn(cfg))
	}
	return s, nil
}

// Connect establishes all server connections and lists their tools.
// Failures are contained per server: the failed server's tools are
// omitted while every other server stays usable.
func (s *Source) Connect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.conns {
		if err := conn.connect(ctx, nil); err != nil {
			slog.Warn("MCP server connection failed, omitting its tools",
				"server", conn.cfg.Name,
				"error", err)
			continue
		}
		s.indexConn(ctx, conn)
	}
}

// connectConn connects one server over a pre-built transport and
// indexes its tools. Tests use it with the SDK's in-memory transports.
func (s *Source) connectConn(ctx context.Context, conn *serverConn, transport mcp.Transport) error {
	if err := conn.connect(ctx, transport); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexConn(ctx, conn)
	return nil
}

func (s *Source) indexConn(ctx context.Context, conn *serverConn) {
	if err := conn.listTools(ctx); err != nil {
		slog.Warn("MCP tool listing failed, omitting the server's tools",
			"server", conn.cfg.Name,
			"error", err)
		return
	}
	for _, def := range conn.tools {
		if _, exists := s.toolToServer[def.Name]; exists {
			slog.Warn("duplicate MCP tool name, keeping first server",
				"tool", def.Name,
				"server", conn.cfg.Name)
			continue
		}
		s.toolToServer[def.Name] = conn
	}
	slog.Info("connected MCP server",
		"server", conn.cfg.Name,
		"tools", len(conn.tools))
}

// Name identifies this source in logs and metrics.
func (s *Source) Name() string { return "mcp" }

// Tools returns the merged tool definitions of all connected servers,
// in server configuration order. Tools shadowed by an earlier server
// are excluded.
func (s *Source) Tools() []api.ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var defs []api.ToolDefinition
	for _, conn := range s.conns {
		for _, def := range conn.tools {
			if s.toolToServer[def.Name] == conn {
				defs = append(defs, def)
			}
		}
	}
	return defs
}

// CanExecute reports whether any connected server provides the tool.
func (s *Source) CanExecute(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.toolToServer[name]
	return ok
}

// Execute routes the call to the server that listed the tool.
func (s *Source) Execute(ctx context.Context, call tools.Call) (*tools.Result, error) {
	s.mu.RLock()
	conn, ok := s.toolToServer[call.Name]
	s.mu.RUnlock()

	if !ok {
		return &tools.Result{
			CallID:  call.ID,
			Content: "tool not found: " + call.Name,
			IsError: true,
		}, nil
	}
	return conn.call(ctx, call)
}

// Close closes all server sessions, returning the last error seen.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for _, conn := range s.conns {
		if err := conn.close(); err != nil {
			slog.Warn("failed to close MCP server session",
				"server", conn.cfg.Name,
				"error", err)
			lastErr = err
		}
	}
	return lastErr
}
