package subagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

// Source exposes the discovered collaborators' delegation tools for one
// conversation. Continuation tokens are read and stored against that
// conversation, so concurrent conversations never share collaborator
// sessions.
type Source struct {
	conversationID string
	pool           *Pool
}

// Ensure Source implements the tool source contracts at compile time.
var (
	_ tools.Source       = (*Source)(nil)
	_ tools.DisplayNamer = (*Source)(nil)
)

// Name returns the source identifier.
func (s *Source) Name() string {
	return "collaborators"
}

// Tools returns one delegation tool per discovered collaborator, in
// configuration order. Undiscovered collaborators contribute nothing.
func (s *Source) Tools() []api.ToolDefinition {
	var defs []api.ToolDefinition
	for _, c := range s.pool.collaborators {
		if !c.discovered() {
			continue
		}
		c.mu.RLock()
		defs = append(defs, c.tool)
		c.mu.RUnlock()
	}
	return defs
}

// CanExecute reports whether a discovered collaborator owns the tool name.
func (s *Source) CanExecute(name string) bool {
	return s.pool.byToolName(name) != nil
}

// DisplayName returns the collaborator's self-reported name for progress
// events, or the empty string for tools this source does not own.
func (s *Source) DisplayName(toolName string) string {
	c := s.pool.byToolName(toolName)
	if c == nil {
		return ""
	}
	return c.displayName()
}

// Execute delegates the call's message to the owning collaborator. The
// stored continuation token for (conversation, collaborator) rides along;
// a token in the reply replaces it. Transport failures return an error for
// the dispatcher to fold into an error result.
func (s *Source) Execute(ctx context.Context, call tools.Call) (*tools.Result, error) {
	c := s.pool.byToolName(call.Name)
	if c == nil {
		return &tools.Result{
			CallID:  call.ID,
			Content: "tool not found: " + call.Name,
			IsError: true,
		}, nil
	}

	var args struct {
		Message string `json:"message"`
	}
	if len(call.Input) > 0 {
		_ = json.Unmarshal(call.Input, &args)
	}
	if args.Message == "" {
		return &tools.Result{
			CallID:  call.ID,
			Content: "the message argument is required",
			IsError: true,
		}, nil
	}

	token, _ := s.pool.sessions.Token(s.conversationID, c.cfg.ID)

	reply, err := c.client.Invoke(ctx, args.Message, token)
	if err != nil {
		return nil, fmt.Errorf("delegation to %s failed: %w", c.cfg.ID, err)
	}

	if reply.SessionID != "" {
		s.pool.sessions.SetToken(s.conversationID, c.cfg.ID, reply.SessionID)
	}

	return &tools.Result{
		CallID:  call.ID,
		Content: reply.Message,
	}, nil
}

// Close is a no-op; the pool owns the collaborator clients.
func (s *Source) Close() error {
	return nil
}
