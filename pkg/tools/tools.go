package tools

import (
	"context"
	"encoding/json"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// Source is a pluggable tool backend. Each source contributes tool
// definitions advertised to the model and executes the calls addressed to
// them.
type Source interface {
	// Name returns a unique identifier for this source (e.g., "skills").
	Name() string

	// Tools returns the tool definitions this source contributes.
	Tools() []api.ToolDefinition

	// CanExecute reports whether this source handles the named tool.
	CanExecute(name string) bool

	// Execute runs a tool call and returns the result. An error return
	// means the source itself failed; a Result with IsError set means the
	// tool ran and reported a problem. Both are fed back to the model.
	Execute(ctx context.Context, call Call) (*Result, error)

	// Close releases any resources held by the source.
	Close() error
}

// DisplayNamer is implemented by sources whose tools act on behalf of a
// named agent. The display name decorates progress events; sources without
// one are simply not asked.
type DisplayNamer interface {
	// DisplayName returns the agent name behind the tool, or the empty
	// string when the tool has none.
	DisplayName(toolName string) string
}

// Call represents a model's request to invoke a tool.
type Call struct {
	// ID is the unique call identifier from the model.
	ID string

	// Name is the tool name.
	Name string

	// Input is the JSON-encoded arguments object.
	Input json.RawMessage
}

// Result represents the output of a tool execution.
type Result struct {
	// CallID matches the originating Call.ID.
	CallID string

	// Content is the tool output text.
	Content string

	// IsError indicates that Content is an error message.
	IsError bool
}
