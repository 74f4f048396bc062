package provider

import (
	"github.com/dirigent-dev/dirigent/pkg/api"
)

// Request is the backend-facing request for one provider round trip. It
// contains only what the adapters need: the model, the optional system
// preamble, the conversation so far, and the tools visible this turn.
// Each adapter translates these into its own wire shape, including
// collapsing prior tool_result blocks into whatever that protocol
// expects for a function response.
type Request struct {
	Model     string
	System    string
	Messages  []api.Message
	Tools     []api.ToolDefinition
	MaxTokens int
}

// EventType classifies a streaming event from the backend.
type EventType int

const (
	EventTextDelta EventType = iota // incremental text fragment
	EventBlockDone                  // one content block completed
	EventDone                       // stream finished normally
	EventError                      // stream failed
)

// Event is a single streaming event surfaced by an adapter.
//
// Adapters emit EventTextDelta for every text fragment as it arrives
// (never buffered), EventBlockDone once per completed content block in
// upstream order (text blocks whole, tool calls with fully accumulated
// and parsed input), and exactly one terminal EventDone or EventError.
type Event struct {
	// Type indicates what kind of event this is.
	Type EventType

	// Delta contains an incremental text fragment (EventTextDelta).
	Delta string

	// Block is the completed content block (EventBlockDone).
	Block *api.ContentBlock

	// Usage is populated on EventDone when the backend reported it.
	Usage *api.Usage

	// Err is populated on EventError.
	Err error
}
