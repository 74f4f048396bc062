package api

// EventType identifies the type of a progress event.
type EventType string

const (
	// EventText carries one incremental text fragment from the model.
	EventText EventType = "text"
	// EventToolCall announces that a tool dispatch is starting.
	EventToolCall EventType = "tool_call"
	// EventToolResult carries the outcome of the most recently started
	// tool dispatch.
	EventToolResult EventType = "tool_result"
	// EventError reports a fatal condition; it terminates the stream
	// without a subsequent done event.
	EventError EventType = "error"
	// EventDone is the normal terminal marker.
	EventDone EventType = "done"
)

// Event is one record of the progress-event stream delivered to the
// caller. Events are appended in exactly the order the engine produces
// them; the stream never buffers or reorders.
//
// Field population by type:
//
//	text        Content
//	tool_call   Tool, AgentName, Input
//	tool_result Tool, Content
//	error       Message
//	done        (none)
type Event struct {
	Type      EventType `json:"type"`
	Tool      string    `json:"tool,omitempty"`
	Content   string    `json:"content,omitempty"`
	AgentName string    `json:"agentName,omitempty"`
	Input     string    `json:"input,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// NewTextEvent builds a text event carrying one fragment.
func NewTextEvent(fragment string) Event {
	return Event{Type: EventText, Content: fragment}
}

// NewToolCallEvent builds a tool_call event. agentName is the display
// name of the collaborator behind the tool, or empty for local tools.
func NewToolCallEvent(tool, agentName, input string) Event {
	return Event{Type: EventToolCall, Tool: tool, AgentName: agentName, Input: input}
}

// NewToolResultEvent builds a tool_result event.
func NewToolResultEvent(tool, content string) Event {
	return Event{Type: EventToolResult, Tool: tool, Content: content}
}

// NewErrorEvent builds an error event.
func NewErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// NewDoneEvent builds the terminal done event.
func NewDoneEvent() Event {
	return Event{Type: EventDone}
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventDone
}
