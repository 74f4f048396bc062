package anthropic

import "encoding/json"

// Messages API wire types, internal to the adapter.

// messagesRequest is the request body for POST /v1/messages.
type messagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream"`
}

// anthropicMessage is a single conversation message.
type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is a content block in wire form. The populated fields
// depend on Type: "text" uses Text, "tool_use" uses ID/Name/Input,
// "tool_result" uses ToolUseID/Content.
type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// anthropicTool declares a callable tool to the backend.
type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// streamEvent is one SSE data frame of a streaming response. Type
// discriminates which of the optional fields are set.
type streamEvent struct {
	Type         string            `json:"type"`
	Message      *messageStart     `json:"message,omitempty"`
	Index        int               `json:"index"`
	ContentBlock *contentBlockInfo `json:"content_block,omitempty"`
	Delta        *eventDelta       `json:"delta,omitempty"`
	Usage        *eventUsage       `json:"usage,omitempty"`
	Error        *eventError       `json:"error,omitempty"`
}

// messageStart is the message envelope of a message_start event.
type messageStart struct {
	ID    string      `json:"id"`
	Role  string      `json:"role"`
	Usage *eventUsage `json:"usage,omitempty"`
}

// contentBlockInfo announces a new block in content_block_start. A
// tool_use block carries the call id and tool name here, before any
// input fragments arrive.
type contentBlockInfo struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
}

// eventDelta carries both content_block_delta payloads (text_delta and
// input_json_delta) and the message_delta stop reason.
type eventDelta struct {
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// eventUsage reports token consumption. message_start carries input
// tokens, message_delta the cumulative output tokens.
type eventUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// eventError is the payload of an error stream event.
type eventError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// errorResponse is the error body returned on non-2xx responses.
type errorResponse struct {
	Type  string      `json:"type"`
	Error *eventError `json:"error"`
}
