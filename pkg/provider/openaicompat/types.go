package openaicompat

import "encoding/json"

// Chat Completions wire types, internal to the adapter. Field sets are kept
// to what the adapter actually sends and reads; backends tolerate absent
// optional fields.

// chatCompletionRequest is the request body for POST /v1/chat/completions.
type chatCompletionRequest struct {
	Model         string             `json:"model"`
	Messages      []chatMessage      `json:"messages"`
	Tools         []chatTool         `json:"tools,omitempty"`
	MaxTokens     int                `json:"max_tokens,omitempty"`
	Stream        bool               `json:"stream"`
	StreamOptions *chatStreamOptions `json:"stream_options,omitempty"`
}

// chatStreamOptions controls streaming behavior.
type chatStreamOptions struct {
	// IncludeUsage requests a usage block in the final chunk.
	IncludeUsage bool `json:"include_usage"`
}

// chatMessage is a single message in the Chat Completions conversation.
type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// chatToolCall is a completed tool call on an assistant message.
type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

// chatFunctionCall carries the function name and JSON-encoded arguments.
type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatTool declares a callable function to the backend.
type chatTool struct {
	Type     string          `json:"type"`
	Function chatFunctionDef `json:"function"`
}

// chatFunctionDef describes a function: name, description, and JSON Schema
// parameters.
type chatFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// chatCompletionChunk is one SSE data frame of a streaming response
// (object "chat.completion.chunk").
type chatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Model   string            `json:"model"`
	Choices []chatChunkChoice `json:"choices"`
	Usage   *chatUsage        `json:"usage,omitempty"`
}

// chatChunkChoice is a single choice within a chunk. FinishReason is nil
// until the terminal chunk for the choice.
type chatChunkChoice struct {
	Index        int            `json:"index"`
	Delta        chatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

// chatChunkDelta carries the incremental payload of a chunk.
type chatChunkDelta struct {
	Role      string              `json:"role,omitempty"`
	Content   *string             `json:"content,omitempty"`
	ToolCalls []chatChunkToolCall `json:"tool_calls,omitempty"`
}

// chatChunkToolCall is a tool-call fragment. Index correlates fragments of
// the same call; ID and Function.Name are only present on the first
// fragment with most backends.
type chatChunkToolCall struct {
	Index    int                   `json:"index"`
	ID       string                `json:"id,omitempty"`
	Type     string                `json:"type,omitempty"`
	Function chatChunkFunctionCall `json:"function"`
}

// chatChunkFunctionCall carries a name and/or an arguments fragment.
type chatChunkFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// chatUsage reports token consumption.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatErrorResponse is the error body returned on non-2xx responses.
type chatErrorResponse struct {
	Error chatError `json:"error"`
}

// chatError is the inner error object.
type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
