package api

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Messages and content blocks
// ---------------------------------------------------------------------------

// MessageRole represents the role of a message sender. Conversation
// history carries only user and assistant messages; system instructions
// travel separately and are injected by each provider adapter in its own
// wire shape.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one conversation message: a role plus an ordered sequence
// of content blocks. Messages are immutable once appended to a history.
type Message struct {
	Role    MessageRole    `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewUserText builds a user message containing a single text block.
func NewUserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{NewTextBlock(text)}}
}

// NewAssistantText builds an assistant message containing a single text block.
func NewAssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{NewTextBlock(text)}}
}

// Text concatenates the text of all text blocks in the message.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockTypeText && b.Text != nil {
			out += b.Text.Text
		}
	}
	return out
}

// ToolCalls returns the tool_call blocks of the message in order.
func (m Message) ToolCalls() []ToolCallData {
	var calls []ToolCallData
	for _, b := range m.Content {
		if b.Type == BlockTypeToolCall && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// BlockType identifies the variant of a content block.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeToolCall   BlockType = "tool_call"
	BlockTypeToolResult BlockType = "tool_result"
)

// TextData holds the data specific to a text block.
type TextData struct {
	Text string `json:"text"`
}

// ToolCallData holds the data specific to a tool_call block: the model's
// request to invoke a named tool with a structured input. Emitted only
// on assistant messages.
type ToolCallData struct {
	ID       string          `json:"id"`
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input"`
}

// ToolResultData holds the data specific to a tool_result block: the
// outcome of a prior tool_call, referencing it by call ID. Emitted only
// on user-role messages.
type ToolResultData struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
}

// ContentBlock is a tagged union over the three block variants. Exactly
// one of the variant pointers is populated, matching Type.
type ContentBlock struct {
	Type BlockType

	Text       *TextData
	ToolCall   *ToolCallData
	ToolResult *ToolResultData
}

// NewTextBlock builds a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: &TextData{Text: text}}
}

// NewToolCallBlock builds a tool_call content block. A nil input is
// normalized to an empty JSON object so downstream consumers never see
// a null input.
func NewToolCallBlock(id, toolName string, input json.RawMessage) ContentBlock {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{
		Type:     BlockTypeToolCall,
		ToolCall: &ToolCallData{ID: id, ToolName: toolName, Input: input},
	}
}

// NewToolResultBlock builds a tool_result content block.
func NewToolResultBlock(callID, content string) ContentBlock {
	return ContentBlock{
		Type:       BlockTypeToolResult,
		ToolResult: &ToolResultData{CallID: callID, Content: content},
	}
}

// blockWireBase contains the field common to all block variants.
type blockWireBase struct {
	Type BlockType `json:"type"`
}

// MarshalJSON serializes a ContentBlock to its flat wire format: the
// variant's fields sit at the top level next to "type", not nested in a
// wrapper object.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockTypeText:
		type wireText struct {
			blockWireBase
			Text string `json:"text"`
		}
		w := wireText{blockWireBase: blockWireBase{Type: b.Type}}
		if b.Text != nil {
			w.Text = b.Text.Text
		}
		return json.Marshal(w)

	case BlockTypeToolCall:
		type wireToolCall struct {
			blockWireBase
			ID       string          `json:"id"`
			ToolName string          `json:"tool_name"`
			Input    json.RawMessage `json:"input"`
		}
		w := wireToolCall{blockWireBase: blockWireBase{Type: b.Type}}
		if b.ToolCall != nil {
			w.ID = b.ToolCall.ID
			w.ToolName = b.ToolCall.ToolName
			w.Input = b.ToolCall.Input
		}
		if len(w.Input) == 0 {
			w.Input = json.RawMessage(`{}`)
		}
		return json.Marshal(w)

	case BlockTypeToolResult:
		type wireToolResult struct {
			blockWireBase
			CallID  string `json:"call_id"`
			Content string `json:"content"`
		}
		w := wireToolResult{blockWireBase: blockWireBase{Type: b.Type}}
		if b.ToolResult != nil {
			w.CallID = b.ToolResult.CallID
			w.Content = b.ToolResult.Content
		}
		return json.Marshal(w)

	default:
		return nil, fmt.Errorf("api: cannot marshal content block of type %q", b.Type)
	}
}

// UnmarshalJSON deserializes a ContentBlock from its flat wire format,
// populating exactly the variant field matching the "type" discriminator.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type BlockType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch probe.Type {
	case BlockTypeText:
		var w struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*b = NewTextBlock(w.Text)
		return nil

	case BlockTypeToolCall:
		var w struct {
			ID       string          `json:"id"`
			ToolName string          `json:"tool_name"`
			Input    json.RawMessage `json:"input"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*b = NewToolCallBlock(w.ID, w.ToolName, w.Input)
		return nil

	case BlockTypeToolResult:
		var w struct {
			CallID  string `json:"call_id"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*b = NewToolResultBlock(w.CallID, w.Content)
		return nil

	default:
		return fmt.Errorf("api: unknown content block type %q", probe.Type)
	}
}

// ---------------------------------------------------------------------------
// Tool definitions
// ---------------------------------------------------------------------------

// ToolDefinition describes one tool surfaced to the model for a turn
// loop invocation. Collaborator-backed, disclosure-backed, and MCP-backed
// tools all share this shape; the model cannot tell them apart.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ---------------------------------------------------------------------------
// Chat exchange request
// ---------------------------------------------------------------------------

// HistoryMessage is one entry of caller-supplied conversation history:
// a role plus plain text. It is converted into a single-text-block
// Message before entering the turn loop.
type HistoryMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ChatRequest is one chat exchange submitted by a caller. ConversationID
// is optional; when present it keys the server-side transcript and the
// collaborator continuation tokens for this conversation. History, when
// supplied, takes precedence over any stored transcript.
type ChatRequest struct {
	Message        string           `json:"message"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Model          string           `json:"model,omitempty"`
	History        []HistoryMessage `json:"history,omitempty"`
}

// UnmarshalJSON accepts "conversationId" as an alias for
// "conversation_id"; the snake_case spelling wins when both are present.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type plain ChatRequest
	var w struct {
		plain
		ConversationIDAlias string `json:"conversationId"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = ChatRequest(w.plain)
	if r.ConversationID == "" {
		r.ConversationID = w.ConversationIDAlias
	}
	return nil
}

// Usage reports token consumption for one provider round trip, when the
// upstream supplies it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
