package api

import (
	"fmt"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for chat request validation.
type ValidationConfig struct {
	MaxMessageBytes       int
	MaxHistoryMessages    int
	MaxConversationIDSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessageBytes:       1 * 1024 * 1024, // 1MB
		MaxHistoryMessages:    1000,
		MaxConversationIDSize: 256,
	}
}

// ValidateChatRequest checks a ChatRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the
// request is valid.
//
// Conversation IDs are caller-supplied and free-form (a messaging
// channel ID is as valid as a generated conv_ ID); only size and UTF-8
// well-formedness are enforced.
func ValidateChatRequest(req *ChatRequest, cfg ValidationConfig) *APIError {
	if req.Message == "" {
		return NewInvalidRequestError("message", "message is required")
	}

	if cfg.MaxMessageBytes > 0 && len(req.Message) > cfg.MaxMessageBytes {
		return NewInvalidRequestError("message",
			fmt.Sprintf("message exceeds maximum of %d bytes", cfg.MaxMessageBytes))
	}

	if !utf8.ValidString(req.Message) {
		return NewInvalidRequestError("message", "message must be valid UTF-8")
	}

	if cfg.MaxConversationIDSize > 0 && len(req.ConversationID) > cfg.MaxConversationIDSize {
		return NewInvalidRequestError("conversation_id",
			fmt.Sprintf("conversation_id exceeds maximum of %d bytes", cfg.MaxConversationIDSize))
	}

	if cfg.MaxHistoryMessages > 0 && len(req.History) > cfg.MaxHistoryMessages {
		return NewInvalidRequestError("history",
			fmt.Sprintf("history exceeds maximum of %d messages", cfg.MaxHistoryMessages))
	}

	for i, msg := range req.History {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			return NewInvalidRequestError("history",
				fmt.Sprintf("history[%d]: role must be %q or %q", i, RoleUser, RoleAssistant))
		}
	}

	return nil
}

// HistoryToMessages converts caller-supplied history entries into
// internal messages, one text block per entry. Empty entries are
// dropped.
func HistoryToMessages(history []HistoryMessage) []Message {
	var msgs []Message
	for _, h := range history {
		if h.Content == "" {
			continue
		}
		msgs = append(msgs, Message{
			Role:    h.Role,
			Content: []ContentBlock{NewTextBlock(h.Content)},
		})
	}
	return msgs
}

// ValidateMessage checks a Message for structural validity: a known
// role, and exactly one populated variant field per content block,
// matching the block's type discriminator.
func ValidateMessage(msg *Message) *APIError {
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return NewInvalidRequestError("role",
			fmt.Sprintf("role must be %q or %q", RoleUser, RoleAssistant))
	}

	for i, b := range msg.Content {
		count := 0
		if b.Text != nil {
			count++
		}
		if b.ToolCall != nil {
			count++
		}
		if b.ToolResult != nil {
			count++
		}
		if count != 1 {
			return NewInvalidRequestError("content",
				fmt.Sprintf("content[%d]: exactly one variant field must be populated", i))
		}

		switch b.Type {
		case BlockTypeText:
			if b.Text == nil {
				return NewInvalidRequestError("content",
					fmt.Sprintf("content[%d]: text field required for text block", i))
			}
		case BlockTypeToolCall:
			if b.ToolCall == nil {
				return NewInvalidRequestError("content",
					fmt.Sprintf("content[%d]: tool_call field required for tool_call block", i))
			}
			if msg.Role != RoleAssistant {
				return NewInvalidRequestError("content",
					fmt.Sprintf("content[%d]: tool_call blocks appear only on assistant messages", i))
			}
		case BlockTypeToolResult:
			if b.ToolResult == nil {
				return NewInvalidRequestError("content",
					fmt.Sprintf("content[%d]: tool_result field required for tool_result block", i))
			}
			if msg.Role != RoleUser {
				return NewInvalidRequestError("content",
					fmt.Sprintf("content[%d]: tool_result blocks appear only on user messages", i))
			}
		default:
			return NewInvalidRequestError("content",
				fmt.Sprintf("content[%d]: unknown block type %q", i, b.Type))
		}
	}

	return nil
}
