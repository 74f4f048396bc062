package openaicompat

import (
	"strings"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/provider"
)

// translateToChat converts a provider request into the body for
// POST /v1/chat/completions. Streaming is always enabled; the final chunk
// carries usage via stream_options.
func translateToChat(req *provider.Request) chatCompletionRequest {
	cr := chatCompletionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Stream:    true,
		StreamOptions: &chatStreamOptions{
			IncludeUsage: true,
		},
	}

	// The system prompt travels as a leading system message.
	if req.System != "" {
		cr.Messages = append(cr.Messages, chatMessage{
			Role:    "system",
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		cr.Messages = append(cr.Messages, translateMessage(m)...)
	}

	for _, t := range req.Tools {
		cr.Tools = append(cr.Tools, chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	return cr
}

// translateMessage maps one conversation message onto its Chat Completions
// representation. An assistant message folds its text blocks into content
// and its tool-call blocks into the tool_calls array. A user message
// carrying tool results becomes one role:"tool" message per result, with
// any text blocks kept in order as separate user messages.
func translateMessage(m api.Message) []chatMessage {
	if m.Role == api.RoleAssistant {
		cm := chatMessage{Role: "assistant"}
		var text strings.Builder
		for _, b := range m.Content {
			switch b.Type {
			case api.BlockTypeText:
				text.WriteString(b.Text.Text)
			case api.BlockTypeToolCall:
				cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
					ID:   b.ToolCall.ID,
					Type: "function",
					Function: chatFunctionCall{
						Name:      b.ToolCall.ToolName,
						Arguments: argumentsJSON(b.ToolCall.Input),
					},
				})
			}
		}
		cm.Content = text.String()
		return []chatMessage{cm}
	}

	var out []chatMessage
	var text strings.Builder
	flushText := func() {
		if text.Len() > 0 {
			out = append(out, chatMessage{Role: "user", Content: text.String()})
			text.Reset()
		}
	}
	for _, b := range m.Content {
		switch b.Type {
		case api.BlockTypeText:
			text.WriteString(b.Text.Text)
		case api.BlockTypeToolResult:
			flushText()
			out = append(out, chatMessage{
				Role:       "tool",
				Content:    b.ToolResult.Content,
				ToolCallID: b.ToolResult.CallID,
			})
		}
	}
	flushText()
	return out
}

// argumentsJSON renders tool-call input as the arguments string the wire
// format expects, substituting an empty object for absent input.
func argumentsJSON(input []byte) string {
	if len(input) == 0 {
		return "{}"
	}
	return string(input)
}
