package anthropic

import (
	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/provider"
)

// translateToMessages converts a provider request into the body for
// POST /v1/messages. The Messages API requires max_tokens, so a default is
// applied when the request leaves it unset.
func translateToMessages(req *provider.Request) messagesRequest {
	mr := messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Stream:    true,
	}
	if mr.MaxTokens <= 0 {
		mr.MaxTokens = defaultMaxTokens
	}

	for _, m := range req.Messages {
		am := anthropicMessage{Role: string(m.Role)}
		for _, b := range m.Content {
			am.Content = append(am.Content, translateBlock(b))
		}
		// The API rejects messages with no content blocks.
		if len(am.Content) > 0 {
			mr.Messages = append(mr.Messages, am)
		}
	}

	for _, t := range req.Tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = []byte(`{"type":"object"}`)
		}
		mr.Tools = append(mr.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	return mr
}

// translateBlock maps one content block onto its wire form. The block
// kinds line up one to one: text, tool_use, tool_result.
func translateBlock(b api.ContentBlock) anthropicBlock {
	switch b.Type {
	case api.BlockTypeToolCall:
		input := b.ToolCall.Input
		if len(input) == 0 {
			input = []byte("{}")
		}
		return anthropicBlock{
			Type:  "tool_use",
			ID:    b.ToolCall.ID,
			Name:  b.ToolCall.ToolName,
			Input: input,
		}
	case api.BlockTypeToolResult:
		return anthropicBlock{
			Type:      "tool_result",
			ToolUseID: b.ToolResult.CallID,
			Content:   b.ToolResult.Content,
		}
	default:
		return anthropicBlock{
			Type: "text",
			Text: b.Text.Text,
		}
	}
}
