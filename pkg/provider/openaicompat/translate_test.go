package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/provider"
)

func TestTranslateToChat_Basic(t *testing.T) {
	req := &provider.Request{
		Model:  "gpt-4",
		System: "You are a helpful assistant.",
		Messages: []api.Message{
			api.NewUserText("What is the weather in Paris?"),
		},
		Tools: []api.ToolDefinition{
			{
				Name:        "get_weather",
				Description: "Current weather for a city.",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`),
			},
		},
		MaxTokens: 1024,
	}

	cr := translateToChat(req)

	if cr.Model != "gpt-4" {
		t.Errorf("model = %q, want %q", cr.Model, "gpt-4")
	}
	if !cr.Stream {
		t.Error("stream = false, want true")
	}
	if cr.StreamOptions == nil || !cr.StreamOptions.IncludeUsage {
		t.Error("stream_options.include_usage not set")
	}
	if cr.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want 1024", cr.MaxTokens)
	}

	assertRoles(t, cr.Messages, []string{"system", "user"})
	if cr.Messages[0].Content != "You are a helpful assistant." {
		t.Errorf("system content = %q", cr.Messages[0].Content)
	}
	if cr.Messages[1].Content != "What is the weather in Paris?" {
		t.Errorf("user content = %q", cr.Messages[1].Content)
	}

	if len(cr.Tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(cr.Tools))
	}
	tool := cr.Tools[0]
	if tool.Type != "function" {
		t.Errorf("tool type = %q, want %q", tool.Type, "function")
	}
	if tool.Function.Name != "get_weather" {
		t.Errorf("tool name = %q, want %q", tool.Function.Name, "get_weather")
	}
	if tool.Function.Description != "Current weather for a city." {
		t.Errorf("tool description = %q", tool.Function.Description)
	}
}

func TestTranslateToChat_ToolCallRoundTrip(t *testing.T) {
	// A full agentic turn: user question, assistant text plus tool call,
	// tool result. Roles and text must come out in the same order.
	req := &provider.Request{
		Model: "gpt-4",
		Messages: []api.Message{
			api.NewUserText("Weather in Paris?"),
			{
				Role: api.RoleAssistant,
				Content: []api.ContentBlock{
					api.NewTextBlock("Let me check."),
					api.NewToolCallBlock("call_1", "get_weather", json.RawMessage(`{"city":"Paris"}`)),
				},
			},
			{
				Role: api.RoleUser,
				Content: []api.ContentBlock{
					api.NewToolResultBlock("call_1", "18C, clear skies"),
				},
			},
		},
	}

	cr := translateToChat(req)

	assertRoles(t, cr.Messages, []string{"user", "assistant", "tool"})

	am := cr.Messages[1]
	if am.Content != "Let me check." {
		t.Errorf("assistant content = %q, want %q", am.Content, "Let me check.")
	}
	if len(am.ToolCalls) != 1 {
		t.Fatalf("assistant tool calls = %d, want 1", len(am.ToolCalls))
	}
	tc := am.ToolCalls[0]
	if tc.ID != "call_1" || tc.Type != "function" || tc.Function.Name != "get_weather" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("arguments = %q, want %q", tc.Function.Arguments, `{"city":"Paris"}`)
	}

	tm := cr.Messages[2]
	if tm.ToolCallID != "call_1" {
		t.Errorf("tool_call_id = %q, want %q", tm.ToolCallID, "call_1")
	}
	if tm.Content != "18C, clear skies" {
		t.Errorf("tool content = %q, want %q", tm.Content, "18C, clear skies")
	}
}

func TestTranslateMessage_InterleavedUserContent(t *testing.T) {
	m := api.Message{
		Role: api.RoleUser,
		Content: []api.ContentBlock{
			api.NewTextBlock("Some context first."),
			api.NewToolResultBlock("call_1", "result one"),
			api.NewToolResultBlock("call_2", "result two"),
			api.NewTextBlock("And a follow-up."),
		},
	}

	got := translateMessage(m)

	assertRoles(t, got, []string{"user", "tool", "tool", "user"})
	if got[1].ToolCallID != "call_1" || got[1].Content != "result one" {
		t.Errorf("first result = %+v", got[1])
	}
	if got[2].ToolCallID != "call_2" || got[2].Content != "result two" {
		t.Errorf("second result = %+v", got[2])
	}
	if got[3].Content != "And a follow-up." {
		t.Errorf("trailing text = %q", got[3].Content)
	}
}

func TestTranslateMessage_EmptyToolInput(t *testing.T) {
	m := api.Message{
		Role: api.RoleAssistant,
		Content: []api.ContentBlock{
			{Type: api.BlockTypeToolCall, ToolCall: &api.ToolCallData{ID: "call_1", ToolName: "ping"}},
		},
	}

	got := translateMessage(m)

	if len(got) != 1 || len(got[0].ToolCalls) != 1 {
		t.Fatalf("unexpected translation: %+v", got)
	}
	if got[0].ToolCalls[0].Function.Arguments != "{}" {
		t.Errorf("arguments = %q, want {} for absent input", got[0].ToolCalls[0].Function.Arguments)
	}
}

// assertRoles checks the role sequence of translated messages.
func assertRoles(t *testing.T, msgs []chatMessage, want []string) {
	t.Helper()
	if len(msgs) != len(want) {
		t.Fatalf("message count = %d, want %d: %+v", len(msgs), len(want), msgs)
	}
	for i, w := range want {
		if msgs[i].Role != w {
			t.Errorf("messages[%d].Role = %q, want %q", i, msgs[i].Role, w)
		}
	}
}
