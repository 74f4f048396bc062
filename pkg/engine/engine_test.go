package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/provider"
	"github.com/dirigent-dev/dirigent/pkg/skills"
	"github.com/dirigent-dev/dirigent/pkg/storage/memory"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

// scriptProvider plays back pre-scripted event sequences, one per Stream
// call, recording every request it receives. When more calls arrive than
// scripts exist, the last script repeats.
type scriptProvider struct {
	mu        sync.Mutex
	turns     [][]provider.Event
	requests  []*provider.Request
	streamErr error
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := *req
	snapshot.Messages = append([]api.Message(nil), req.Messages...)
	snapshot.Tools = append([]api.ToolDefinition(nil), req.Tools...)
	p.requests = append(p.requests, &snapshot)

	if p.streamErr != nil {
		return nil, p.streamErr
	}

	var script []provider.Event
	switch call := len(p.requests) - 1; {
	case call < len(p.turns):
		script = p.turns[call]
	case len(p.turns) > 0:
		script = p.turns[len(p.turns)-1]
	}

	ch := make(chan provider.Event, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (p *scriptProvider) Close() error { return nil }

func (p *scriptProvider) recorded() []*provider.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*provider.Request(nil), p.requests...)
}

// captureSink collects written events. failAt makes the Nth write fail
// (1-based) to simulate a dropped client.
type captureSink struct {
	mu     sync.Mutex
	events []api.Event
	failAt int
}

func (s *captureSink) WriteEvent(ctx context.Context, ev api.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.events)+1 >= s.failAt {
		return errors.New("sink closed")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Flush() error { return nil }

func (s *captureSink) Events() []api.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Event(nil), s.events...)
}

// stubSource is a minimal tool source with per-tool display names.
type stubSource struct {
	name    string
	defs    []api.ToolDefinition
	display map[string]string
	handler func(ctx context.Context, call tools.Call) (*tools.Result, error)
}

func (s *stubSource) Name() string                 { return s.name }
func (s *stubSource) Tools() []api.ToolDefinition  { return s.defs }
func (s *stubSource) Close() error                 { return nil }
func (s *stubSource) DisplayName(tool string) string { return s.display[tool] }

func (s *stubSource) CanExecute(name string) bool {
	for _, td := range s.defs {
		if td.Name == name {
			return true
		}
	}
	return false
}

func (s *stubSource) Execute(ctx context.Context, call tools.Call) (*tools.Result, error) {
	return s.handler(ctx, call)
}

func textTurn(text string) []provider.Event {
	block := api.NewTextBlock(text)
	return []provider.Event{
		{Type: provider.EventTextDelta, Delta: text},
		{Type: provider.EventBlockDone, Block: &block},
		{Type: provider.EventDone, Usage: &api.Usage{InputTokens: 7, OutputTokens: 3}},
	}
}

func toolCallTurn(callID, toolName, input string) []provider.Event {
	block := api.NewToolCallBlock(callID, toolName, json.RawMessage(input))
	return []provider.Event{
		{Type: provider.EventBlockDone, Block: &block},
		{Type: provider.EventDone, Usage: &api.Usage{InputTokens: 9, OutputTokens: 5}},
	}
}

func newTestEngine(t *testing.T, prov provider.Provider, cfg Config, opts ...Option) *Engine {
	t.Helper()
	reg := provider.NewRegistry()
	reg.Register(prov, nil, true)
	e, err := New(reg, cfg, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func eventTypes(events []api.Event) []api.EventType {
	types := make([]api.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestRunExchangePlainAnswer(t *testing.T) {
	prov := &scriptProvider{turns: [][]provider.Event{textTurn("4")}}
	e := newTestEngine(t, prov, Config{})
	sink := &captureSink{}

	err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "What is 2+2?"}, sink)
	if err != nil {
		t.Fatalf("RunExchange() error: %v", err)
	}

	events := sink.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events %v, want 2", len(events), eventTypes(events))
	}
	if events[0].Type != api.EventText || events[0].Content != "4" {
		t.Errorf("first event = %+v, want text %q", events[0], "4")
	}
	if events[1].Type != api.EventDone {
		t.Errorf("last event type = %q, want done", events[1].Type)
	}

	requests := prov.recorded()
	if len(requests) != 1 {
		t.Fatalf("provider called %d times, want 1", len(requests))
	}
	req := requests[0]
	if len(req.Messages) != 1 || req.Messages[0].Text() != "What is 2+2?" {
		t.Errorf("provider messages = %+v, want single user message", req.Messages)
	}
	if len(req.Tools) != 0 {
		t.Errorf("provider tools = %v, want none", req.Tools)
	}
	if req.System != "" {
		t.Errorf("provider system = %q, want empty", req.System)
	}
}

func TestRunExchangeValidation(t *testing.T) {
	prov := &scriptProvider{turns: [][]provider.Event{textTurn("hi")}}
	e := newTestEngine(t, prov, Config{})
	sink := &captureSink{}

	err := e.RunExchange(context.Background(), &api.ChatRequest{Message: ""}, sink)

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Fatalf("RunExchange() error = %v, want invalid_request", err)
	}
	if len(sink.Events()) != 0 {
		t.Errorf("events written on validation failure: %v", sink.Events())
	}
	if len(prov.recorded()) != 0 {
		t.Errorf("provider called despite validation failure")
	}
}

func TestRunExchangeToolRoundTrip(t *testing.T) {
	prov := &scriptProvider{turns: [][]provider.Event{
		toolCallTurn("call_1", "subagent_researcher", `{"message":"look up the answer"}`),
		textTurn("the answer is 42"),
	}}

	var got tools.Call
	src := &stubSource{
		name: "collaborators",
		defs: []api.ToolDefinition{{Name: "subagent_researcher", Description: "delegate"}},
		display: map[string]string{"subagent_researcher": "researcher"},
		handler: func(ctx context.Context, call tools.Call) (*tools.Result, error) {
			got = call
			return &tools.Result{CallID: call.ID, Content: "42"}, nil
		},
	}

	e := newTestEngine(t, prov, Config{}, WithToolSource(src))
	sink := &captureSink{}

	if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "find it"}, sink); err != nil {
		t.Fatalf("RunExchange() error: %v", err)
	}

	events := sink.Events()
	wantTypes := []api.EventType{api.EventToolCall, api.EventToolResult, api.EventText, api.EventDone}
	if len(events) != len(wantTypes) {
		t.Fatalf("got events %v, want types %v", eventTypes(events), wantTypes)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Fatalf("event[%d].Type = %q, want %q (all: %v)", i, events[i].Type, want, eventTypes(events))
		}
	}
	if events[0].Tool != "subagent_researcher" || events[0].AgentName != "researcher" {
		t.Errorf("tool_call event = %+v, want tool/agentName set", events[0])
	}
	if events[0].Input != "look up the answer" {
		t.Errorf("tool_call input = %q, want extracted instruction", events[0].Input)
	}
	if events[1].Content != "42" {
		t.Errorf("tool_result content = %q, want %q", events[1].Content, "42")
	}

	if got.ID != "call_1" || got.Name != "subagent_researcher" {
		t.Errorf("executed call = %+v", got)
	}

	requests := prov.recorded()
	if len(requests) != 2 {
		t.Fatalf("provider called %d times, want 2", len(requests))
	}
	msgs := requests[1].Messages
	if len(msgs) != 3 {
		t.Fatalf("second turn carries %d messages, want 3 (user, assistant, results)", len(msgs))
	}
	if calls := msgs[1].ToolCalls(); len(calls) != 1 || calls[0].ID != "call_1" {
		t.Errorf("assistant message tool calls = %+v", calls)
	}
	last := msgs[2]
	if last.Role != api.RoleUser || len(last.Content) != 1 || last.Content[0].Type != api.BlockTypeToolResult {
		t.Fatalf("results message = %+v, want one tool_result block on user role", last)
	}
	if tr := last.Content[0].ToolResult; tr.CallID != "call_1" || tr.Content != "42" {
		t.Errorf("tool_result block = %+v", tr)
	}
}

func TestRunExchangeProviderError(t *testing.T) {
	t.Run("stream setup fails", func(t *testing.T) {
		prov := &scriptProvider{streamErr: api.NewUpstreamError("backend returned status 500")}
		e := newTestEngine(t, prov, Config{})
		sink := &captureSink{}

		err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "hi"}, sink)
		if err == nil {
			t.Fatal("RunExchange() = nil, want error")
		}

		events := sink.Events()
		if len(events) != 1 || events[0].Type != api.EventError {
			t.Fatalf("got events %v, want single error event", eventTypes(events))
		}
		if events[0].Message != "backend returned status 500" {
			t.Errorf("error message = %q", events[0].Message)
		}
	})

	t.Run("mid-stream error after text", func(t *testing.T) {
		prov := &scriptProvider{turns: [][]provider.Event{{
			{Type: provider.EventTextDelta, Delta: "partial"},
			{Type: provider.EventError, Err: api.NewUpstreamError("connection reset")},
		}}}
		e := newTestEngine(t, prov, Config{})
		sink := &captureSink{}

		if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "hi"}, sink); err == nil {
			t.Fatal("RunExchange() = nil, want error")
		}

		events := sink.Events()
		want := []api.EventType{api.EventText, api.EventError}
		if len(events) != 2 || events[0].Type != want[0] || events[1].Type != want[1] {
			t.Fatalf("got events %v, want %v", eventTypes(events), want)
		}
		for _, ev := range events {
			if ev.Type == api.EventDone {
				t.Error("done event emitted after fatal error")
			}
		}
	})
}

func TestRunExchangeSkillsPreamble(t *testing.T) {
	t.Run("enabled bundle advertised", func(t *testing.T) {
		catalog := skills.NewCatalog([]skills.Bundle{
			{Name: "notes", Description: "note taking", Content: "full notes instructions", Enabled: true},
		})
		prov := &scriptProvider{turns: [][]provider.Event{textTurn("ok")}}
		e := newTestEngine(t, prov, Config{}, WithSkills(catalog))
		sink := &captureSink{}

		if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "hi"}, sink); err != nil {
			t.Fatalf("RunExchange() error: %v", err)
		}

		req := prov.recorded()[0]
		if !strings.Contains(req.System, "notes") {
			t.Errorf("system preamble %q does not mention the bundle", req.System)
		}
		var hasReadSkill bool
		for _, td := range req.Tools {
			if td.Name == skills.ToolName {
				hasReadSkill = true
			}
		}
		if !hasReadSkill {
			t.Errorf("tools %v missing %s", req.Tools, skills.ToolName)
		}
	})

	t.Run("no enabled bundles leaves request bare", func(t *testing.T) {
		catalog := skills.NewCatalog([]skills.Bundle{
			{Name: "notes", Content: "unused", Enabled: false},
		})
		prov := &scriptProvider{turns: [][]provider.Event{textTurn("ok")}}
		e := newTestEngine(t, prov, Config{}, WithSkills(catalog))
		sink := &captureSink{}

		if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "hi"}, sink); err != nil {
			t.Fatalf("RunExchange() error: %v", err)
		}

		req := prov.recorded()[0]
		if req.System != "" {
			t.Errorf("system = %q, want empty without enabled bundles", req.System)
		}
		if len(req.Tools) != 0 {
			t.Errorf("tools = %v, want none", req.Tools)
		}
	})
}

func TestRunExchangeTranscript(t *testing.T) {
	t.Run("appends and replays across exchanges", func(t *testing.T) {
		store := memory.New(0)
		prov := &scriptProvider{turns: [][]provider.Event{textTurn("blue")}}
		e := newTestEngine(t, prov, Config{}, WithStore(store))

		req := &api.ChatRequest{Message: "favorite color?", ConversationID: "conv_history"}
		if err := e.RunExchange(context.Background(), req, &captureSink{}); err != nil {
			t.Fatalf("first exchange: %v", err)
		}

		stored, err := store.Transcript(context.Background(), "conv_history")
		if err != nil {
			t.Fatalf("Transcript() error: %v", err)
		}
		if len(stored) != 2 || stored[0].Role != api.RoleUser || stored[1].Role != api.RoleAssistant {
			t.Fatalf("stored transcript = %+v, want user+assistant pair", stored)
		}
		if stored[1].Text() != "blue" {
			t.Errorf("stored assistant text = %q, want %q", stored[1].Text(), "blue")
		}

		req2 := &api.ChatRequest{Message: "why that one?", ConversationID: "conv_history"}
		if err := e.RunExchange(context.Background(), req2, &captureSink{}); err != nil {
			t.Fatalf("second exchange: %v", err)
		}

		requests := prov.recorded()
		msgs := requests[len(requests)-1].Messages
		if len(msgs) != 3 {
			t.Fatalf("second exchange carries %d messages, want replayed pair plus new user", len(msgs))
		}
		if msgs[0].Text() != "favorite color?" || msgs[1].Text() != "blue" || msgs[2].Text() != "why that one?" {
			t.Errorf("replayed context = %+v", msgs)
		}
	})

	t.Run("explicit history wins over stored transcript", func(t *testing.T) {
		store := memory.New(0)
		if err := store.AppendMessages(context.Background(), "conv_explicit", 0,
			api.NewUserText("stored question"), api.NewAssistantText("stored answer")); err != nil {
			t.Fatalf("seed store: %v", err)
		}

		prov := &scriptProvider{turns: [][]provider.Event{textTurn("fresh")}}
		e := newTestEngine(t, prov, Config{}, WithStore(store))

		req := &api.ChatRequest{
			Message:        "continue",
			ConversationID: "conv_explicit",
			History: []api.HistoryMessage{
				{Role: api.RoleUser, Content: "inline question"},
				{Role: api.RoleAssistant, Content: "inline answer"},
			},
		}
		if err := e.RunExchange(context.Background(), req, &captureSink{}); err != nil {
			t.Fatalf("RunExchange() error: %v", err)
		}

		msgs := prov.recorded()[0].Messages
		if len(msgs) != 3 {
			t.Fatalf("got %d messages, want inline pair plus user", len(msgs))
		}
		if msgs[0].Text() != "inline question" || msgs[1].Text() != "inline answer" {
			t.Errorf("request context = %+v, want inline history", msgs)
		}
	})

	t.Run("no conversation id stays stateless", func(t *testing.T) {
		store := memory.New(0)
		prov := &scriptProvider{turns: [][]provider.Event{textTurn("ok")}}
		e := newTestEngine(t, prov, Config{}, WithStore(store))

		if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "hi"}, &captureSink{}); err != nil {
			t.Fatalf("RunExchange() error: %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("store holds %d conversations, want 0", store.Len())
		}
	})
}

func TestNewRequiresProviders(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("New(nil) = nil error, want failure")
	}
}
