package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/provider"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

func TestTurnBudgetExhaustion(t *testing.T) {
	// The model keeps asking for the same tool forever; the loop must
	// stop at the budget and end the stream with done, not an error.
	prov := &scriptProvider{turns: [][]provider.Event{
		toolCallTurn("call_loop", "ping", `{}`),
	}}
	src := &stubSource{
		name: "pinger",
		defs: []api.ToolDefinition{{Name: "ping"}},
		handler: func(ctx context.Context, call tools.Call) (*tools.Result, error) {
			return &tools.Result{CallID: call.ID, Content: "pong"}, nil
		},
	}
	e := newTestEngine(t, prov, Config{MaxTurns: 3}, WithToolSource(src))
	sink := &captureSink{}

	if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "go"}, sink); err != nil {
		t.Fatalf("RunExchange() error: %v", err)
	}

	if got := len(prov.recorded()); got != 3 {
		t.Errorf("provider called %d times, want exactly the budget of 3", got)
	}

	events := sink.Events()
	if len(events) == 0 || events[len(events)-1].Type != api.EventDone {
		t.Fatalf("stream must end with done, got %v", eventTypes(events))
	}
	var calls, results int
	for _, ev := range events {
		switch ev.Type {
		case api.EventToolCall:
			calls++
		case api.EventToolResult:
			results++
		case api.EventError:
			t.Errorf("budget exhaustion emitted an error event")
		}
	}
	if calls != 3 || results != 3 {
		t.Errorf("got %d tool_call / %d tool_result events, want 3/3", calls, results)
	}
}

func TestDefaultTurnBudget(t *testing.T) {
	prov := &scriptProvider{turns: [][]provider.Event{
		toolCallTurn("call_loop", "ping", `{}`),
	}}
	src := &stubSource{
		name: "pinger",
		defs: []api.ToolDefinition{{Name: "ping"}},
		handler: func(ctx context.Context, call tools.Call) (*tools.Result, error) {
			return &tools.Result{CallID: call.ID, Content: "pong"}, nil
		},
	}
	e := newTestEngine(t, prov, Config{}, WithToolSource(src))

	if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "go"}, &captureSink{}); err != nil {
		t.Fatalf("RunExchange() error: %v", err)
	}
	if got := len(prov.recorded()); got != 10 {
		t.Errorf("provider called %d times, want default budget of 10", got)
	}
}

func TestDispatchOrderAndFailureIsolation(t *testing.T) {
	// One assistant turn with three calls: a healthy tool, a tool no
	// source owns, and a tool whose source fails. Every call must still
	// produce exactly one result, in request order, and the loop must
	// continue to the next turn.
	input := `{"message":"task"}`
	var turn []provider.Event
	for _, call := range []struct{ id, name string }{
		{"call_a", "ok_tool"},
		{"call_b", "subagent_x"},
		{"call_c", "broken_tool"},
	} {
		block := api.NewToolCallBlock(call.id, call.name, []byte(input))
		turn = append(turn, provider.Event{Type: provider.EventBlockDone, Block: &block})
	}
	turn = append(turn, provider.Event{Type: provider.EventDone})

	prov := &scriptProvider{turns: [][]provider.Event{turn, textTurn("all handled")}}

	src := &stubSource{
		name: "mixed",
		defs: []api.ToolDefinition{{Name: "ok_tool"}, {Name: "broken_tool"}},
		handler: func(ctx context.Context, call tools.Call) (*tools.Result, error) {
			if call.Name == "broken_tool" {
				return nil, errors.New("backend unreachable")
			}
			return &tools.Result{CallID: call.ID, Content: "fine"}, nil
		},
	}

	e := newTestEngine(t, prov, Config{}, WithToolSource(src))
	sink := &captureSink{}

	if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "do all three"}, sink); err != nil {
		t.Fatalf("RunExchange() error: %v", err)
	}

	requests := prov.recorded()
	if len(requests) != 2 {
		t.Fatalf("provider called %d times, want 2 (loop must survive tool failures)", len(requests))
	}

	resultsMsg := requests[1].Messages[len(requests[1].Messages)-1]
	if resultsMsg.Role != api.RoleUser {
		t.Fatalf("results message role = %q, want user", resultsMsg.Role)
	}
	if len(resultsMsg.Content) != 3 {
		t.Fatalf("results message has %d blocks, want one per call", len(resultsMsg.Content))
	}
	wantIDs := []string{"call_a", "call_b", "call_c"}
	for i, block := range resultsMsg.Content {
		if block.Type != api.BlockTypeToolResult {
			t.Fatalf("block[%d] type = %q, want tool_result", i, block.Type)
		}
		if block.ToolResult.CallID != wantIDs[i] {
			t.Errorf("block[%d] call ID = %q, want %q (order must match the request)", i, block.ToolResult.CallID, wantIDs[i])
		}
	}
	if got := resultsMsg.Content[1].ToolResult.Content; got != "tool not found: subagent_x" {
		t.Errorf("unknown tool result = %q", got)
	}
	if got := resultsMsg.Content[2].ToolResult.Content; got != "backend unreachable" {
		t.Errorf("failed tool result = %q, want the error text", got)
	}

	var resultEvents []api.Event
	for _, ev := range sink.Events() {
		if ev.Type == api.EventToolResult {
			resultEvents = append(resultEvents, ev)
		}
	}
	if len(resultEvents) != 3 {
		t.Fatalf("got %d tool_result events, want 3", len(resultEvents))
	}
	if !strings.Contains(resultEvents[1].Content, "tool not found") {
		t.Errorf("second tool_result event = %+v", resultEvents[1])
	}
}

func TestSinkFailureAbortsExchange(t *testing.T) {
	prov := &scriptProvider{turns: [][]provider.Event{textTurn("long answer")}}
	e := newTestEngine(t, prov, Config{})
	sink := &captureSink{failAt: 1}

	if err := e.RunExchange(context.Background(), &api.ChatRequest{Message: "hi"}, sink); err == nil {
		t.Fatal("RunExchange() = nil, want error when the sink is gone")
	}
}

func TestContextCancelledBeforeTurn(t *testing.T) {
	prov := &scriptProvider{turns: [][]provider.Event{textTurn("never")}}
	e := newTestEngine(t, prov, Config{})
	sink := &captureSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.RunExchange(ctx, &api.ChatRequest{Message: "hi"}, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunExchange() error = %v, want context.Canceled", err)
	}
	if len(prov.recorded()) != 0 {
		t.Errorf("provider called despite cancelled context")
	}
}

func TestExchangeStateTransitions(t *testing.T) {
	state := &exchangeState{}
	sequence := []api.ExchangePhase{
		api.PhaseAwaitingModel,
		api.PhaseInspectingContent,
		api.PhaseDispatchingTools,
		api.PhaseAwaitingModel,
		api.PhaseInspectingContent,
		api.PhaseDone,
	}
	for _, next := range sequence {
		if err := state.to(next); err != nil {
			t.Fatalf("transition to %q failed: %v", next, err)
		}
	}

	fresh := &exchangeState{}
	if err := fresh.to(api.PhaseDispatchingTools); err == nil {
		t.Error("transition from start to dispatching_tools must fail")
	}
}
