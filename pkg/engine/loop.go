package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/observability"
	"github.com/dirigent-dev/dirigent/pkg/provider"
	"github.com/dirigent-dev/dirigent/pkg/tools"
	"github.com/dirigent-dev/dirigent/pkg/tools/registry"
	"github.com/dirigent-dev/dirigent/pkg/transport"
)

// loopResult summarizes a completed turn loop.
type loopResult struct {
	turns     int
	finalText string
}

// exchangeState tracks the exchange phase machine across the loop.
// Transitions are validated so control-flow bugs surface as server
// errors instead of silent protocol corruption.
type exchangeState struct {
	phase api.ExchangePhase
}

func (s *exchangeState) to(next api.ExchangePhase) error {
	if err := api.ValidatePhaseTransition(s.phase, next); err != nil {
		return err
	}
	s.phase = next
	return nil
}

// runLoop drives the exchange: stream a model turn, inspect it for tool
// calls, dispatch them, feed the results back. The loop ends when the
// model answers without tool calls or the turn budget is spent; both
// paths emit a final done event. A fatal upstream error instead emits a
// single error event and no done.
func (e *Engine) runLoop(ctx context.Context, prov provider.Provider, model string, messages []api.Message, reg *registry.Registry, sink transport.EventSink) (*loopResult, error) {
	var system string
	if e.catalog != nil {
		system = e.catalog.Preamble()
	}
	toolDefs := reg.Tools()

	state := &exchangeState{}
	result := &loopResult{}

	for turn := 0; turn < e.cfg.maxTurns(); turn++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := state.to(api.PhaseAwaitingModel); err != nil {
			return result, err
		}

		assistant, err := e.streamTurn(ctx, prov, &provider.Request{
			Model:     model,
			System:    system,
			Messages:  messages,
			Tools:     toolDefs,
			MaxTokens: e.cfg.MaxTokens,
		}, sink)
		if err != nil {
			return result, e.failExchange(sink, err)
		}
		result.turns = turn + 1
		result.finalText = assistant.Text()
		messages = append(messages, assistant)

		if err := state.to(api.PhaseInspectingContent); err != nil {
			return result, err
		}
		calls := assistant.ToolCalls()
		if len(calls) == 0 {
			if err := state.to(api.PhaseDone); err != nil {
				return result, err
			}
			return result, sink.WriteEvent(ctx, api.NewDoneEvent())
		}

		if err := state.to(api.PhaseDispatchingTools); err != nil {
			return result, err
		}
		results, err := e.dispatchTools(ctx, reg, calls, sink)
		if err != nil {
			return result, err
		}
		messages = append(messages, api.Message{Role: api.RoleUser, Content: results})
	}

	// Turn budget spent: end the exchange quietly with whatever text the
	// model produced so far.
	slog.Debug("turn budget exhausted", "turns", result.turns, "model", model)
	if err := state.to(api.PhaseDone); err != nil {
		return result, err
	}
	return result, sink.WriteEvent(ctx, api.NewDoneEvent())
}

// streamTurn performs one provider round trip, forwarding text deltas to
// the sink the moment they arrive and assembling the assistant message
// from completed blocks.
func (e *Engine) streamTurn(ctx context.Context, prov provider.Provider, req *provider.Request, sink transport.EventSink) (api.Message, error) {
	start := time.Now()
	fail := func(err error) (api.Message, error) {
		observability.RecordProviderTurn(prov.Name(), req.Model, time.Since(start).Seconds(), 0, 0, true)
		return api.Message{}, err
	}

	events, err := prov.Stream(ctx, req)
	if err != nil {
		return fail(err)
	}

	var blocks []api.ContentBlock
	var usage *api.Usage
	for ev := range events {
		switch ev.Type {
		case provider.EventTextDelta:
			if err := sink.WriteEvent(ctx, api.NewTextEvent(ev.Delta)); err != nil {
				return fail(err)
			}
		case provider.EventBlockDone:
			if ev.Block != nil {
				blocks = append(blocks, *ev.Block)
			}
		case provider.EventDone:
			usage = ev.Usage
		case provider.EventError:
			return fail(ev.Err)
		}
	}

	var inputTokens, outputTokens int
	if usage != nil {
		inputTokens, outputTokens = usage.InputTokens, usage.OutputTokens
	}
	observability.RecordProviderTurn(prov.Name(), req.Model, time.Since(start).Seconds(), inputTokens, outputTokens, false)

	return api.Message{Role: api.RoleAssistant, Content: blocks}, nil
}

// dispatchTools executes the assistant's tool calls one at a time, in
// the order they appeared, announcing each call and its outcome on the
// event stream. Execution failures become error-text results so the
// model can react to them; only sink failures abort the exchange.
func (e *Engine) dispatchTools(ctx context.Context, reg *registry.Registry, calls []api.ToolCallData, sink transport.EventSink) ([]api.ContentBlock, error) {
	blocks := make([]api.ContentBlock, 0, len(calls))

	for _, call := range calls {
		ev := api.NewToolCallEvent(call.ToolName, reg.DisplayName(call.ToolName), instructionFromInput(call.Input))
		if err := sink.WriteEvent(ctx, ev); err != nil {
			return nil, err
		}

		res, err := reg.Execute(ctx, tools.Call{ID: call.ID, Name: call.ToolName, Input: call.Input})
		if err != nil {
			slog.Warn("tool execution failed",
				"tool", call.ToolName,
				"call_id", call.ID,
				"error", err,
			)
			res = &tools.Result{CallID: call.ID, Content: err.Error(), IsError: true}
		}

		if err := sink.WriteEvent(ctx, api.NewToolResultEvent(call.ToolName, res.Content)); err != nil {
			return nil, err
		}

		blocks = append(blocks, api.NewToolResultBlock(call.ID, res.Content))
	}

	return blocks, nil
}

// failExchange surfaces a fatal exchange error on the event stream: a
// single error event, never followed by done. The original error is
// returned so transports that have not started streaming can still map
// it to a status code.
func (e *Engine) failExchange(sink transport.EventSink, cause error) error {
	if writeErr := sink.WriteEvent(context.Background(), api.NewErrorEvent(errorText(cause))); writeErr != nil {
		slog.Debug("error event not delivered", "error", writeErr)
	}
	return cause
}
