package api

import "fmt"

// ExchangePhase represents the state of one chat exchange as it moves
// through the turn loop.
type ExchangePhase string

const (
	// PhaseAwaitingModel: a provider round trip is in flight.
	PhaseAwaitingModel ExchangePhase = "awaiting_model"
	// PhaseInspectingContent: the completed assistant message is being
	// scanned for tool_call blocks.
	PhaseInspectingContent ExchangePhase = "inspecting_content"
	// PhaseDispatchingTools: tool_call blocks are being dispatched
	// sequentially in receipt order.
	PhaseDispatchingTools ExchangePhase = "dispatching_tools"
	// PhaseDone: terminal. Reached when inspection finds no tool calls,
	// or when the turn budget is exhausted after a dispatch round.
	PhaseDone ExchangePhase = "done"
)

// ValidatePhaseTransition checks whether an exchange phase transition is
// valid. An empty "from" phase represents the initial state before the
// first provider call. PhaseDone is terminal.
func ValidatePhaseTransition(from, to ExchangePhase) *APIError {
	valid := map[ExchangePhase][]ExchangePhase{
		"":                     {PhaseAwaitingModel},
		PhaseAwaitingModel:     {PhaseInspectingContent},
		PhaseInspectingContent: {PhaseDispatchingTools, PhaseDone},
		PhaseDispatchingTools:  {PhaseAwaitingModel, PhaseDone},
	}

	allowed, exists := valid[from]
	if !exists {
		return NewServerError(
			fmt.Sprintf("invalid exchange phase transition from %s to %s", from, to))
	}

	for _, p := range allowed {
		if p == to {
			return nil
		}
	}

	return NewServerError(
		fmt.Sprintf("invalid exchange phase transition from %s to %s", from, to))
}
