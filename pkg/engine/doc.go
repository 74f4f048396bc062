// Package engine implements the turn loop at the core of dirigent: it
// streams model output, inspects each completed assistant message for
// tool calls, dispatches them through the tool registry, and feeds the
// results back to the model until it answers in plain text or the turn
// budget runs out.
//
// The engine satisfies the transport.ExchangeRunner contract and is
// transport-agnostic: progress events go to whatever EventSink the
// caller provides.
package engine
