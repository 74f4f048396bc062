// Package transport defines the handler interfaces and middleware chain for
// the dirigent HTTP/SSE transport layer.
//
// The transport layer bridges external clients and dirigent's turn loop
// engine. It deserializes incoming chat requests into the core types
// defined in pkg/api, dispatches them for processing, and relays the
// resulting progress events back to the client as a server-sent event
// stream.
//
// # Handler Interfaces
//
// Two handler interfaces define the contract between the transport layer
// and the engine:
//
//   - ExchangeRunner drives one chat exchange, writing progress events
//     to an EventSink as the turn loop advances.
//   - ConversationStore persists conversation transcripts for callers
//     that resume conversations by ID instead of re-sending history.
//
// The EventSink interface abstracts event delivery, allowing the runner
// to emit progress events without knowing the underlying transport
// protocol.
//
// # Middleware
//
// The middleware chain wraps ExchangeRunner with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. Custom middleware
// can be added for application-specific concerns.
package transport
