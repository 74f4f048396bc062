package transport

import (
	"context"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// ExchangeRunner handles the core chat-exchange operation. The
// implementation receives a validated request and writes the progress
// events produced by the exchange (text fragments, tool dispatches,
// terminal done or error) to the EventSink in the order they occur.
type ExchangeRunner interface {
	RunExchange(ctx context.Context, req *api.ChatRequest, sink EventSink) error
}

// ExchangeRunnerFunc is an adapter that allows using an ordinary function
// as an ExchangeRunner.
type ExchangeRunnerFunc func(ctx context.Context, req *api.ChatRequest, sink EventSink) error

// RunExchange calls f(ctx, req, sink).
func (f ExchangeRunnerFunc) RunExchange(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
	return f(ctx, req, sink)
}

// ConversationStore persists conversation transcripts so that a caller
// can resume a conversation by ID without re-sending history. It is
// optional; when absent, every exchange must carry its own history.
type ConversationStore interface {
	// Transcript returns the stored messages for a conversation in
	// chronological order. Returns storage.ErrNotFound if the
	// conversation has no transcript.
	Transcript(ctx context.Context, conversationID string) ([]api.Message, error)

	// AppendMessages appends messages to a conversation's transcript,
	// creating the transcript if it does not exist. The store trims the
	// oldest messages in pairs once the transcript exceeds maxMessages
	// (zero means unbounded).
	AppendMessages(ctx context.Context, conversationID string, maxMessages int, messages ...api.Message) error

	// DeleteConversation removes a conversation's transcript. Returns
	// storage.ErrNotFound if the conversation has no transcript.
	DeleteConversation(ctx context.Context, conversationID string) error

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}

// EventSink abstracts progress-event delivery for the exchange runner.
// The transport layer creates an EventSink per request and hands it to
// the runner, which calls WriteEvent for every progress event.
//
// Calling WriteEvent after a terminal event (done, or error) returns an
// error; the exchange is over at that point.
type EventSink interface {
	// WriteEvent sends a single progress event. Returns an error if
	// called after a terminal event has been sent.
	WriteEvent(ctx context.Context, event api.Event) error

	// Flush ensures buffered data is sent to the client. Returns an
	// error if the client has disconnected.
	Flush() error
}
