package provider

import "context"

// Provider abstracts a streaming LLM inference backend. The interface is
// protocol-agnostic: each adapter handles its own backend protocol
// internally and surfaces the shared Event vocabulary.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai-compat").
	Name() string

	// Stream performs one streaming round trip. The returned channel
	// receives Event values and is closed by the provider when the
	// stream completes or errors. Text fragments are forwarded the
	// moment they arrive; completed content blocks follow in upstream
	// order; the final event is either Done or Error.
	//
	// A non-2xx backend response is reported as an error return (before
	// any channel is created) so the caller can fail the exchange
	// without consuming a stream.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
