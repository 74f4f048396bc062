package anthropic

import "time"

// defaultMaxTokens is sent when the request does not set a token limit; the
// Messages API rejects requests without one.
const defaultMaxTokens = 4096

// Config holds configuration for the Messages API adapter.
type Config struct {
	// Name identifies this provider instance in logs and the registry.
	// Defaults to "anthropic".
	Name string

	// BaseURL is the backend URL, required. The adapter appends
	// /v1/messages.
	BaseURL string

	// APIKey for backend authentication (optional for local mocks). Sent
	// as the x-api-key header.
	APIKey string

	// Version is the anthropic-version header value. Defaults to
	// "2023-06-01".
	Version string

	// Timeout for individual HTTP requests. Defaults to 120s. Streaming
	// requests ignore it; their lifetime is controlled by the context.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		Name:    "anthropic",
		BaseURL: "https://api.anthropic.com",
		APIKey:  apiKey,
		Version: "2023-06-01",
		Timeout: 120 * time.Second,
	}
}
