package openaicompat

import "time"

// Config holds configuration for the Chat Completions adapter.
type Config struct {
	// Name identifies this provider instance in logs and the registry.
	// Defaults to "openai-compat".
	Name string

	// BaseURL is the backend URL (e.g., "https://api.openai.com" or
	// "http://localhost:8000"). The adapter appends /v1/chat/completions.
	BaseURL string

	// APIKey for backend authentication (optional). Sent as a Bearer token.
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s. Streaming
	// requests ignore it; their lifetime is controlled by the context.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		Name:    "openai-compat",
		BaseURL: baseURL,
		Timeout: 120 * time.Second,
	}
}
