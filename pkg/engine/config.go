package engine

import "github.com/dirigent-dev/dirigent/pkg/api"

// Config holds configuration for the exchange engine.
type Config struct {
	// MaxTurns is the maximum number of model turns per exchange before
	// the loop stops. Zero or negative means the default of 10.
	MaxTurns int

	// DefaultModel is substituted when a request does not name a model.
	// Empty leaves model selection to the resolved provider's backend.
	DefaultModel string

	// MaxHistoryMessages caps stored conversation transcripts; oldest
	// messages are dropped in pairs once the cap is exceeded. Zero means
	// the default of 100, negative means unbounded.
	MaxHistoryMessages int

	// MaxTokens is forwarded to providers as the per-turn output token
	// limit. Zero means the provider default.
	MaxTokens int

	// Validation bounds incoming chat requests. The zero value means
	// api.DefaultValidationConfig.
	Validation api.ValidationConfig
}

// maxTurns returns the effective turn budget, defaulting to 10.
func (c Config) maxTurns() int {
	if c.MaxTurns <= 0 {
		return 10
	}
	return c.MaxTurns
}

// maxHistoryMessages returns the effective transcript cap. Zero is
// passed through to the store to mean unbounded.
func (c Config) maxHistoryMessages() int {
	if c.MaxHistoryMessages == 0 {
		return 100
	}
	if c.MaxHistoryMessages < 0 {
		return 0
	}
	return c.MaxHistoryMessages
}

// validation returns the effective request validation bounds.
func (c Config) validation() api.ValidationConfig {
	if c.Validation == (api.ValidationConfig{}) {
		return api.DefaultValidationConfig()
	}
	return c.Validation
}
