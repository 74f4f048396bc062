package engine

import (
	"encoding/json"
	"errors"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// instructionFromInput extracts the human-readable instruction carried
// by a tool call, for display on the progress stream. Collaborator tools
// wrap the instruction in a "message" field; anything else is shown as
// its raw JSON input.
func instructionFromInput(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var probe struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(input, &probe); err == nil && probe.Message != "" {
		return probe.Message
	}
	return string(input)
}

// errorText renders an error for the progress stream, preferring the
// structured API error message over Go error formatting.
func errorText(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
