package api

import (
	"encoding/json"
	"testing"
)

func TestAPIErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "with param",
			err:  NewInvalidRequestError("message", "message is required"),
			want: "invalid_request: message is required (param: message)",
		},
		{
			name: "without param",
			err:  NewUpstreamError("backend returned status 500"),
			want: "upstream_error: backend returned status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructorTypes(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want ErrorType
	}{
		{"invalid request", NewInvalidRequestError("p", "m"), ErrorTypeInvalidRequest},
		{"not found", NewNotFoundError("m"), ErrorTypeNotFound},
		{"server", NewServerError("m"), ErrorTypeServerError},
		{"upstream", NewUpstreamError("m"), ErrorTypeUpstreamError},
		{"unauthorized", NewUnauthorizedError("m"), ErrorTypeUnauthorized},
		{"too many requests", NewTooManyRequestsError("m"), ErrorTypeTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.want {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.want)
			}
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := ErrorResponse{Error: NewNotFoundError("conversation conv-1 not found")}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"error":{"type":"not_found","message":"conversation conv-1 not found"}}`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}
}
