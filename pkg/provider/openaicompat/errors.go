package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// mapHTTPError converts a non-2xx backend response into an APIError. All
// backend failures surface as upstream errors; the status code only shapes
// the message. The response body is consumed for error details.
func mapHTTPError(resp *http.Response) *api.APIError {
	msg := extractErrorMessage(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return api.NewUpstreamError(fmt.Sprintf("backend rejected credentials (HTTP %d): %s", resp.StatusCode, msg))
	case http.StatusNotFound:
		return api.NewUpstreamError(fmt.Sprintf("backend endpoint or model not found (HTTP %d): %s", resp.StatusCode, msg))
	case http.StatusTooManyRequests:
		return api.NewUpstreamError(fmt.Sprintf("backend rate limited the request (HTTP %d): %s", resp.StatusCode, msg))
	case http.StatusBadRequest:
		return api.NewUpstreamError(fmt.Sprintf("backend rejected the request (HTTP %d): %s", resp.StatusCode, msg))
	default:
		return api.NewUpstreamError(fmt.Sprintf("backend request failed (HTTP %d): %s", resp.StatusCode, msg))
	}
}

// mapNetworkError converts transport-level failures (connection refused,
// timeouts) into an APIError.
func mapNetworkError(err error) *api.APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewUpstreamError("backend request timed out: " + err.Error())
	}
	return api.NewUpstreamError("backend request failed: " + err.Error())
}

// extractErrorMessage pulls a human-readable message out of an error
// response body. It tries the standard {"error": {"message": ...}} shape
// first and falls back to the raw body, capped for log hygiene.
func extractErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "no error details available"
	}

	var er chatErrorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}

	return truncate(strings.TrimSpace(string(data)), 200)
}
