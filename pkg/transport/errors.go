package transport

import (
	"encoding/json"
	"net/http"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// errorStatus maps API error types to HTTP status codes. Types without
// an entry report as 500; transport-level failures (oversized body,
// wrong content type, bad method) never reach this table because the
// HTTP adapter rejects them before an APIError exists.
var errorStatus = map[api.ErrorType]int{
	api.ErrorTypeInvalidRequest:  http.StatusBadRequest,
	api.ErrorTypeUnauthorized:    http.StatusUnauthorized,
	api.ErrorTypeNotFound:        http.StatusNotFound,
	api.ErrorTypeTooManyRequests: http.StatusTooManyRequests,
	api.ErrorTypeUpstreamError:   http.StatusBadGateway,
	api.ErrorTypeServerError:     http.StatusInternalServerError,
}

// HTTPStatusFromError returns the HTTP status code for an APIError.
func HTTPStatusFromError(err *api.APIError) int {
	if status, ok := errorStatus[err.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse encodes apiErr in the ErrorResponse envelope with
// the given status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError encodes apiErr with the status code implied by its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}
