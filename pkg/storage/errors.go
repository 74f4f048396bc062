package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a conversation has no stored transcript.
	ErrNotFound = errors.New("conversation not found")

	// ErrConflict is returned when a conversation ID is already in use
	// by another tenant.
	ErrConflict = errors.New("conversation id already in use")
)
