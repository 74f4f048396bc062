package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/transport"
)

// sinkState tracks the state of an SSE event sink.
type sinkState int

const (
	sinkIdle      sinkState = iota // Initial state, no writes yet
	sinkStreaming                  // WriteEvent has been called at least once
	sinkCompleted                  // Terminal event sent
)

// sseEventSink implements transport.EventSink for HTTP/SSE responses.
// Every progress event becomes one data-only SSE frame:
//
//	data: {json}\n
//	\n
//
// flushed to the client immediately. There is no event-name line and no
// end-of-stream sentinel; the done or error event is the last frame.
type sseEventSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state sinkState
}

var _ transport.EventSink = (*sseEventSink)(nil)

// newSSEEventSink creates an EventSink wrapping an http.ResponseWriter.
func newSSEEventSink(w http.ResponseWriter) *sseEventSink {
	return &sseEventSink{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent sends a single progress event as an SSE data frame. The
// first call sets the SSE response headers; a call after a terminal
// event returns an error.
func (s *sseEventSink) WriteEvent(ctx context.Context, event api.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == sinkCompleted {
		return errors.New("cannot write event: stream is completed")
	}

	// First event: set SSE headers.
	if s.state == sinkIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.state = sinkStreaming
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	// Flush immediately so the client sees each event as it happens.
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if event.Terminal() {
		s.state = sinkCompleted
	}

	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseEventSink) Flush() error {
	return s.rc.Flush()
}

// hasStartedStreaming returns true if at least one event has been written.
// The adapter uses this to decide between a JSON error response and an
// in-stream error event when an exchange fails.
func (s *sseEventSink) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != sinkIdle
}
