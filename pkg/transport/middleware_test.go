package transport

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// recordingSink is a minimal EventSink for testing middleware.
type recordingSink struct {
	events  []api.Event
	flushed bool
}

func (s *recordingSink) WriteEvent(_ context.Context, event api.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Flush() error {
	s.flushed = true
	return nil
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next ExchangeRunner) ExchangeRunner {
			return ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
				order = append(order, name+":before")
				err := next.RunExchange(ctx, req, sink)
				order = append(order, name+":after")
				return err
			})
		}
	}

	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		order = append(order, "handler")
		return nil
	})

	chain := Chain(mw("first"), mw("second"), mw("third"))
	wrapped := chain(handler)

	wrapped.RunExchange(context.Background(), &api.ChatRequest{}, &recordingSink{})

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}

	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		panic("test panic")
	})

	wrapped := Recovery()(handler)
	err := wrapped.RunExchange(context.Background(), &api.ChatRequest{}, &recordingSink{})

	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}

	apiErr, ok := err.(*api.APIError)
	if !ok {
		t.Fatalf("expected *api.APIError, got %T: %v", err, err)
	}
	if apiErr.Type != api.ErrorTypeServerError {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeServerError)
	}
	if !strings.Contains(apiErr.Message, "test panic") {
		t.Errorf("error message = %q, should contain %q", apiErr.Message, "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		return nil
	})

	wrapped := Recovery()(handler)
	err := wrapped.RunExchange(context.Background(), &api.ChatRequest{}, &recordingSink{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string

	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	wrapped := RequestID()(handler)
	wrapped.RunExchange(context.Background(), &api.ChatRequest{}, &recordingSink{})

	if capturedID == "" {
		t.Error("expected a generated request ID, got empty string")
	}
	if len(capturedID) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("request ID length = %d, want 32 (hex encoded)", len(capturedID))
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string

	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	ctx := ContextWithRequestID(context.Background(), "existing-id-123")
	wrapped := RequestID()(handler)
	wrapped.RunExchange(ctx, &api.ChatRequest{}, &recordingSink{})

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		ids[RequestIDFromContext(ctx)] = true
		return nil
	})

	wrapped := RequestID()(handler)
	for i := 0; i < 100; i++ {
		wrapped.RunExchange(context.Background(), &api.ChatRequest{}, &recordingSink{})
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		return nil
	})

	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	wrapped := Logging(logger)(handler)
	wrapped.RunExchange(ctx, &api.ChatRequest{ConversationID: "conv_log", Model: "test-model"}, &recordingSink{})

	output := buf.String()
	for _, expected := range []string{"request_id=req-log-test", "conversation_id=conv_log", "model=test-model", "exchange completed"} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingEmitsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
		return api.NewServerError("test failure")
	})

	wrapped := Logging(logger)(handler)
	wrapped.RunExchange(context.Background(), &api.ChatRequest{Model: "test"}, &recordingSink{})

	output := buf.String()
	if !strings.Contains(output, "exchange failed") {
		t.Errorf("log output missing 'exchange failed' in:\n%s", output)
	}
	if !strings.Contains(output, "test failure") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}
