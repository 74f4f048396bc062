package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

func TestWriteEventSSEFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := newSSEEventSink(rec)

	if err := sink.WriteEvent(context.Background(), api.NewTextEvent("Hello")); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}

	body := rec.Body.String()

	// Data-only frames: no event-name line, no sentinel.
	if strings.Contains(body, "event:") {
		t.Errorf("unexpected event-name line in:\n%s", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Errorf("unexpected [DONE] sentinel in:\n%s", body)
	}
	if !strings.HasPrefix(body, "data: ") || !strings.HasSuffix(body, "\n\n") {
		t.Errorf("frame not in data-only SSE format:\n%q", body)
	}

	// Extract and parse the JSON data.
	jsonStr := strings.TrimSuffix(strings.TrimPrefix(body, "data: "), "\n\n")
	var got api.Event
	if err := json.Unmarshal([]byte(jsonStr), &got); err != nil {
		t.Fatalf("failed to parse event JSON: %v", err)
	}
	if got.Type != api.EventText {
		t.Errorf("event type = %q, want %q", got.Type, api.EventText)
	}
	if got.Content != "Hello" {
		t.Errorf("content = %q, want %q", got.Content, "Hello")
	}
}

func TestWriteEventSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := newSSEEventSink(rec)

	sink.WriteEvent(context.Background(), api.NewTextEvent("x"))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", cc, "no-cache")
	}
	if conn := rec.Header().Get("Connection"); conn != "keep-alive" {
		t.Errorf("Connection = %q, want %q", conn, "keep-alive")
	}
}

func TestWriteEventOrderPreserved(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := newSSEEventSink(rec)

	events := []api.Event{
		api.NewTextEvent("thinking"),
		api.NewToolCallEvent("get_weather", "", `{"city":"Berlin"}`),
		api.NewToolResultEvent("get_weather", "sunny"),
		api.NewTextEvent("done thinking"),
		api.NewDoneEvent(),
	}
	for _, ev := range events {
		if err := sink.WriteEvent(context.Background(), ev); err != nil {
			t.Fatalf("WriteEvent(%s) error: %v", ev.Type, err)
		}
	}

	var got []api.Event
	for _, frame := range strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n") {
		jsonStr := strings.TrimPrefix(frame, "data: ")
		var ev api.Event
		if err := json.Unmarshal([]byte(jsonStr), &ev); err != nil {
			t.Fatalf("failed to parse frame %q: %v", frame, err)
		}
		got = append(got, ev)
	}

	if len(got) != len(events) {
		t.Fatalf("got %d frames, want %d", len(got), len(events))
	}
	for i := range events {
		if got[i].Type != events[i].Type {
			t.Errorf("frame %d type = %q, want %q", i, got[i].Type, events[i].Type)
		}
	}
	if got[1].Tool != "get_weather" || got[1].Input != `{"city":"Berlin"}` {
		t.Errorf("tool_call frame = %+v", got[1])
	}
	if got[2].Content != "sunny" {
		t.Errorf("tool_result content = %q, want %q", got[2].Content, "sunny")
	}
}

func TestWriteEventAfterTerminalReturnsError(t *testing.T) {
	tests := []struct {
		name     string
		terminal api.Event
	}{
		{"done", api.NewDoneEvent()},
		{"error", api.NewErrorEvent("upstream unreachable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			sink := newSSEEventSink(rec)

			if err := sink.WriteEvent(context.Background(), tt.terminal); err != nil {
				t.Fatalf("WriteEvent error: %v", err)
			}

			err := sink.WriteEvent(context.Background(), api.NewTextEvent("should fail"))
			if err == nil {
				t.Error("expected error after terminal event, got nil")
			}

			if strings.Contains(rec.Body.String(), "should fail") {
				t.Error("event after terminal reached the wire")
			}
		})
	}
}

func TestHasStartedStreaming(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := newSSEEventSink(rec)

	if sink.hasStartedStreaming() {
		t.Error("hasStartedStreaming = true before first write")
	}

	sink.WriteEvent(context.Background(), api.NewTextEvent("x"))
	if !sink.hasStartedStreaming() {
		t.Error("hasStartedStreaming = false after write")
	}

	sink.WriteEvent(context.Background(), api.NewDoneEvent())
	if !sink.hasStartedStreaming() {
		t.Error("hasStartedStreaming = false after terminal event")
	}
}
