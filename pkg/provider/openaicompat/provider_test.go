package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/provider"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing BaseURL")
	}

	p, err := New(Config{BaseURL: "http://localhost:8000/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", p.cfg.BaseURL)
	}
	if p.Name() != "openai-compat" {
		t.Errorf("Name() = %q, want default %q", p.Name(), "openai-compat")
	}
}

func TestProviderStream_EndToEnd(t *testing.T) {
	var gotReq chatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		chunks := []string{
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`,
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4","choices":[{"index":0,"delta":{"content":"4"},"finish_reason":null}]}`,
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`[DONE]`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.APIKey = "test-key"
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	ch, err := p.Stream(context.Background(), &provider.Request{
		Model:    "gpt-4",
		Messages: []api.Message{api.NewUserText("2+2?")},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var events []provider.Event
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	assertTextDelta(t, events[0], "4")
	block := assertBlockDone(t, events[1], api.BlockTypeText)
	if block.Text.Text != "4" {
		t.Errorf("text block = %q, want %q", block.Text.Text, "4")
	}
	if events[2].Type != provider.EventDone {
		t.Errorf("last event type = %d, want EventDone", events[2].Type)
	}

	if !gotReq.Stream {
		t.Error("request stream = false, want true")
	}
	if gotReq.StreamOptions == nil || !gotReq.StreamOptions.IncludeUsage {
		t.Error("request stream_options.include_usage not set")
	}
	if gotReq.Model != "gpt-4" {
		t.Errorf("request model = %q, want gpt-4", gotReq.Model)
	}
}

func TestProviderStream_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	p, err := New(DefaultConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	_, err = p.Stream(context.Background(), &provider.Request{
		Model:    "gpt-4",
		Messages: []api.Message{api.NewUserText("hi")},
	})
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *api.APIError", err)
	}
	if apiErr.Type != api.ErrorTypeUpstreamError {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeUpstreamError)
	}
}

func TestProviderStream_ConnectionRefused(t *testing.T) {
	// A closed server port maps to an upstream error before any channel
	// exists.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p, err := New(DefaultConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Stream(context.Background(), &provider.Request{
		Model:    "gpt-4",
		Messages: []api.Message{api.NewUserText("hi")},
	})
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *api.APIError", err)
	}
}
