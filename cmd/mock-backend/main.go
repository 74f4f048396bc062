// Command mock-backend runs a deterministic stand-in for an LLM backend.
// It speaks both upstream wire formats dirigent knows: the block-event
// protocol on POST /v1/messages and the chunk protocol on
// POST /v1/chat/completions. Responses are canned and selected by trigger
// words in the last user message, so engine behavior can be exercised
// without a real provider.
//
// Trigger words:
//
//	"2+2"       - answers "4"
//	"count"     - answers "1, 2, 3, 4, 5"
//	"truncate"  - stream ends mid-answer with no terminal event
//	"slow"      - long pause between chunks, for cancellation testing
//	"fail"      - HTTP 500 with an error body
//	"ratelimit" - HTTP 429 with an error body
//
// When the request declares tools, the first round answers with a
// get_weather call whose arguments arrive as split JSON fragments; once
// the request carries tool results the backend answers with plain text,
// so a tool round converges after one cycle.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", handleMessages)
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Scenario selection ---

// scenario is a canned response, independent of wire format.
type scenario struct {
	// kind is "text", "tool_call", or "truncate".
	kind string
	text string

	toolName string
	// toolArgs are the argument JSON split into the fragments it
	// streams as. Joined they form one valid JSON object.
	toolArgs []string

	// status, when non-zero, fails the request with this HTTP code
	// before any streaming starts.
	status  int
	errType string
	errMsg  string

	chunkWait time.Duration
}

func classify(lastUser string, hasTools, hasToolResults bool) scenario {
	sc := scenario{kind: "text", chunkWait: 30 * time.Millisecond}
	lower := strings.ToLower(lastUser)

	switch {
	case strings.Contains(lower, "fail"):
		sc.status = http.StatusInternalServerError
		sc.errType = "api_error"
		sc.errMsg = "mock backend induced failure"
	case strings.Contains(lower, "ratelimit"):
		sc.status = http.StatusTooManyRequests
		sc.errType = "rate_limit_error"
		sc.errMsg = "mock backend rate limit exceeded"
	case hasToolResults:
		sc.text = "It is 18 degrees and sunny in Berlin."
	case hasTools:
		sc.kind = "tool_call"
		sc.toolName = "get_weather"
		sc.toolArgs = []string{`{"location":"Ber`, `lin","unit":"celsius"}`}
	case strings.Contains(lower, "2+2"):
		sc.text = "4"
	case strings.Contains(lower, "count"):
		sc.text = "1, 2, 3, 4, 5"
	case strings.Contains(lower, "truncate"):
		sc.kind = "truncate"
		sc.text = "This answer is cut"
	case strings.Contains(lower, "slow"):
		sc.text = "Slowly streamed answer with several words."
		sc.chunkWait = 400 * time.Millisecond
	default:
		sc.text = "Hello from the mock backend."
	}
	return sc
}

// textFragments splits text into word-sized stream fragments.
func textFragments(text string) []string {
	words := strings.Fields(text)
	frags := make([]string, 0, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		frags = append(frags, w)
	}
	return frags
}

// --- Block-event protocol (POST /v1/messages) ---

type messagesRequest struct {
	Model    string           `json:"model"`
	Messages []blockMessage   `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type blockMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func handleMessages(w http.ResponseWriter, r *http.Request) {
	var req messagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	lastUser, hasToolResults := "", false
	for _, m := range req.Messages {
		for _, b := range m.Content {
			if b.Type == "tool_result" {
				hasToolResults = true
			}
		}
		if m.Role == "user" {
			var parts []string
			for _, b := range m.Content {
				if b.Type == "text" {
					parts = append(parts, b.Text)
				}
			}
			lastUser = strings.Join(parts, " ")
		}
	}

	sc := classify(lastUser, len(req.Tools) > 0, hasToolResults)
	slog.Info("messages request", "model", req.Model, "scenario", sc.kind, "stream", req.Stream)

	if sc.status != 0 {
		writeJSON(w, sc.status, map[string]any{
			"type":  "error",
			"error": map[string]any{"type": sc.errType, "message": sc.errMsg},
		})
		return
	}
	if !req.Stream {
		writeMessagesJSON(w, sc)
		return
	}
	streamMessages(w, sc)
}

func writeMessagesJSON(w http.ResponseWriter, sc scenario) {
	var content []map[string]any
	stopReason := "end_turn"
	switch sc.kind {
	case "tool_call":
		var args json.RawMessage = []byte(strings.Join(sc.toolArgs, ""))
		content = append(content, map[string]any{
			"type": "tool_use", "id": "call_mock_1", "name": sc.toolName, "input": args,
		})
		stopReason = "tool_use"
	default:
		content = append(content, map[string]any{"type": "text", "text": sc.text})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          "msg_mock_1",
		"role":        "assistant",
		"content":     content,
		"stop_reason": stopReason,
		"usage":       map[string]any{"input_tokens": 12, "output_tokens": 7},
	})
}

// streamMessages writes the block-event sequence: message_start, one
// content block with its deltas, message_delta with usage, message_stop.
// The truncate scenario stops after the first delta with no terminal
// events.
func streamMessages(w http.ResponseWriter, sc scenario) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	writeBlockEvent(w, flusher, "message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":    "msg_mock_1",
			"role":  "assistant",
			"usage": map[string]any{"input_tokens": 12, "output_tokens": 0},
		},
	})

	stopReason := "end_turn"
	if sc.kind == "tool_call" {
		stopReason = "tool_use"
		writeBlockEvent(w, flusher, "content_block_start", map[string]any{
			"type":  "content_block_start",
			"index": 0,
			"content_block": map[string]any{
				"type": "tool_use", "id": "call_mock_1", "name": sc.toolName,
			},
		})
		for _, frag := range sc.toolArgs {
			time.Sleep(sc.chunkWait)
			writeBlockEvent(w, flusher, "content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": frag},
			})
		}
	} else {
		writeBlockEvent(w, flusher, "content_block_start", map[string]any{
			"type":          "content_block_start",
			"index":         0,
			"content_block": map[string]any{"type": "text", "text": ""},
		})
		for i, frag := range textFragments(sc.text) {
			time.Sleep(sc.chunkWait)
			writeBlockEvent(w, flusher, "content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]any{"type": "text_delta", "text": frag},
			})
			if sc.kind == "truncate" && i == 0 {
				return
			}
		}
	}

	writeBlockEvent(w, flusher, "content_block_stop", map[string]any{
		"type": "content_block_stop", "index": 0,
	})
	writeBlockEvent(w, flusher, "message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason},
		"usage": map[string]any{"output_tokens": 7},
	})
	writeBlockEvent(w, flusher, "message_stop", map[string]any{"type": "message_stop"})
}

func writeBlockEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal block event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

// --- Chunk protocol (POST /v1/chat/completions) ---

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []chatMessage    `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	lastUser, hasToolResults := "", false
	for _, m := range req.Messages {
		switch m.Role {
		case "user":
			lastUser = m.Content
		case "tool":
			hasToolResults = true
		}
	}

	sc := classify(lastUser, len(req.Tools) > 0, hasToolResults)
	slog.Info("chat completions request", "model", req.Model, "scenario", sc.kind, "stream", req.Stream)

	if sc.status != 0 {
		writeJSON(w, sc.status, map[string]any{
			"error": map[string]any{"type": sc.errType, "message": sc.errMsg},
		})
		return
	}
	if !req.Stream {
		writeChatJSON(w, sc, req.Model)
		return
	}
	streamChat(w, sc, req.Model)
}

func writeChatJSON(w http.ResponseWriter, sc scenario, model string) {
	message := map[string]any{"role": "assistant"}
	finish := "stop"
	switch sc.kind {
	case "tool_call":
		finish = "tool_calls"
		message["tool_calls"] = []map[string]any{{
			"id":   "call_mock_1",
			"type": "function",
			"function": map[string]any{
				"name":      sc.toolName,
				"arguments": strings.Join(sc.toolArgs, ""),
			},
		}}
	default:
		message["content"] = sc.text
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     "chatcmpl-mock-1",
		"object": "chat.completion",
		"model":  model,
		"choices": []map[string]any{
			{"index": 0, "message": message, "finish_reason": finish},
		},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
	})
}

// streamChat writes the chunk sequence: a role chunk, delta chunks, a
// finish chunk with usage, and the [DONE] sentinel. Tool-call arguments
// stream as fragments that only carry id and name on the first one. The
// truncate scenario stops after the first delta with no finish chunk and
// no sentinel.
func streamChat(w http.ResponseWriter, sc scenario, model string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	writeChunk(w, flusher, model, map[string]any{"role": "assistant"}, nil, nil)

	finish := "stop"
	if sc.kind == "tool_call" {
		finish = "tool_calls"
		for i, frag := range sc.toolArgs {
			time.Sleep(sc.chunkWait)
			call := map[string]any{
				"index":    0,
				"function": map[string]any{"arguments": frag},
			}
			if i == 0 {
				call["id"] = "call_mock_1"
				call["type"] = "function"
				call["function"] = map[string]any{"name": sc.toolName, "arguments": frag}
			}
			writeChunk(w, flusher, model, map[string]any{"tool_calls": []map[string]any{call}}, nil, nil)
		}
	} else {
		for i, frag := range textFragments(sc.text) {
			time.Sleep(sc.chunkWait)
			writeChunk(w, flusher, model, map[string]any{"content": frag}, nil, nil)
			if sc.kind == "truncate" && i == 0 {
				return
			}
		}
	}

	usage := map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
	writeChunk(w, flusher, model, map[string]any{}, &finish, usage)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, flusher http.Flusher, model string, delta map[string]any, finish *string, usage map[string]any) {
	chunk := map[string]any{
		"id":     "chatcmpl-mock-1",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []map[string]any{
			{"index": 0, "delta": delta, "finish_reason": finish},
		},
	}
	if usage != nil {
		chunk["usage"] = usage
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		slog.Error("marshal chunk", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
