package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/debug"
	"github.com/dirigent-dev/dirigent/pkg/provider"
)

// toolCallBuffer accumulates the fragments of a single tool call streamed
// across multiple chunks. The call id and function name arrive on the first
// fragment; arguments arrive as string fragments that are concatenated.
type toolCallBuffer struct {
	id   string
	name string
	args strings.Builder
}

// streamDecoder holds per-stream accumulation state. Text fragments are
// forwarded as deltas and also accumulated so the completed text block can
// be surfaced; tool-call fragments are buffered silently until flushed.
type streamDecoder struct {
	text    strings.Builder
	calls   map[int]*toolCallBuffer
	flushed bool
	done    bool
	usage   *api.Usage
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{calls: make(map[int]*toolCallBuffer)}
}

// parseSSEStream reads chat.completion.chunk SSE frames from body and feeds
// them to the decoder. It returns nil on a normal end of stream (the [DONE]
// sentinel or plain EOF) and the scanner error otherwise. The channel is
// NOT closed here; the caller owns its lifecycle.
//
// SSE lines that don't start with "data: " (comments, keep-alives, blank
// separators) are ignored. Malformed chunks are logged and skipped.
func parseSSEStream(ctx context.Context, body io.Reader, dec *streamDecoder, ch chan<- provider.Event) error {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		debug.Raw("streaming", line)

		if payload == "[DONE]" {
			return nil
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}

		dec.handleChunk(ctx, &chunk, ch)
	}

	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// handleChunk folds one chunk into the decoder state, forwarding text
// deltas immediately. A finish_reason on the choice flushes buffered
// blocks; the done event itself waits for the end of the stream because
// usage-only chunks may still follow.
func (d *streamDecoder) handleChunk(ctx context.Context, chunk *chatCompletionChunk, ch chan<- provider.Event) {
	if chunk.Usage != nil {
		d.usage = &api.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}

	// No choices means a usage-only chunk.
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.Content != nil && *delta.Content != "" {
		d.text.WriteString(*delta.Content)
		sendEvent(ctx, ch, provider.Event{
			Type:  provider.EventTextDelta,
			Delta: *delta.Content,
		})
	}

	for _, tc := range delta.ToolCalls {
		buf := d.calls[tc.Index]
		if buf == nil {
			buf = &toolCallBuffer{}
			d.calls[tc.Index] = buf
		}
		if buf.id == "" && tc.ID != "" {
			buf.id = tc.ID
		}
		if buf.name == "" && tc.Function.Name != "" {
			buf.name = tc.Function.Name
		}
		buf.args.WriteString(tc.Function.Arguments)
	}

	if choice.FinishReason != nil {
		d.flushBlocks(ctx, ch)
	}
}

// flushBlocks surfaces the accumulated text and buffered tool calls as
// completed blocks, in arrival order: the text block first, then tool
// calls by ascending fragment index. Safe to call more than once.
func (d *streamDecoder) flushBlocks(ctx context.Context, ch chan<- provider.Event) {
	if d.flushed {
		return
	}
	d.flushed = true

	if d.text.Len() > 0 {
		block := api.NewTextBlock(d.text.String())
		sendEvent(ctx, ch, provider.Event{Type: provider.EventBlockDone, Block: &block})
	}

	indexes := make([]int, 0, len(d.calls))
	for idx := range d.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		buf := d.calls[idx]
		id := buf.id
		if id == "" {
			// Some backends omit the call id; generate one so results
			// can still be correlated.
			id = api.NewCallID()
		}
		block := api.NewToolCallBlock(id, buf.name, parseToolArguments(buf.name, buf.args.String()))
		sendEvent(ctx, ch, provider.Event{Type: provider.EventBlockDone, Block: &block})
	}
}

// finish completes the stream. Blocks not yet flushed (the backend closed
// the connection without a finish_reason) are surfaced first, then a
// single done event carrying usage when the backend reported it.
func (d *streamDecoder) finish(ctx context.Context, ch chan<- provider.Event) {
	d.flushBlocks(ctx, ch)
	if d.done {
		return
	}
	d.done = true
	sendEvent(ctx, ch, provider.Event{Type: provider.EventDone, Usage: d.usage})
}

// parseToolArguments validates an accumulated arguments string. Empty or
// invalid JSON yields an empty object; a malformed payload must never
// abort the stream.
func parseToolArguments(name, raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if !json.Valid([]byte(trimmed)) {
		slog.Warn("tool call arguments are not valid JSON, substituting empty object",
			"tool", name,
			"data", truncate(trimmed, 200),
		)
		return json.RawMessage("{}")
	}
	return json.RawMessage(trimmed)
}

// sendEvent delivers an event unless the context is cancelled first.
func sendEvent(ctx context.Context, ch chan<- provider.Event, ev provider.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
