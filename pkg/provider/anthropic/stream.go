package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/debug"
	"github.com/dirigent-dev/dirigent/pkg/provider"
)

// blockState tracks one content block between its start and stop events.
type blockState struct {
	blockType string
	id        string
	name      string
	text      strings.Builder
	inputJSON strings.Builder
}

// streamDecoder holds per-stream state. Blocks are keyed by the index the
// backend assigns; start order is kept so blocks left open by a truncated
// stream finalize in arrival order.
type streamDecoder struct {
	open    map[int]*blockState
	order   []int
	usage   api.Usage
	done    bool
	errored bool
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{open: make(map[int]*blockState)}
}

// parseSSEStream reads Messages API SSE frames from body and feeds them to
// the decoder. It returns nil on a normal end of stream and the scanner
// error otherwise. The channel is NOT closed here; the caller owns its
// lifecycle.
//
// "event:" lines are skipped; the data payload carries its own type
// discriminator. Malformed frames are logged and skipped.
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

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			slog.Warn("skipping malformed SSE event",
				"error", err.Error(),
				"data", truncate(payload, 200),
			)
			continue
		}

		dec.handleEvent(ctx, &ev, ch)
		if dec.errored {
			return nil
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// handleEvent folds one stream event into the decoder state.
func (d *streamDecoder) handleEvent(ctx context.Context, ev *streamEvent, ch chan<- provider.Event) {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil && ev.Message.Usage != nil {
			d.usage.InputTokens = ev.Message.Usage.InputTokens
		}

	case "content_block_start":
		if ev.ContentBlock == nil {
			return
		}
		state := &blockState{
			blockType: ev.ContentBlock.Type,
			id:        ev.ContentBlock.ID,
			name:      ev.ContentBlock.Name,
		}
		d.open[ev.Index] = state
		d.order = append(d.order, ev.Index)
		// Some backends seed text blocks with initial content.
		if ev.ContentBlock.Text != "" {
			state.text.WriteString(ev.ContentBlock.Text)
			sendEvent(ctx, ch, provider.Event{Type: provider.EventTextDelta, Delta: ev.ContentBlock.Text})
		}

	case "content_block_delta":
		if ev.Delta == nil {
			return
		}
		state := d.open[ev.Index]
		if state == nil {
			slog.Warn("content_block_delta for unknown block index", "index", ev.Index)
			return
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text == "" {
				return
			}
			state.text.WriteString(ev.Delta.Text)
			sendEvent(ctx, ch, provider.Event{Type: provider.EventTextDelta, Delta: ev.Delta.Text})
		case "input_json_delta":
			state.inputJSON.WriteString(ev.Delta.PartialJSON)
		}

	case "content_block_stop":
		d.finalizeBlock(ctx, ev.Index, ch)

	case "message_delta":
		// Delta.StopReason is informative only; the completed blocks
		// decide whether the turn continues.
		if ev.Usage != nil {
			d.usage.OutputTokens = ev.Usage.OutputTokens
		}

	case "message_stop":
		d.finish(ctx, ch)

	case "ping":
		// Keep-alive, nothing to do.

	case "error":
		msg := "upstream stream error"
		if ev.Error != nil {
			msg = fmt.Sprintf("upstream stream error (%s): %s", ev.Error.Type, ev.Error.Message)
		}
		d.errored = true
		sendEvent(ctx, ch, provider.Event{Type: provider.EventError, Err: api.NewUpstreamError(msg)})

	default:
		// Unknown event types are tolerated for forward compatibility.
	}
}

// finalizeBlock closes an open block and surfaces it as a completed block.
// Calling it for an already-closed index is a no-op.
func (d *streamDecoder) finalizeBlock(ctx context.Context, index int, ch chan<- provider.Event) {
	state := d.open[index]
	if state == nil {
		return
	}
	delete(d.open, index)

	switch state.blockType {
	case "tool_use":
		id := state.id
		if id == "" {
			id = api.NewCallID()
		}
		block := api.NewToolCallBlock(id, state.name, parseToolInput(state.name, state.inputJSON.String()))
		sendEvent(ctx, ch, provider.Event{Type: provider.EventBlockDone, Block: &block})
	default:
		if state.text.Len() == 0 {
			return
		}
		block := api.NewTextBlock(state.text.String())
		sendEvent(ctx, ch, provider.Event{Type: provider.EventBlockDone, Block: &block})
	}
}

// finish finalizes any blocks the backend left open, in start order, and
// emits the done event exactly once.
func (d *streamDecoder) finish(ctx context.Context, ch chan<- provider.Event) {
	if d.errored {
		return
	}
	for _, idx := range d.order {
		d.finalizeBlock(ctx, idx, ch)
	}
	if d.done {
		return
	}
	d.done = true

	ev := provider.Event{Type: provider.EventDone}
	if d.usage.InputTokens > 0 || d.usage.OutputTokens > 0 {
		u := d.usage
		u.TotalTokens = u.InputTokens + u.OutputTokens
		ev.Usage = &u
	}
	sendEvent(ctx, ch, ev)
}

// parseToolInput validates accumulated input_json_delta fragments. Empty or
// invalid JSON yields an empty object; a malformed payload must never abort
// the stream.
func parseToolInput(name, raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if !json.Valid([]byte(trimmed)) {
		slog.Warn("tool input fragments are not valid JSON, substituting empty object",
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
