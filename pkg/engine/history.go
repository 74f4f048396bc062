package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/storage"
)

// loadHistory reconstructs the conversation context for an exchange.
// Explicit request history always wins; otherwise the stored transcript
// for the conversation is replayed; a brand-new or unknown conversation
// starts empty.
func (e *Engine) loadHistory(ctx context.Context, req *api.ChatRequest) ([]api.Message, error) {
	if len(req.History) > 0 {
		return api.HistoryToMessages(req.History), nil
	}
	if e.store == nil || req.ConversationID == "" {
		return nil, nil
	}

	messages, err := e.store.Transcript(ctx, req.ConversationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, api.NewServerError("loading conversation transcript: " + err.Error())
	}
	return messages, nil
}

// appendTranscript records the outcome of a successful exchange: the
// user message and the assistant's final text. Tool-call plumbing stays
// out of the transcript so replays remain valid for any provider.
// Persistence failures are logged, not surfaced; the caller already has
// the answer.
func (e *Engine) appendTranscript(ctx context.Context, conversationID, userText, assistantText string) {
	if e.store == nil || conversationID == "" {
		return
	}

	messages := []api.Message{api.NewUserText(userText)}
	if assistantText != "" {
		messages = append(messages, api.NewAssistantText(assistantText))
	}

	if err := e.store.AppendMessages(ctx, conversationID, e.cfg.maxHistoryMessages(), messages...); err != nil {
		slog.Warn("failed to persist conversation transcript",
			"conversation_id", conversationID,
			"error", err,
		)
	}
}
