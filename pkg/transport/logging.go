package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// Logging returns middleware that writes one structured log line per
// exchange: request ID, conversation, model, wall time, and the outcome.
// HTTP-level detail (status code, client address) lives in the adapter's
// own middleware, not here.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ExchangeRunner) ExchangeRunner {
		return ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
			start := time.Now()
			err := next.RunExchange(ctx, req, sink)
			elapsed := time.Since(start)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("conversation_id", req.ConversationID),
				slog.String("model", req.Model),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "exchange failed", attrs...)
				return err
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "exchange completed", attrs...)
			return nil
		})
	}
}
