package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// RequestID returns middleware that makes sure every exchange carries a
// request ID. An ID already present on the context (the HTTP adapter
// copies X-Request-ID there) wins; otherwise a random one is assigned.
func RequestID() Middleware {
	return func(next ExchangeRunner) ExchangeRunner {
		return ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, newRequestID())
			}
			return next.RunExchange(ctx, req, sink)
		})
	}
}

func newRequestID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
