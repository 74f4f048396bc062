package transport

import (
	"context"
	"fmt"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

// Recovery returns middleware that catches panics in the runner and
// converts them to server errors. The server continues to accept new
// requests after a panic is recovered.
func Recovery() Middleware {
	return func(next ExchangeRunner) ExchangeRunner {
		return ExchangeRunnerFunc(func(ctx context.Context, req *api.ChatRequest, sink EventSink) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.RunExchange(ctx, req, sink)
		})
	}
}
