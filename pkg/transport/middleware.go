package transport

import "context"

// Middleware decorates an ExchangeRunner with cross-cutting behavior
// such as logging, metrics, or panic recovery.
type Middleware func(ExchangeRunner) ExchangeRunner

// Chain folds middlewares into one. The first argument ends up
// outermost, so Chain(a, b, c) runs a, then b, then c, then the runner.
func Chain(middlewares ...Middleware) Middleware {
	return func(runner ExchangeRunner) ExchangeRunner {
		wrapped := runner
		for i := len(middlewares) - 1; i >= 0; i-- {
			wrapped = middlewares[i](wrapped)
		}
		return wrapped
	}
}

type requestIDCtxKey struct{}

// RequestIDFromContext reports the request ID carried by ctx, or ""
// when none was assigned.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}
