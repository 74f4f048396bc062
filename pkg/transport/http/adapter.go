package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/storage"
	"github.com/dirigent-dev/dirigent/pkg/transport"
)

// Adapter serves the chat-exchange API over HTTP.
// It routes requests to the appropriate handler and serializes the
// progress-event stream as server-sent events.
type Adapter struct {
	runner   transport.ExchangeRunner
	store    transport.ConversationStore // nil if stateless-only
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
	}
}

// NewAdapter creates an HTTP adapter with the given ExchangeRunner and options.
// The ConversationStore is optional; when nil, health checks skip storage and
// DELETE only cancels in-flight exchanges. Middleware is applied to the
// runner in the given order.
func NewAdapter(runner transport.ExchangeRunner, store transport.ConversationStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		runner = transport.Chain(middlewares...)(runner)
	}

	a := &Adapter{
		runner:   runner,
		store:    store,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/chat", a.handleChat)
	a.mux.HandleFunc("DELETE /v1/chat/{conversation_id}", a.handleDeleteConversation)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded to
// the response. After the handler runs, it checks the context for a
// request ID (set by the transport-level RequestID middleware) and adds
// it to the response headers if not already set.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If client sent X-Request-ID, propagate it into context.
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		// Use a response writer wrapper to capture and set the request ID
		// header before the first write.
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleChat handles POST /v1/chat. Every exchange streams: the response
// is an SSE stream of progress events ending in a done or error event.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	// Validate Content-Type.
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	// Limit body size.
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	// Decode request.
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Caller-supplied conversation IDs are registered for explicit
	// cancellation via DELETE. Server-generated IDs never reach the
	// caller, so there is nothing to register for them.
	if req.ConversationID != "" {
		a.inflight.Register(req.ConversationID, cancel)
		defer a.inflight.Remove(req.ConversationID)
	}

	sink := newSSEEventSink(w)
	if err := a.runner.RunExchange(ctx, &req, sink); err != nil {
		a.writeHandlerError(w, sink, err)
	}
}

// handleDeleteConversation handles DELETE /v1/chat/{conversation_id}.
// It first checks the in-flight registry (cancelling an active exchange),
// then falls through to the conversation store for transcript deletion.
func (a *Adapter) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("conversation_id")

	// Check in-flight registry first.
	if a.inflight.Cancel(id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Fall through to store.
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "conversation deletion is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	if err := a.store.DeleteConversation(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("conversation "+id+" not found"))
		} else {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) {
				transport.WriteAPIError(w, apiErr)
			} else {
				transport.WriteAPIError(w, api.NewServerError(err.Error()))
			}
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /healthz. When a conversation store is
// configured, its connection is checked too, so a broken database turns
// the health probe red instead of failing the next exchange.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			transport.WriteErrorResponse(w,
				api.NewServerError("storage unavailable: "+err.Error()),
				http.StatusServiceUnavailable,
			)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// writeHandlerError writes an error response from the handler. If streaming
// has already started, the failure can only travel in-stream as an error
// event; the exchange usually has emitted one already, in which case this
// write lands on a completed stream and is dropped. Otherwise it writes a
// standard JSON error response.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, sink *sseEventSink, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}

	if sink.hasStartedStreaming() {
		sink.WriteEvent(context.Background(), api.NewErrorEvent(apiErr.Message))
		return
	}

	transport.WriteAPIError(w, apiErr)
}
