package engine

import (
	"context"
	"errors"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/observability"
	"github.com/dirigent-dev/dirigent/pkg/provider"
	"github.com/dirigent-dev/dirigent/pkg/session"
	"github.com/dirigent-dev/dirigent/pkg/skills"
	"github.com/dirigent-dev/dirigent/pkg/subagent"
	"github.com/dirigent-dev/dirigent/pkg/tools"
	"github.com/dirigent-dev/dirigent/pkg/tools/registry"
	"github.com/dirigent-dev/dirigent/pkg/transport"
)

// Engine coordinates chat exchanges: it validates the request, resolves
// the provider, rebuilds conversation context, runs the turn loop, and
// persists the transcript.
type Engine struct {
	providers *provider.Registry
	cfg       Config

	store    transport.ConversationStore
	sessions *session.Store
	pool     *subagent.Pool
	catalog  *skills.Catalog
	shared   []tools.Source
}

// Ensure Engine implements the transport contract at compile time.
var _ transport.ExchangeRunner = (*Engine)(nil)

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithStore attaches a conversation store for server-side transcripts.
// Without a store the engine is stateless and callers must carry their
// own history.
func WithStore(store transport.ConversationStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithSessions attaches the session-token store shared with the
// collaborator pool, so tokens held for server-generated conversation
// IDs are released when the exchange ends.
func WithSessions(sessions *session.Store) Option {
	return func(e *Engine) { e.sessions = sessions }
}

// WithCollaborators attaches the pool whose delegation tools the model
// can call.
func WithCollaborators(pool *subagent.Pool) Option {
	return func(e *Engine) { e.pool = pool }
}

// WithSkills attaches the skill catalog backing the read_skill tool and
// the system preamble.
func WithSkills(catalog *skills.Catalog) Option {
	return func(e *Engine) { e.catalog = catalog }
}

// WithToolSource adds a shared tool source, such as MCP servers. The
// source's lifecycle belongs to the caller; the engine only dispatches
// to it.
func WithToolSource(src tools.Source) Option {
	return func(e *Engine) { e.shared = append(e.shared, src) }
}

// New creates an Engine. The provider registry is required, everything
// else is optional.
func New(providers *provider.Registry, cfg Config, opts ...Option) (*Engine, error) {
	if providers == nil {
		return nil, errors.New("engine: provider registry is required")
	}
	e := &Engine{providers: providers, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunExchange executes one chat exchange, writing progress events to the
// sink as they happen. An error returned before any event was written
// maps to an HTTP error response; once streaming has begun, failures are
// reflected on the event stream itself and the returned error only feeds
// logging and metrics.
func (e *Engine) RunExchange(ctx context.Context, req *api.ChatRequest, sink transport.EventSink) error {
	if apiErr := api.ValidateChatRequest(req, e.cfg.validation()); apiErr != nil {
		return apiErr
	}

	conversationID := req.ConversationID
	generated := conversationID == ""
	if generated {
		conversationID = api.NewConversationID()
	}
	if generated && e.sessions != nil {
		// The caller never learns a generated ID, so collaborator
		// sessions keyed by it can be dropped once the exchange ends.
		defer e.sessions.Forget(conversationID)
	}

	model := req.Model
	if model == "" {
		model = e.cfg.DefaultModel
	}

	prov, err := e.providers.Resolve(model)
	if err != nil {
		return api.NewServerError(err.Error())
	}

	history, err := e.loadHistory(ctx, req)
	if err != nil {
		return err
	}
	messages := append(history, api.NewUserText(req.Message))

	reg := e.buildRegistry(conversationID)

	result, runErr := e.runLoop(ctx, prov, model, messages, reg, sink)
	if runErr != nil {
		observability.ExchangesTotal.WithLabelValues(exchangeStatus(ctx, runErr)).Inc()
		return runErr
	}

	observability.ExchangesTotal.WithLabelValues("success").Inc()
	observability.ExchangeTurns.Observe(float64(result.turns))

	e.appendTranscript(ctx, req.ConversationID, req.Message, result.finalText)
	return nil
}

// buildRegistry assembles the tool surface for one exchange. The
// collaborator source is bound to the conversation so session tokens
// survive across turns; skills and shared sources carry no per-exchange
// state. The registry is not closed here: shared sources outlive the
// exchange and are closed at shutdown by their owner.
func (e *Engine) buildRegistry(conversationID string) *registry.Registry {
	reg := registry.New()
	if e.pool != nil {
		reg.Register(e.pool.Source(conversationID))
	}
	if e.catalog != nil {
		reg.Register(skills.NewSource(e.catalog))
	}
	for _, src := range e.shared {
		reg.Register(src)
	}
	return reg
}

// exchangeStatus labels a failed exchange for metrics.
func exchangeStatus(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "error"
}
