// Package registry aggregates tool sources behind a single dispatcher. It
// routes calls to the owning source, records execution metrics, recovers
// from source panics, and answers calls for unknown tools with an error
// result instead of failing the exchange.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

// Prometheus metrics for tool execution.
var (
	toolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirigent_tool_executions_total",
			Help: "Total tool executions",
		},
		[]string{"source", "tool_name", "status"},
	)

	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirigent_tool_duration_seconds",
			Help:    "Tool execution duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"source", "tool_name"},
	)
)

func init() {
	prometheus.MustRegister(
		toolExecutions,
		toolDuration,
	)
}

// Registry aggregates tool sources and dispatches calls to them.
type Registry struct {
	mu sync.RWMutex

	// sources stores registered sources in insertion order.
	sources []tools.Source

	// toolToSource maps tool name to the source that owns it.
	toolToSource map[string]tools.Source
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		toolToSource: make(map[string]tools.Source),
	}
}

// Register adds a source to the registry. Tool names are resolved on a
// first-come, first-served basis: if two sources supply a tool with the
// same name, the first registered source wins and a warning is logged.
func (r *Registry) Register(s tools.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = append(r.sources, s)

	for _, td := range s.Tools() {
		if existing, ok := r.toolToSource[td.Name]; ok {
			slog.Warn("tool name conflict, keeping first source",
				"tool", td.Name,
				"winner", existing.Name(),
				"loser", s.Name(),
			)
			continue
		}
		r.toolToSource[td.Name] = s
	}

	slog.Debug("registered tool source",
		"source", s.Name(),
		"tools", len(s.Tools()),
	)
}

// Tools returns the merged tool definitions from all registered sources,
// in registration order.
func (r *Registry) Tools() []api.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []api.ToolDefinition
	for _, s := range r.sources {
		all = append(all, s.Tools()...)
	}
	return all
}

// HasTools returns true if at least one tool is registered.
func (r *Registry) HasTools() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.toolToSource) > 0
}

// Execute routes the tool call to the owning source, records metrics, and
// recovers from panics. A call for a tool no source owns yields an error
// result, never an error return: the model sees the failure and the
// exchange continues.
func (r *Registry) Execute(ctx context.Context, call tools.Call) (result *tools.Result, err error) {
	r.mu.RLock()
	s, ok := r.toolToSource[call.Name]
	r.mu.RUnlock()

	if !ok {
		toolExecutions.WithLabelValues("none", call.Name, "not_found").Inc()
		return &tools.Result{
			CallID:  call.ID,
			Content: "tool not found: " + call.Name,
			IsError: true,
		}, nil
	}

	sourceName := s.Name()
	start := time.Now()

	// Recover from panics inside the source.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool source panicked",
				"source", sourceName,
				"tool", call.Name,
				"panic", rec,
			)
			result = &tools.Result{
				CallID:  call.ID,
				Content: "internal error: tool " + call.Name + " panicked",
				IsError: true,
			}
			err = nil

			toolExecutions.WithLabelValues(sourceName, call.Name, "panic").Inc()
			toolDuration.WithLabelValues(sourceName, call.Name).Observe(time.Since(start).Seconds())
		}
	}()

	result, err = s.Execute(ctx, call)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	} else if result != nil && result.IsError {
		status = "tool_error"
	}

	toolExecutions.WithLabelValues(sourceName, call.Name, status).Inc()
	toolDuration.WithLabelValues(sourceName, call.Name).Observe(duration)

	return result, err
}

// DisplayName returns the agent name behind the tool for progress events.
// Empty when no source owns the tool or the owning source has no display
// names.
func (r *Registry) DisplayName(toolName string) string {
	r.mu.RLock()
	s, ok := r.toolToSource[toolName]
	r.mu.RUnlock()

	if !ok {
		return ""
	}
	if dn, ok := s.(tools.DisplayNamer); ok {
		return dn.DisplayName(toolName)
	}
	return ""
}

// Close closes all registered sources, returning the last error
// encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, s := range r.sources {
		if err := s.Close(); err != nil {
			slog.Warn("failed to close tool source", "source", s.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
