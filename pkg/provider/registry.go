package provider

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry routes a requested model to the provider serving it. Models
// are claimed on a first-come, first-served basis: if two providers
// declare the same model, the first registered provider wins and a
// warning is logged. Requests for undeclared models fall back to the
// default provider.
type Registry struct {
	mu sync.RWMutex

	// providers stores registered providers in insertion order.
	providers []Provider

	// modelToProvider maps a declared model name to its provider.
	modelToProvider map[string]Provider

	// defaultProvider serves requests whose model no provider declared.
	defaultProvider Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		modelToProvider: make(map[string]Provider),
	}
}

// Register adds a provider and the models it declares. The first
// registered provider becomes the default unless a later registration
// passes isDefault.
func (r *Registry) Register(p Provider, models []string, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)

	for _, m := range models {
		if existing, ok := r.modelToProvider[m]; ok {
			slog.Warn("model claimed by multiple providers, keeping first",
				"model", m,
				"winner", existing.Name(),
				"loser", p.Name(),
			)
			continue
		}
		r.modelToProvider[m] = p
	}

	if isDefault || r.defaultProvider == nil {
		r.defaultProvider = p
	}

	slog.Info("registered provider", "provider", p.Name(), "models", len(models), "default", isDefault)
}

// Resolve returns the provider serving the given model. An empty model
// resolves to the default provider.
func (r *Registry) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if model != "" {
		if p, ok := r.modelToProvider[model]; ok {
			return p, nil
		}
	}
	if r.defaultProvider == nil {
		return nil, fmt.Errorf("provider: no provider registered")
	}
	return r.defaultProvider, nil
}

// Providers returns the registered providers in insertion order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

// Close closes all registered providers, returning the last error
// encountered.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			slog.Warn("failed to close provider", "provider", p.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
