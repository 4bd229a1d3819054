package probe

import (
	"context"
	"sync"
)

// Prober validates a raw secret against its provider. Implementations are
// the provider-specific clients (bank, exchange, market-data API); the
// dispatcher only relies on this contract.
//
// Probe returns nil when the provider accepted the secret, a
// *ValidationError when the provider rejected it, and any other error for
// infrastructure failures (network, timeout, provider outage).
type Prober interface {
	Probe(ctx context.Context, rawSecret string) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, rawSecret string) error

func (f ProberFunc) Probe(ctx context.Context, rawSecret string) error {
	return f(ctx, rawSecret)
}

// ValidationError reports that the provider examined the secret and rejected
// it. The secret must not be stored.
type ValidationError struct {
	Provider string
	Message  string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Registry maps provider names to their probe clients.
type Registry struct {
	mu      sync.RWMutex
	probers map[string]Prober
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		probers: make(map[string]Prober),
	}
}

// Register installs a prober for a provider, replacing any existing one.
func (r *Registry) Register(provider string, p Prober) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probers[provider] = p
}

// Lookup returns the prober for a provider.
func (r *Registry) Lookup(provider string) (Prober, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probers[provider]
	return p, ok
}

// Providers returns the registered provider names.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.probers))
	for name := range r.probers {
		names = append(names, name)
	}
	return names
}
