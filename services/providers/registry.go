package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrProviderNotFound is returned when a provider is not configured
	ErrProviderNotFound = errors.New("provider not found")

	// ErrAdapterMissing is returned when an enabled provider has no adapter
	ErrAdapterMissing = errors.New("no adapter for provider kind")

	// ErrProviderAlreadyRegistered is returned for a duplicate adapter or config
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

const defaultCallTimeout = 30 * time.Second

// Registry holds the static adapter table and the configured providers
type Registry struct {
	adapters [kindCount]Adapter
	configs  []ProviderConfig
}

// NewRegistry builds a registry from provider configs and one adapter per kind
func NewRegistry(configs []ProviderConfig, adapters ...Adapter) (*Registry, error) {
	r := &Registry{}

	for _, a := range adapters {
		if a == nil {
			return nil, errors.New("adapter cannot be nil")
		}
		k := a.Kind()
		if !k.Valid() {
			return nil, fmt.Errorf("adapter has invalid kind %d", int(k))
		}
		if r.adapters[k] != nil {
			return nil, fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, k)
		}
		r.adapters[k] = a
	}

	seen := make(map[Kind]bool, len(configs))
	for _, cfg := range configs {
		if !cfg.Kind.Valid() {
			return nil, fmt.Errorf("config has invalid kind %d", int(cfg.Kind))
		}
		if seen[cfg.Kind] {
			return nil, fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, cfg.Kind)
		}
		seen[cfg.Kind] = true
		if cfg.Enabled && r.adapters[cfg.Kind] == nil {
			return nil, fmt.Errorf("%w: %s", ErrAdapterMissing, cfg.Kind)
		}
		r.configs = append(r.configs, cfg)
	}

	sort.SliceStable(r.configs, func(i, j int) bool {
		return r.configs[i].Priority < r.configs[j].Priority
	})

	return r, nil
}

// Providers returns enabled providers ordered by priority
func (r *Registry) Providers() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

// Get returns the config for a kind
func (r *Registry) Get(k Kind) (ProviderConfig, error) {
	for _, cfg := range r.configs {
		if cfg.Kind == k {
			return cfg, nil
		}
	}
	return ProviderConfig{}, ErrProviderNotFound
}

// Count returns the number of enabled providers
func (r *Registry) Count() int {
	return len(r.Providers())
}

// Complete dispatches through the adapter table under a fixed per-call
// deadline and stamps the estimated cost on success.
func (r *Registry) Complete(ctx context.Context, cfg ProviderConfig, req AIRequest) AIResponse {
	if !cfg.Kind.Valid() || r.adapters[cfg.Kind] == nil {
		return Failure(cfg, NewProviderError(cfg.Name(), "NO_ADAPTER", ErrAdapterMissing.Error(), 0, false, nil), 0)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp := r.adapters[cfg.Kind].Complete(callCtx, cfg, req)
	if resp.Success {
		resp.EstimatedCost = cfg.Cost(resp.Usage)
	}
	return resp
}
