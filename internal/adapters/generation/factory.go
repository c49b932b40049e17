package generation

import (
	"context"
	"strings"
	"sync"
	"time"

	"resonance/internal/adapters/config"
	"resonance/pkg/errors"
)

// Registry stores configured generation providers.
type Registry struct {
	providers   map[ProviderName]Provider
	defaultName ProviderName
	mu          sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderName]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return errors.Wrap(errors.ErrInvalidInput, "provider is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "provider %s already registered", name)
	}

	r.providers[name] = provider
	return nil
}

// Get returns the provider by name.
func (r *Registry) Get(name ProviderName) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "provider %s not registered", name)
	}

	return provider, nil
}

// Default returns the provider picked at build time. Falls back to any
// registered provider when the configured default is missing.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if provider, ok := r.providers[r.defaultName]; ok {
		return provider, nil
	}
	for _, provider := range r.providers {
		return provider, nil
	}

	return nil, errors.Wrap(errors.ErrGenerationUnavailable, "no generation providers registered")
}

// List returns the names of all registered providers.
func (r *Registry) List() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]ProviderName, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	return names
}

// BuildRegistry initializes a Registry with all providers that have API keys
// configured. All providers share a single rate limit since calls funnel
// through one synthesis path.
func BuildRegistry(ctx context.Context, cfg config.AIConfig) (*Registry, error) {
	registry := NewRegistry()
	registry.defaultName = NormalizeProviderName(cfg.DefaultProvider)

	if cfg.OpenAIKey != "" {
		limiter := NewLimiter("openai", cfg.RateLimitRPM)
		provider, err := NewOpenAIProvider(cfg.OpenAIKey, defaultTimeout(), limiter)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	if cfg.GeminiKey != "" {
		limiter := NewLimiter("gemini", cfg.RateLimitRPM)
		provider, err := NewGeminiProvider(ctx, cfg.GeminiKey, defaultTimeout(), limiter)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	if len(registry.List()) == 0 {
		return nil, errors.Wrap(errors.ErrGenerationUnavailable, "no generation providers configured")
	}

	return registry, nil
}

func defaultTimeout() time.Duration {
	return 60 * time.Second
}

// NormalizeProviderName makes provider lookup more forgiving.
func NormalizeProviderName(name string) ProviderName {
	return ProviderName(strings.ToLower(strings.TrimSpace(name)))
}
