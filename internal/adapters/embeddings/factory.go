package embeddings

import (
	"fmt"
	"time"

	"resonance/pkg/errors"
)

// ProviderType names a supported embedding backend.
type ProviderType string

// ProviderOpenAI is the only backend today; the factory exists so a
// local or Vertex provider can slot in without touching callers.
const ProviderOpenAI ProviderType = "openai"

// Config selects and configures an embedding backend.
type Config struct {
	Provider ProviderType
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewProvider builds the configured backend.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.Timeout)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"unsupported embedding provider: %s", cfg.Provider)
	}
}

// MustNewProvider is NewProvider for wiring paths where a bad embedding
// config should stop startup.
func MustNewProvider(cfg Config) Provider {
	provider, err := NewProvider(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedding provider: %v", err))
	}
	return provider
}
