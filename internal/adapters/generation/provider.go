package generation

import "context"

// ProviderName identifies a text generation backend.
type ProviderName string

const (
	ProviderNameOpenAI ProviderName = "openai"
	ProviderNameGemini ProviderName = "gemini"
)

// Request is a single-turn completion request issued during script synthesis.
// The synthesizer renders prompts from templates and never needs multi-turn
// history, so the surface stays deliberately small.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Usage tracks token consumption for cost accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the completion returned by a provider.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider is the LLM surface the synthesizer talks to.
type Provider interface {
	Name() ProviderName

	// Complete sends a single completion request.
	Complete(ctx context.Context, req Request) (*Response, error)
}
