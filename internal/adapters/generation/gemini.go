package generation

import (
	"context"
	"time"

	"google.golang.org/genai"

	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// GeminiProvider generates completions through the Google GenAI SDK.
type GeminiProvider struct {
	client  *genai.Client
	limiter *Limiter
	timeout time.Duration
	log     *logger.Logger
}

// NewGeminiProvider creates a Gemini generation provider.
func NewGeminiProvider(ctx context.Context, apiKey string, timeout time.Duration, limiter *Limiter) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "gemini API key is required")
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	return &GeminiProvider{
		client:  client,
		limiter: limiter,
		timeout: timeout,
		log:     logger.Get().With("component", "gemini_generation"),
	}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() ProviderName { return ProviderNameGemini }

// Complete sends a generate-content request and returns the candidate text.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(callCtx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "gemini completion cancelled")
		}
		return nil, errors.Wrapf(errors.ErrGenerationUnavailable, "gemini completion: %v", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.Wrapf(errors.ErrGenerationUnavailable, "gemini returned no text")
	}

	out := &Response{
		Text:  text,
		Model: req.Model,
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	p.log.Debug("Completion generated",
		"model", req.Model,
		"total_tokens", out.Usage.TotalTokens)

	return out, nil
}
