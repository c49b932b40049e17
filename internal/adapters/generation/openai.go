package generation

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Ensure OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)

// OpenAIProvider generates completions through the official OpenAI Go SDK.
type OpenAIProvider struct {
	client  openai.Client // NewClient returns Client (not *Client)
	limiter *Limiter
	timeout time.Duration
	log     *logger.Logger
}

// NewOpenAIProvider creates an OpenAI generation provider.
func NewOpenAIProvider(apiKey string, timeout time.Duration, limiter *Limiter) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "openai API key is required")
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		limiter: limiter,
		timeout: timeout,
		log:     logger.Get().With("component", "openai_generation"),
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() ProviderName { return ProviderNameOpenAI }

// Complete sends a chat completion request and returns the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
	}
	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	params.Messages = append(params.Messages, openai.UserMessage(req.Prompt))

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		// Distinguish caller cancellation from provider failure so the
		// pipeline can map timeouts separately.
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "openai completion cancelled")
		}
		return nil, errors.Wrapf(errors.ErrGenerationUnavailable, "openai completion: %v", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrGenerationUnavailable, "openai returned no choices")
	}

	p.log.Debug("Completion generated",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
