package embeddings

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

const defaultEmbeddingTimeout = 30 * time.Second

// Dimensionality per known OpenAI embedding model. Unknown models fall
// back to 1536, the small-model width.
var modelDims = map[string]int{
	openai.EmbeddingModelTextEmbedding3Small: 1536,
	openai.EmbeddingModelTextEmbedding3Large: 3072,
	openai.EmbeddingModelTextEmbeddingAda002: 1536,
}

// OpenAIProvider generates embeddings through the official OpenAI SDK.
// Hook dedup and similarity search run on its vectors.
type OpenAIProvider struct {
	client     openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	log        *logger.Logger
}

func NewOpenAIProvider(apiKey string, model string, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "openai API key is required")
	}
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	if timeout == 0 {
		timeout = defaultEmbeddingTimeout
	}

	dims, ok := modelDims[model]
	if !ok {
		dims = 1536
	}

	return &OpenAIProvider{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		model:      openai.EmbeddingModel(model),
		dimensions: dims,
		timeout:    timeout,
		log:        logger.Get().With("component", "openai_embeddings", "model", model),
	}, nil
}

// GenerateEmbedding embeds a single text.
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "text cannot be empty")
	}

	response, err := p.request(ctx, openai.EmbeddingNewParamsInputUnion{
		OfString: openai.String(text),
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai API call failed")
	}
	if len(response.Data) == 0 {
		return nil, errors.Wrapf(errors.ErrInternal, "no embedding data returned")
	}

	vec := toFloat32(response.Data[0].Embedding)

	p.log.Debug("Generated embedding",
		"text_length", len(text),
		"embedding_dims", len(vec),
		"tokens_used", response.Usage.TotalTokens)

	return vec, nil
}

// GenerateBatchEmbeddings embeds all texts in one API call, preserving
// input order.
func (p *OpenAIProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "texts cannot be empty")
	}

	response, err := p.request(ctx, openai.EmbeddingNewParamsInputUnion{
		OfArrayOfStrings: texts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai batch API call failed")
	}
	if len(response.Data) != len(texts) {
		return nil, errors.Wrapf(errors.ErrInternal,
			"expected %d embeddings, got %d", len(texts), len(response.Data))
	}

	vecs := make([][]float32, len(response.Data))
	for i, data := range response.Data {
		vecs[i] = toFloat32(data.Embedding)
	}

	p.log.Debug("Generated batch embeddings",
		"batch_size", len(texts),
		"embedding_dims", len(vecs[0]),
		"tokens_used", response.Usage.TotalTokens)

	return vecs, nil
}

func (p *OpenAIProvider) request(ctx context.Context, input openai.EmbeddingNewParamsInputUnion) (*openai.CreateEmbeddingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: input,
		Model: p.model,
	})
}

func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Name returns the model name. Stored alongside each vector so searches
// never compare embeddings from different models.
func (p *OpenAIProvider) Name() string { return string(p.model) }

// The SDK returns float64 vectors; pgvector columns store float32.
func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
