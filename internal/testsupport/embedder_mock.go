package testsupport

import (
	"context"
	"hash/fnv"

	"resonance/internal/adapters/embeddings"
)

// Compile-time check
var _ embeddings.Provider = (*MockEmbedder)(nil)

// MockEmbedder provides deterministic embeddings for tests. Vectors are
// derived from the input text, so equal inputs always embed identically
// without calling a real provider.
type MockEmbedder struct {
	dims      int
	overrides map[string][]float32
}

// NewMockEmbedder creates a mock embedder with the given dimensionality
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return &MockEmbedder{
		dims:      dims,
		overrides: make(map[string][]float32),
	}
}

// WithEmbedding pins the vector returned for a specific text
func (m *MockEmbedder) WithEmbedding(text string, vector []float32) *MockEmbedder {
	m.overrides[text] = vector
	return m
}

// GenerateEmbedding returns a deterministic vector for the text
func (m *MockEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if vec, ok := m.overrides[text]; ok {
		return vec, nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, m.dims)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%2000)/1000.0 - 1.0
	}

	return vec, nil
}

// GenerateBatchEmbeddings embeds each text independently
func (m *MockEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the vector dimensionality
func (m *MockEmbedder) Dimensions() int { return m.dims }

// Name identifies the mock in logs
func (m *MockEmbedder) Name() string { return "mock" }
