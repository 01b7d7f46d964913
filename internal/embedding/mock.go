package embedding

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/hyperjump/mondai/pkg/utils"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests. The same
// text always gets the same vector, and texts sharing words are similar, so
// tests can steer cosine similarity by choosing word overlap.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a deterministic embedder of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed hashes each normalized word into a dimension and unit-normalizes.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, word := range strings.Fields(utils.NormalizeAnswer(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		emb[int(h.Sum32())%e.dimensions] += 1
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
