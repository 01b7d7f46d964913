// Package embedding provides text embedding via the OpenAI embeddings API,
// with caching and a deterministic mock for tests.
package embedding

import "context"

// Embedder produces vector embeddings for text. Vectors are unit-normalized
// so inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
