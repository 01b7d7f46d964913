package retriever

import (
	"context"
	"fmt"

	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/vector"
)

// ContextK returns how many chunks to retrieve for a difficulty tier.
// Harder questions draw on more surrounding material.
func ContextK(d models.Difficulty) int {
	switch d {
	case models.DifficultyEasy:
		return 2
	case models.DifficultyHard:
		return 4
	default:
		return 3
	}
}

// Retriever embeds queries and fetches the most relevant lecture chunks.
type Retriever struct {
	embedder embedding.Embedder
	indexes  *vector.Manager
}

// New creates a retriever over the given embedder and index manager.
func New(embedder embedding.Embedder, indexes *vector.Manager) *Retriever {
	return &Retriever{embedder: embedder, indexes: indexes}
}

// Retrieve returns up to ContextK(difficulty) chunks from the lecture's
// index, ordered by score descending with document position breaking ties.
func (r *Retriever) Retrieve(ctx context.Context, lectureID int64, difficulty models.Difficulty, query string) ([]vector.Hit, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.indexes.Query(ctx, lectureID, vec, ContextK(difficulty))
	if err != nil {
		return nil, err
	}
	return hits, nil
}
