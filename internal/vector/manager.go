package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/mondai/internal/models"
)

// lectureIndex holds the chunks and embeddings for one lecture, in chunk
// order. Vectors are unit-normalized so inner product is cosine similarity.
type lectureIndex struct {
	chunks  []string
	vectors [][]float32
}

// Manager keeps one index per lecture. Build replaces any prior index for
// the lecture (idempotent re-ingestion); Query on a lecture without an
// index fails with ErrNotReady rather than returning an empty result.
type Manager struct {
	dimensions int
	mu         sync.RWMutex
	indexes    map[int64]*lectureIndex
}

// NewManager creates a manager for vectors of the given dimension.
func NewManager(dimensions int) (*Manager, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Manager{
		dimensions: dimensions,
		indexes:    make(map[int64]*lectureIndex),
	}, nil
}

// Build replaces the lecture's index with the given chunks and vectors.
// chunks[i] corresponds to vectors[i]; order is the chunk position order.
func (m *Manager) Build(lectureID int64, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return fmt.Errorf("cannot build empty index for lecture %d", lectureID)
	}
	idx := &lectureIndex{
		chunks:  make([]string, len(chunks)),
		vectors: make([][]float32, len(vectors)),
	}
	copy(idx.chunks, chunks)
	for i, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, v)
		idx.vectors[i] = vec
	}
	m.mu.Lock()
	m.indexes[lectureID] = idx
	m.mu.Unlock()
	return nil
}

// Query returns up to k hits for the lecture ordered by score descending,
// ties broken by chunk position ascending for determinism.
func (m *Manager) Query(ctx context.Context, lectureID int64, query []float32, k int) ([]Hit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	idx, ok := m.indexes[lectureID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: lecture %d", models.ErrNotReady, lectureID)
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, len(idx.chunks))
	for i, vec := range idx.vectors {
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		hits[i] = Hit{Content: idx.chunks[i], Score: dot, Position: i}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Ready reports whether the lecture has a built index.
func (m *Manager) Ready(lectureID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[lectureID]
	return ok
}

// Remove drops the lecture's index if present.
func (m *Manager) Remove(lectureID int64) {
	m.mu.Lock()
	delete(m.indexes, lectureID)
	m.mu.Unlock()
}

// Size returns the number of chunks indexed for the lecture, 0 if none.
func (m *Manager) Size(lectureID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.indexes[lectureID]; ok {
		return len(idx.chunks)
	}
	return 0
}

// Dimensions returns the vector dimension.
func (m *Manager) Dimensions() int {
	return m.dimensions
}
