// Package ingest provides lecture text chunking and the ingestion pipeline.
package ingest

import "fmt"

// Chunker splits text into overlapping fixed-size segments, counted in runes.
// Consecutive chunks share exactly overlap runes; output is deterministic for
// identical input and parameters, which re-ingestion relies on.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. size must be positive and 0 <= overlap < size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into ordered overlapping segments. Text shorter than the
// chunk size yields a single chunk. Empty text yields nil.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
