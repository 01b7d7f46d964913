package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/vector"
)

func TestContextK(t *testing.T) {
	cases := []struct {
		difficulty models.Difficulty
		want       int
	}{
		{models.DifficultyEasy, 2},
		{models.DifficultyMedium, 3},
		{models.DifficultyHard, 4},
	}
	for _, c := range cases {
		if got := ContextK(c.difficulty); got != c.want {
			t.Errorf("ContextK(%s) = %d, want %d", c.difficulty, got, c.want)
		}
	}
}

func TestRetrieve(t *testing.T) {
	embedder := embedding.NewMockEmbedder(64)
	manager, err := vector.NewManager(64)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}

	chunks := []string{
		"mutexes guard shared state between goroutines",
		"channels pass ownership of data between goroutines",
		"garbage collection reclaims unreachable heap objects",
		"the scheduler multiplexes goroutines onto threads",
		"interfaces describe behavior not data layout",
	}
	vecs, err := embedder.EmbedBatch(context.Background(), chunks)
	if err != nil {
		t.Fatalf("embed chunks: %v", err)
	}
	if err := manager.Build(1, chunks, vecs); err != nil {
		t.Fatalf("build index: %v", err)
	}

	r := New(embedder, manager)
	hits, err := r.Retrieve(context.Background(), 1, models.DifficultyHard, "goroutines and channels")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(hits) != 4 {
		t.Fatalf("expected 4 hits for hard difficulty, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits out of order at %d: %f > %f", i, hits[i].Score, hits[i-1].Score)
		}
	}

	easy, err := r.Retrieve(context.Background(), 1, models.DifficultyEasy, "goroutines and channels")
	if err != nil {
		t.Fatalf("retrieve easy: %v", err)
	}
	if len(easy) != 2 {
		t.Errorf("expected 2 hits for easy difficulty, got %d", len(easy))
	}
}

func TestRetrieveMissingLecture(t *testing.T) {
	manager, err := vector.NewManager(64)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	r := New(embedding.NewMockEmbedder(64), manager)

	_, err = r.Retrieve(context.Background(), 99, models.DifficultyMedium, "anything")
	if !errors.Is(err, models.ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}
