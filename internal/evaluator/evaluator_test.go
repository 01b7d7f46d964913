package evaluator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/storage"
)

func setupEvaluator(t *testing.T, threshold float64) (*Evaluator, storage.Storage, int64) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	lec := &models.LectureMaterial{Title: "Math", Filename: "m.txt", Path: "/tmp/m.txt"}
	if err := store.CreateLecture(context.Background(), lec); err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	pair := &models.QAPair{
		LectureID:  lec.ID,
		Question:   "What is six times seven?",
		Answer:     "42",
		Difficulty: models.DifficultyEasy,
	}
	if err := store.CreateQAPairs(context.Background(), []*models.QAPair{pair}); err != nil {
		t.Fatalf("create pair: %v", err)
	}

	matcher := NewTwoTierMatcher(embedding.NewMockEmbedder(256), threshold)
	return New(store, matcher, zap.NewNop()), store, pair.ID
}

func TestEvaluateExactMatch(t *testing.T) {
	e, store, qaID := setupEvaluator(t, 0.80)

	record, err := e.Evaluate(context.Background(), qaID, "student-1", "  42 ")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !record.IsCorrect {
		t.Error("normalized exact answer must be correct")
	}
	if record.ID == 0 {
		t.Error("expected a persisted record id")
	}

	answers, err := store.ListStudentAnswersByQA(context.Background(), qaID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected 1 stored answer, got %d", len(answers))
	}
}

func TestEvaluateWrongAnswer(t *testing.T) {
	e, _, qaID := setupEvaluator(t, 0.80)

	record, err := e.Evaluate(context.Background(), qaID, "student-1", "54")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if record.IsCorrect {
		t.Error("wrong answer must not be correct")
	}
}

func TestEvaluateEmptyAnswer(t *testing.T) {
	e, _, qaID := setupEvaluator(t, 0.80)

	record, err := e.Evaluate(context.Background(), qaID, "student-1", "   ")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if record.IsCorrect {
		t.Error("blank answer must not be correct")
	}
}

func TestEvaluateUnknownQuestion(t *testing.T) {
	e, store, _ := setupEvaluator(t, 0.80)

	_, err := e.Evaluate(context.Background(), 9999, "student-1", "42")
	if !errors.Is(err, models.ErrQANotFound) {
		t.Fatalf("expected ErrQANotFound, got %v", err)
	}

	answers, err := store.ListStudentAnswersByQA(context.Background(), 9999)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 0 {
		t.Error("failed evaluation must record nothing")
	}
}

func TestTwoTierMatcherSemantic(t *testing.T) {
	matcher := NewTwoTierMatcher(embedding.NewMockEmbedder(256), 0.5)

	reference := "channels carry typed values between running goroutines"

	// Same vocabulary with one word changed stays above the threshold.
	ok, err := matcher.Match(context.Background(), reference, "channels carry typed values between concurrent goroutines")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !ok {
		t.Error("high word overlap must match semantically")
	}

	// Disjoint vocabulary falls below it.
	ok, err = matcher.Match(context.Background(), reference, "paging swaps memory frames to disk")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if ok {
		t.Error("unrelated answer must not match")
	}
}
