package evaluator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/storage"
	"github.com/hyperjump/mondai/internal/vector"
	"github.com/hyperjump/mondai/pkg/utils"
)

// Matcher decides whether a student's answer matches the reference answer.
type Matcher interface {
	Match(ctx context.Context, reference, student string) (bool, error)
}

// TwoTierMatcher accepts an answer on exact normalized equality, and
// otherwise on embedding cosine similarity at or above the threshold.
// The cheap check runs first so trivially correct answers never hit the
// embedding service.
type TwoTierMatcher struct {
	embedder  embedding.Embedder
	threshold float64
}

// NewTwoTierMatcher creates a matcher with the given semantic threshold.
func NewTwoTierMatcher(embedder embedding.Embedder, threshold float64) *TwoTierMatcher {
	return &TwoTierMatcher{embedder: embedder, threshold: threshold}
}

// Match reports whether student matches reference.
func (m *TwoTierMatcher) Match(ctx context.Context, reference, student string) (bool, error) {
	ref := utils.NormalizeAnswer(reference)
	got := utils.NormalizeAnswer(student)
	if got == "" {
		return false, nil
	}
	if ref == got {
		return true, nil
	}
	vecs, err := m.embedder.EmbedBatch(ctx, []string{ref, got})
	if err != nil {
		return false, fmt.Errorf("embed answers: %w", err)
	}
	return vector.CosineSimilarity(vecs[0], vecs[1]) >= m.threshold, nil
}

// Evaluator grades student answers against stored reference answers and
// records the attempts.
type Evaluator struct {
	store   storage.Storage
	matcher Matcher
	logger  *zap.Logger
}

// New creates an evaluator.
func New(store storage.Storage, matcher Matcher, logger *zap.Logger) *Evaluator {
	return &Evaluator{store: store, matcher: matcher, logger: logger}
}

// Evaluate grades the answer for the given question, persists the attempt,
// and returns the stored record. An unknown question fails with
// ErrQANotFound and records nothing.
func (e *Evaluator) Evaluate(ctx context.Context, qaID int64, studentID, answer string) (*models.StudentAnswer, error) {
	qa, err := e.store.GetQAPair(ctx, qaID)
	if err != nil {
		return nil, err
	}
	correct, err := e.matcher.Match(ctx, qa.Answer, answer)
	if err != nil {
		return nil, err
	}
	record := &models.StudentAnswer{
		QAID:      qaID,
		StudentID: studentID,
		Answer:    answer,
		IsCorrect: correct,
	}
	if err := e.store.CreateStudentAnswer(ctx, record); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	e.logger.Debug("evaluated answer",
		zap.Int64("qa_id", qaID),
		zap.String("student_id", studentID),
		zap.Bool("correct", correct),
	)
	return record, nil
}
