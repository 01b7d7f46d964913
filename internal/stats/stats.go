package stats

import (
	"context"
	"sync"
	"time"

	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/storage"
)

// Aggregator computes per-lecture answer statistics with a TTL cache.
// Failures are never cached. Concurrent misses for the same lecture may
// recompute redundantly; last write wins.
type Aggregator struct {
	store storage.Storage
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[int64]entry
}

type entry struct {
	stats    *models.LectureStats
	computed time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an aggregator with the given cache TTL.
func New(store storage.Storage, ttl time.Duration, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[int64]entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Stats returns the lecture's statistics, served from cache within the TTL.
// AnswerRate is answers per question; CorrectRate is the fraction of
// answers graded correct.
func (a *Aggregator) Stats(ctx context.Context, lectureID int64) (*models.LectureStats, error) {
	a.mu.RLock()
	e, ok := a.cache[lectureID]
	a.mu.RUnlock()
	if ok && a.now().Sub(e.computed) < a.ttl {
		return e.stats, nil
	}

	s, err := a.compute(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.cache[lectureID] = entry{stats: s, computed: a.now()}
	a.mu.Unlock()
	return s, nil
}

// Invalidate drops the cached entry for a lecture.
func (a *Aggregator) Invalidate(lectureID int64) {
	a.mu.Lock()
	delete(a.cache, lectureID)
	a.mu.Unlock()
}

func (a *Aggregator) compute(ctx context.Context, lectureID int64) (*models.LectureStats, error) {
	// Existence check so unknown lectures fail instead of reporting zeros.
	if _, err := a.store.GetLecture(ctx, lectureID); err != nil {
		return nil, err
	}
	questions, err := a.store.CountQAPairs(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	answers, correct, err := a.store.CountStudentAnswers(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	s := &models.LectureStats{
		LectureID:     lectureID,
		QuestionCount: questions,
		AnswerCount:   answers,
	}
	if questions > 0 {
		s.AnswerRate = float64(answers) / float64(questions)
	}
	if answers > 0 {
		s.CorrectRate = float64(correct) / float64(answers)
	}
	return s, nil
}
