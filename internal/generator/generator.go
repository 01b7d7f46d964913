package generator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/config"
	"github.com/hyperjump/mondai/internal/llm"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/retriever"
	"github.com/hyperjump/mondai/internal/storage"
)

// Result reports what a generation request produced. Partial is set when
// fewer pairs than requested survived deduplication within the round limit.
type Result struct {
	Pairs     []*models.QAPair
	Requested int
	Partial   bool
}

// Generator produces question/answer pairs for a lecture by retrieving
// relevant chunks and prompting the language model.
type Generator struct {
	store     storage.Storage
	retriever *retriever.Retriever
	completer llm.Completer
	cfg       config.GenerationConfig
	logger    *zap.Logger
}

// New creates a generator.
func New(store storage.Storage, r *retriever.Retriever, completer llm.Completer, cfg config.GenerationConfig, logger *zap.Logger) *Generator {
	return &Generator{
		store:     store,
		retriever: r,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Generate produces up to count new pairs at the given difficulty and
// persists them atomically. The lecture must be ready. Questions that
// near-duplicate existing or just-generated ones are discarded; when the
// round limit runs out before count pairs are collected, the accumulated
// pairs are still persisted and the result is marked partial. A request
// that yields nothing fails with ErrGenerationFailed and persists nothing.
func (g *Generator) Generate(ctx context.Context, lectureID int64, difficulty models.Difficulty, count int) (*Result, error) {
	if !difficulty.Valid() {
		return nil, fmt.Errorf("invalid difficulty %q", difficulty)
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}
	if count > g.cfg.MaxPerRequest {
		count = g.cfg.MaxPerRequest
	}

	lec, err := g.store.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if lec.Status != models.StatusReady {
		return nil, fmt.Errorf("%w: lecture %d is %s", models.ErrLectureNotReady, lectureID, lec.Status)
	}

	existing, err := g.store.ListQAPairsByLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("list existing pairs: %w", err)
	}
	avoid := make([]string, 0, len(existing))
	for _, p := range existing {
		avoid = append(avoid, p.Question)
	}
	seen := newDedupSet(g.cfg.DuplicateThreshold, avoid)

	query := fmt.Sprintf("%s key concepts for %s questions", lec.Title, difficulty)
	var collected []*models.QAPair
	for round := 0; round < g.cfg.MaxRounds && len(collected) < count; round++ {
		hits, err := g.retriever.Retrieve(ctx, lectureID, difficulty, query)
		if err != nil {
			return nil, err
		}
		chunks := make([]string, len(hits))
		for i, h := range hits {
			chunks[i] = h.Content
		}

		remaining := count - len(collected)
		questions, err := g.complete(ctx, chunks, difficulty, remaining, seen.questions)
		if err != nil {
			g.logger.Warn("generation round failed",
				zap.Int64("lecture_id", lectureID),
				zap.Int("round", round+1),
				zap.Error(err),
			)
			continue
		}
		for _, q := range questions {
			if len(collected) >= count {
				break
			}
			if !seen.Add(q.Question) {
				g.logger.Debug("discarded near-duplicate question",
					zap.Int64("lecture_id", lectureID),
					zap.String("question", q.Question),
				)
				continue
			}
			collected = append(collected, &models.QAPair{
				LectureID:  lectureID,
				Question:   q.Question,
				Answer:     q.Answer,
				Difficulty: difficulty,
			})
		}
	}

	if len(collected) == 0 {
		return nil, fmt.Errorf("%w: no new questions for lecture %d", models.ErrGenerationFailed, lectureID)
	}
	if err := g.store.CreateQAPairs(ctx, collected); err != nil {
		return nil, fmt.Errorf("persist pairs: %w", err)
	}
	g.logger.Info("generated qa pairs",
		zap.Int64("lecture_id", lectureID),
		zap.String("difficulty", string(difficulty)),
		zap.Int("requested", count),
		zap.Int("persisted", len(collected)),
	)
	return &Result{
		Pairs:     collected,
		Requested: count,
		Partial:   len(collected) < count,
	}, nil
}

// complete prompts the model, retrying on malformed replies up to the
// configured limit. Other completion errors are not retried here; the
// round loop decides whether to try again.
func (g *Generator) complete(ctx context.Context, chunks []string, difficulty models.Difficulty, count int, avoid []string) ([]generatedQuestion, error) {
	user := buildUserPrompt(chunks, difficulty, count, avoid)
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxParseRetries; attempt++ {
		raw, err := g.completer.Complete(ctx, systemPrompt, user)
		if err != nil {
			return nil, err
		}
		questions, err := parseQuestions(raw, difficulty)
		if err == nil {
			return questions, nil
		}
		if !errors.Is(err, errMalformed) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
