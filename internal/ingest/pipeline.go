package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/extract"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/storage"
	"github.com/hyperjump/mondai/internal/vector"
	"github.com/hyperjump/mondai/pkg/utils"
)

// Pipeline drives a lecture from raw file to a ready-to-query vector index.
// It owns the lecture's processing state machine: uploaded -> processing ->
// ready on success, -> error (with the reason recorded) on any failure.
type Pipeline struct {
	store     storage.Storage
	embedder  embedding.Embedder
	indexes   *vector.Manager
	chunker   *Chunker
	extractor *extract.Extractor
	logger    *zap.Logger // optional; when set, logs pipeline events
	wg        sync.WaitGroup
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for pipeline events.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(
	store storage.Storage,
	embedder embedding.Embedder,
	indexes *vector.Manager,
	chunker *Chunker,
	extractor *extract.Extractor,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		store:     store,
		embedder:  embedder,
		indexes:   indexes,
		chunker:   chunker,
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start claims the lecture for processing and runs the rest of the pipeline
// in the background. It returns as soon as the lecture row has transitioned
// to processing; status is polled via a separate read. A concurrent duplicate
// request fails with ErrAlreadyProcessing; a ready lecture fails with
// ErrAlreadyIngested (use Reingest).
func (p *Pipeline) Start(ctx context.Context, lectureID int64) error {
	if err := p.store.ClaimProcessing(ctx, lectureID); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// The triggering request's context ends when it returns; processing
		// continues under its own context.
		p.process(context.Background(), lectureID)
	}()
	return nil
}

// Ingest claims the lecture and processes it synchronously. Used by the CLI
// and tests; same state machine as Start.
func (p *Pipeline) Ingest(ctx context.Context, lectureID int64) error {
	if err := p.store.ClaimProcessing(ctx, lectureID); err != nil {
		return err
	}
	return p.process(ctx, lectureID)
}

// Reingest resets a ready/error lecture to uploaded and starts ingestion
// again. Rebuilding replaces the prior index.
func (p *Pipeline) Reingest(ctx context.Context, lectureID int64) error {
	if err := p.store.ResetLecture(ctx, lectureID); err != nil {
		return err
	}
	return p.Start(ctx, lectureID)
}

// Wait blocks until all background ingestions have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// process runs extraction, chunking, embedding, and index build, then records
// the terminal state. The returned error mirrors what was recorded.
func (p *Pipeline) process(ctx context.Context, lectureID int64) error {
	lec, err := p.store.GetLecture(ctx, lectureID)
	if err != nil {
		return p.fail(ctx, lectureID, fmt.Errorf("load lecture: %w", err))
	}
	text, err := p.extractor.Extract(lec.Path)
	if err != nil {
		return p.fail(ctx, lectureID, fmt.Errorf("extract %s: %w", lec.Filename, err))
	}
	text = utils.NormalizeSpace(text)
	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		return p.fail(ctx, lectureID, fmt.Errorf("no text extracted from %s", lec.Filename))
	}
	embeddings, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return p.fail(ctx, lectureID, fmt.Errorf("embed chunks: %w", err))
	}
	if err := p.indexes.Build(lectureID, chunks, embeddings); err != nil {
		return p.fail(ctx, lectureID, fmt.Errorf("build index: %w", err))
	}
	if err := p.store.SetLectureStatus(ctx, lectureID, models.StatusReady, ""); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Info("lecture ingested",
			zap.Int64("lecture_id", lectureID),
			zap.Int("chunks", len(chunks)),
		)
	}
	return nil
}

// fail records the failure reason and moves the lecture to error.
func (p *Pipeline) fail(ctx context.Context, lectureID int64, cause error) error {
	if p.logger != nil {
		p.logger.Warn("lecture ingestion failed",
			zap.Int64("lecture_id", lectureID),
			zap.Error(cause),
		)
	}
	if err := p.store.SetLectureStatus(ctx, lectureID, models.StatusError, cause.Error()); err != nil && p.logger != nil {
		p.logger.Error("record ingestion failure", zap.Int64("lecture_id", lectureID), zap.Error(err))
	}
	return cause
}

// IngestFile registers the file at path as a lecture (or finds the existing
// lecture by stored path) and starts ingestion. Used by the directory
// watcher; files already ready are re-ingested because the content changed.
func (p *Pipeline) IngestFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	if !extract.Supported(abs) {
		return fmt.Errorf("unsupported lecture format: %s", filepath.Ext(abs))
	}
	lec, err := p.store.GetLectureByPath(ctx, abs)
	if err == nil {
		switch lec.Status {
		case models.StatusReady, models.StatusError:
			return p.Reingest(ctx, lec.ID)
		case models.StatusProcessing:
			return fmt.Errorf("%w: %d", models.ErrAlreadyProcessing, lec.ID)
		default:
			return p.Start(ctx, lec.ID)
		}
	}
	name := filepath.Base(abs)
	lec = &models.LectureMaterial{
		Title:    name,
		Filename: name,
		Path:     abs,
	}
	if err := p.store.CreateLecture(ctx, lec); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return p.Start(ctx, lec.ID)
}
