package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/extract"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/storage"
	"github.com/hyperjump/mondai/internal/vector"
)

func newTestPipeline(t *testing.T) (*Pipeline, storage.Storage, *vector.Manager) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	manager, err := vector.NewManager(64)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	chunker, err := NewChunker(50, 10)
	if err != nil {
		t.Fatalf("create chunker: %v", err)
	}
	p := NewPipeline(store, embedding.NewMockEmbedder(64), manager, chunker, extract.NewExtractor())
	return p, store, manager
}

func writeLectureFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lecture.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write lecture file: %v", err)
	}
	return path
}

func createLecture(t *testing.T, store storage.Storage, path string) int64 {
	t.Helper()
	lec := &models.LectureMaterial{
		Title:    "Test Lecture",
		Filename: filepath.Base(path),
		Path:     path,
	}
	if err := store.CreateLecture(context.Background(), lec); err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	return lec.ID
}

func TestPipelineIngestSuccess(t *testing.T) {
	p, store, manager := newTestPipeline(t)
	path := writeLectureFile(t, "Operating systems schedule processes using priority queues and time slices across cores.")
	id := createLecture(t, store, path)

	if err := p.Ingest(context.Background(), id); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	lec, err := store.GetLecture(context.Background(), id)
	if err != nil {
		t.Fatalf("get lecture: %v", err)
	}
	if lec.Status != models.StatusReady {
		t.Errorf("expected status ready, got %s", lec.Status)
	}
	if lec.LastError != "" {
		t.Errorf("expected empty last error, got %q", lec.LastError)
	}
	if !manager.Ready(id) {
		t.Error("expected index to be built")
	}
}

func TestPipelineIngestTwiceRejected(t *testing.T) {
	p, store, _ := newTestPipeline(t)
	path := writeLectureFile(t, "Short lecture about memory management and paging.")
	id := createLecture(t, store, path)

	if err := p.Ingest(context.Background(), id); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	err := p.Ingest(context.Background(), id)
	if !errors.Is(err, models.ErrAlreadyIngested) {
		t.Errorf("expected ErrAlreadyIngested, got %v", err)
	}
}

func TestPipelineIngestFailureRecordsReason(t *testing.T) {
	p, store, manager := newTestPipeline(t)
	id := createLecture(t, store, filepath.Join(t.TempDir(), "missing.txt"))

	if err := p.Ingest(context.Background(), id); err == nil {
		t.Fatal("expected ingest of missing file to fail")
	}

	lec, err := store.GetLecture(context.Background(), id)
	if err != nil {
		t.Fatalf("get lecture: %v", err)
	}
	if lec.Status != models.StatusError {
		t.Errorf("expected status error, got %s", lec.Status)
	}
	if lec.LastError == "" {
		t.Error("expected failure reason to be recorded")
	}
	if manager.Ready(id) {
		t.Error("failed ingest must not leave an index behind")
	}
}

func TestPipelineReingestAfterError(t *testing.T) {
	p, store, _ := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "lecture.txt")
	id := createLecture(t, store, path)

	// First attempt fails because the file does not exist yet.
	if err := p.Ingest(context.Background(), id); err == nil {
		t.Fatal("expected first ingest to fail")
	}
	if err := os.WriteFile(path, []byte("Concurrency primitives include mutexes and channels."), 0o644); err != nil {
		t.Fatalf("write lecture file: %v", err)
	}

	if err := p.Reingest(context.Background(), id); err != nil {
		t.Fatalf("reingest: %v", err)
	}
	p.Wait()

	lec, err := store.GetLecture(context.Background(), id)
	if err != nil {
		t.Fatalf("get lecture: %v", err)
	}
	if lec.Status != models.StatusReady {
		t.Errorf("expected status ready after reingest, got %s (last error %q)", lec.Status, lec.LastError)
	}
}

func TestPipelineStartRunsInBackground(t *testing.T) {
	p, store, manager := newTestPipeline(t)
	path := writeLectureFile(t, "Databases use write ahead logs for durability and crash recovery.")
	id := createLecture(t, store, path)

	if err := p.Start(context.Background(), id); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.Wait()

	lec, err := store.GetLecture(context.Background(), id)
	if err != nil {
		t.Fatalf("get lecture: %v", err)
	}
	if lec.Status != models.StatusReady {
		t.Errorf("expected status ready, got %s", lec.Status)
	}
	if !manager.Ready(id) {
		t.Error("expected index to be built")
	}
}

func TestPipelineIngestFileRegistersLecture(t *testing.T) {
	p, store, _ := newTestPipeline(t)
	path := writeLectureFile(t, "Networks route packets between autonomous systems using BGP.")

	if err := p.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("ingest file: %v", err)
	}
	p.Wait()

	lec, err := store.GetLectureByPath(context.Background(), path)
	if err != nil {
		t.Fatalf("get lecture by path: %v", err)
	}
	if lec.Status != models.StatusReady {
		t.Errorf("expected status ready, got %s", lec.Status)
	}

	// Re-delivery of the same path re-ingests instead of duplicating.
	if err := p.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("ingest file again: %v", err)
	}
	p.Wait()
	lectures, err := store.ListLectures(context.Background())
	if err != nil {
		t.Fatalf("list lectures: %v", err)
	}
	if len(lectures) != 1 {
		t.Errorf("expected a single lecture, got %d", len(lectures))
	}
}

func TestPipelineUnsupportedExtension(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	path := filepath.Join(t.TempDir(), "slides.pptx")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := p.IngestFile(context.Background(), path); err == nil {
		t.Error("expected unsupported format error")
	}
}
