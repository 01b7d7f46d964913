package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/config"
	"github.com/hyperjump/mondai/internal/embedding"
	"github.com/hyperjump/mondai/internal/evaluator"
	"github.com/hyperjump/mondai/internal/extract"
	"github.com/hyperjump/mondai/internal/generator"
	"github.com/hyperjump/mondai/internal/ingest"
	"github.com/hyperjump/mondai/internal/models"
	"github.com/hyperjump/mondai/internal/retriever"
	"github.com/hyperjump/mondai/internal/stats"
	"github.com/hyperjump/mondai/internal/storage"
	"github.com/hyperjump/mondai/internal/vector"
)

// cannedCompleter always returns the same reply.
type cannedCompleter struct {
	reply string
}

func (c *cannedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return c.reply, nil
}

type testEnv struct {
	srv      *Server
	store    storage.Storage
	pipeline *ingest.Pipeline
	router   http.Handler
}

func newTestEnv(t *testing.T, reply string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(dir + "/db.sqlite")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	embedder := embedding.NewMockEmbedder(64)
	manager, err := vector.NewManager(64)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	chunker, err := ingest.NewChunker(200, 40)
	if err != nil {
		t.Fatalf("create chunker: %v", err)
	}
	pipeline := ingest.NewPipeline(store, embedder, manager, chunker, extract.NewExtractor())

	r := retriever.New(embedder, manager)
	genCfg := config.GenerationConfig{MaxPerRequest: 20, MaxParseRetries: 2, MaxRounds: 3, DuplicateThreshold: 0.85}
	gen := generator.New(store, r, &cannedCompleter{reply: reply}, genCfg, zap.NewNop())
	eval := evaluator.New(store, evaluator.NewTwoTierMatcher(embedder, 0.80), zap.NewNop())
	agg := stats.New(store, 30*time.Second)

	srv := NewServer(store, pipeline, gen, eval, agg, dir, &config.ServerConfig{Port: 8080}, zap.NewNop())
	return &testEnv{srv: srv, store: store, pipeline: pipeline, router: srv.Router()}
}

func (e *testEnv) uploadLecture(t *testing.T, filename, content string) *models.LectureMaterial {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/lectures", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status: got %d, body: %s", w.Code, w.Body.String())
	}
	var lec models.LectureMaterial
	if err := json.NewDecoder(w.Body).Decode(&lec); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	e.pipeline.Wait()
	return &lec
}

func (e *testEnv) postJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

const generationReply = `{"questions":[
	{"question":"What does the scheduler multiplex?","answer":"Goroutines onto operating system threads.","difficulty":"medium"},
	{"question":"What do channels synchronize?","answer":"Communicating goroutines.","difficulty":"medium"}
]}`

const lectureText = "The Go scheduler multiplexes goroutines onto operating system threads. " +
	"Channels synchronize communicating goroutines and carry typed values between them."

func TestUploadAndStatus(t *testing.T) {
	env := newTestEnv(t, generationReply)
	lec := env.uploadLecture(t, "lecture.txt", lectureText)

	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/lectures/%d/status", lec.ID), nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Status models.LectureStatus `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != models.StatusReady {
		t.Errorf("lecture status: got %s, want ready", out.Status)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t, generationReply)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "slides.pptx")
	fw.Write([]byte("x"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/lectures", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	env := newTestEnv(t, generationReply)
	lec := env.uploadLecture(t, "lecture.txt", lectureText)

	w := env.postJSON(t, "/api/v1/generate", map[string]interface{}{
		"lecture_id": lec.ID, "difficulty": "medium", "count": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Questions []*models.QAPair `json:"questions"`
		Partial   bool             `json:"partial"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Questions) != 2 {
		t.Errorf("questions: got %d, want 2", len(out.Questions))
	}
	if out.Partial {
		t.Error("expected complete result")
	}
}

func TestGenerateNotReady(t *testing.T) {
	env := newTestEnv(t, generationReply)
	lec := &models.LectureMaterial{Title: "Pending", Filename: "p.txt", Path: "/tmp/p.txt"}
	if err := env.store.CreateLecture(context.Background(), lec); err != nil {
		t.Fatalf("create lecture: %v", err)
	}

	w := env.postJSON(t, "/api/v1/generate", map[string]interface{}{
		"lecture_id": lec.ID, "difficulty": "easy", "count": 1,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", w.Code)
	}
}

func TestGenerateInvalidDifficulty(t *testing.T) {
	env := newTestEnv(t, generationReply)
	w := env.postJSON(t, "/api/v1/generate", map[string]interface{}{
		"lecture_id": 1, "difficulty": "impossible", "count": 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestAnswerFlowAndStats(t *testing.T) {
	env := newTestEnv(t, generationReply)
	lec := env.uploadLecture(t, "lecture.txt", lectureText)

	w := env.postJSON(t, "/api/v1/generate", map[string]interface{}{
		"lecture_id": lec.ID, "difficulty": "medium", "count": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate: got %d", w.Code)
	}
	var gen struct {
		Questions []*models.QAPair `json:"questions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&gen); err != nil {
		t.Fatal(err)
	}

	w = env.postJSON(t, "/api/v1/answers", map[string]interface{}{
		"qa_id":      gen.Questions[0].ID,
		"student_id": "student-1",
		"answer":     gen.Questions[0].Answer,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("answer status: got %d, body: %s", w.Code, w.Body.String())
	}
	var record models.StudentAnswer
	if err := json.NewDecoder(w.Body).Decode(&record); err != nil {
		t.Fatal(err)
	}
	if !record.IsCorrect {
		t.Error("verbatim reference answer must grade correct")
	}

	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/lectures/%d/stats", lec.ID), nil)
	sw := httptest.NewRecorder()
	env.router.ServeHTTP(sw, r)
	if sw.Code != http.StatusOK {
		t.Fatalf("stats status: got %d", sw.Code)
	}
	var s models.LectureStats
	if err := json.NewDecoder(sw.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.QuestionCount != 2 || s.AnswerCount != 1 {
		t.Errorf("stats: got %+v", s)
	}
	if s.CorrectRate != 1 {
		t.Errorf("correct rate: got %f, want 1", s.CorrectRate)
	}
}

func TestAnswerUnknownQuestion(t *testing.T) {
	env := newTestEnv(t, generationReply)
	w := env.postJSON(t, "/api/v1/answers", map[string]interface{}{
		"qa_id": 9999, "student_id": "student-1", "answer": "42",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestDeleteLectureBlockedByQuestions(t *testing.T) {
	env := newTestEnv(t, generationReply)
	lec := env.uploadLecture(t, "lecture.txt", lectureText)

	w := env.postJSON(t, "/api/v1/generate", map[string]interface{}{
		"lecture_id": lec.ID, "difficulty": "medium", "count": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate: got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/lectures/%d", lec.ID), nil)
	dw := httptest.NewRecorder()
	env.router.ServeHTTP(dw, r)
	if dw.Code != http.StatusConflict {
		t.Errorf("delete status: got %d, want 409", dw.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, generationReply)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}
