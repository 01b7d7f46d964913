// Package server provides the HTTP API for Mondai.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/config"
	"github.com/hyperjump/mondai/internal/evaluator"
	"github.com/hyperjump/mondai/internal/generator"
	"github.com/hyperjump/mondai/internal/ingest"
	"github.com/hyperjump/mondai/internal/stats"
	"github.com/hyperjump/mondai/internal/storage"
)

// Server is the HTTP server for the Mondai API.
type Server struct {
	storage   storage.Storage
	pipeline  *ingest.Pipeline
	generator *generator.Generator
	evaluator *evaluator.Evaluator
	stats     *stats.Aggregator
	uploadDir string
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Storage,
	pipeline *ingest.Pipeline,
	gen *generator.Generator,
	eval *evaluator.Evaluator,
	agg *stats.Aggregator,
	uploadDir string,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		storage:   store,
		pipeline:  pipeline,
		generator: gen,
		evaluator: eval,
		stats:     agg,
		uploadDir: uploadDir,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the API router. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/lectures", s.handleUploadLecture)
	r.Get("/api/v1/lectures", s.handleListLectures)
	r.Get("/api/v1/lectures/{id}", s.handleGetLecture)
	r.Get("/api/v1/lectures/{id}/status", s.handleLectureStatus)
	r.Post("/api/v1/lectures/{id}/reingest", s.handleReingest)
	r.Delete("/api/v1/lectures/{id}", s.handleDeleteLecture)
	r.Get("/api/v1/lectures/{id}/questions", s.handleListQuestions)
	r.Get("/api/v1/lectures/{id}/stats", s.handleLectureStats)
	r.Post("/api/v1/generate", s.handleGenerate)
	r.Post("/api/v1/answers", s.handleSubmitAnswer)
	r.Delete("/api/v1/questions/{id}", s.handleDeleteQuestion)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
