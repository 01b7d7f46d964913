package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mondai/internal/extract"
	"github.com/hyperjump/mondai/internal/models"
)

// maxUploadBytes bounds lecture uploads at 32 MiB.
const maxUploadBytes = 32 << 20

func (s *Server) handleUploadLecture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !extract.Supported(filename) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported lecture format %s", filepath.Ext(filename)))
		return
	}
	title := r.FormValue("title")
	if title == "" {
		title = filename
	}

	stored := filepath.Join(s.uploadDir, uuid.New().String()+"_"+filename)
	dst, err := os.Create(stored)
	if err != nil {
		s.logger.Error("store upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(stored)
		s.logger.Error("store upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(stored)
		s.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	lec := &models.LectureMaterial{
		Title:    title,
		Filename: filename,
		Path:     stored,
	}
	if err := s.storage.CreateLecture(r.Context(), lec); err != nil {
		os.Remove(stored)
		s.logger.Error("create lecture failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.pipeline.Start(r.Context(), lec.ID); err != nil {
		s.logger.Error("start ingestion failed", zap.Int64("lecture_id", lec.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("lecture uploaded", zap.Int64("lecture_id", lec.ID), zap.String("filename", filename))
	s.respondJSON(w, http.StatusAccepted, lec)
}

func (s *Server) handleListLectures(w http.ResponseWriter, r *http.Request) {
	lectures, err := s.storage.ListLectures(r.Context())
	if err != nil {
		s.logger.Error("list lectures failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"lectures": lectures})
}

func (s *Server) handleGetLecture(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lectureID(w, r)
	if !ok {
		return
	}
	lec, err := s.storage.GetLecture(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "lecture not found")
		return
	}
	s.respondJSON(w, http.StatusOK, lec)
}

func (s *Server) handleLectureStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lectureID(w, r)
	if !ok {
		return
	}
	lec, err := s.storage.GetLecture(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "lecture not found")
		return
	}
	resp := map[string]interface{}{
		"lecture_id": lec.ID,
		"status":     lec.Status,
	}
	if lec.LastError != "" {
		resp["last_error"] = lec.LastError
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReingest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lectureID(w, r)
	if !ok {
		return
	}
	s.logger.Debug("reingest request", zap.Int64("lecture_id", id))
	if err := s.pipeline.Reingest(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"lecture_id": id,
		"status":     models.StatusProcessing,
	})
}

func (s *Server) handleDeleteLecture(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lectureID(w, r)
	if !ok {
		return
	}
	s.logger.Debug("delete lecture request", zap.Int64("lecture_id", id))
	if err := s.storage.DeleteLecture(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lectureID(w, r)
	if !ok {
		return
	}
	pairs, err := s.storage.ListQAPairsByLecture(r.Context(), id)
	if err != nil {
		s.logger.Error("list questions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"questions": pairs})
}

func (s *Server) handleLectureStats(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lectureID(w, r)
	if !ok {
		return
	}
	result, err := s.stats.Stats(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type generateRequest struct {
	LectureID  int64  `json:"lecture_id"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	difficulty := models.Difficulty(req.Difficulty)
	if !difficulty.Valid() {
		s.respondError(w, http.StatusBadRequest, "difficulty must be easy, medium, or hard")
		return
	}
	if req.Count <= 0 {
		s.respondError(w, http.StatusBadRequest, "count must be positive")
		return
	}
	s.logger.Debug("generate request",
		zap.Int64("lecture_id", req.LectureID),
		zap.String("difficulty", req.Difficulty),
		zap.Int("count", req.Count),
	)
	result, err := s.generator.Generate(r.Context(), req.LectureID, difficulty, req.Count)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"questions": result.Pairs,
		"requested": result.Requested,
		"partial":   result.Partial,
	})
}

type answerRequest struct {
	QAID      int64  `json:"qa_id"`
	StudentID string `json:"student_id"`
	Answer    string `json:"answer"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentID == "" {
		s.respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}
	record, err := s.evaluator.Evaluate(r.Context(), req.QAID, req.StudentID, req.Answer)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, record)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid question id")
		return
	}
	if err := s.storage.DeleteQAPair(r.Context(), id); err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lectureID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid lecture id")
		return 0, false
	}
	return id, true
}

// respondDomainError maps domain sentinel errors onto HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrLectureNotFound), errors.Is(err, models.ErrQANotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrAlreadyProcessing), errors.Is(err, models.ErrAlreadyIngested),
		errors.Is(err, models.ErrLectureNotReady), errors.Is(err, models.ErrLectureInUse),
		errors.Is(err, models.ErrNotReady):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrGenerationFailed):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
