// Package storage defines the persistence interface for lectures, Q&A pairs,
// and student answers.
package storage

import (
	"context"

	"github.com/hyperjump/mondai/internal/models"
)

// Storage defines the durable state operations. It is the only owner of
// persistent state; other components hold at most transient working copies.
type Storage interface {
	// Lecture operations
	CreateLecture(ctx context.Context, lec *models.LectureMaterial) error
	GetLecture(ctx context.Context, id int64) (*models.LectureMaterial, error)
	GetLectureByPath(ctx context.Context, path string) (*models.LectureMaterial, error)
	ListLectures(ctx context.Context) ([]*models.LectureMaterial, error)
	// ClaimProcessing atomically moves a lecture from uploaded/error to
	// processing. Returns ErrAlreadyProcessing when an ingestion is in
	// flight, ErrAlreadyIngested when the lecture is ready, and
	// ErrLectureNotFound when the id does not exist.
	ClaimProcessing(ctx context.Context, id int64) error
	// SetLectureStatus records a terminal transition (ready or error) with
	// the failure reason for error.
	SetLectureStatus(ctx context.Context, id int64, status models.LectureStatus, lastError string) error
	// ResetLecture moves a ready/error lecture back to uploaded for an
	// explicit re-ingest.
	ResetLecture(ctx context.Context, id int64) error
	// DeleteLecture removes a lecture. Returns ErrLectureInUse while QA
	// pairs reference it.
	DeleteLecture(ctx context.Context, id int64) error

	// QA pair operations
	CreateQAPairs(ctx context.Context, pairs []*models.QAPair) error
	GetQAPair(ctx context.Context, id int64) (*models.QAPair, error)
	ListQAPairsByLecture(ctx context.Context, lectureID int64) ([]*models.QAPair, error)
	DeleteQAPair(ctx context.Context, id int64) error

	// Student answer operations
	CreateStudentAnswer(ctx context.Context, ans *models.StudentAnswer) error
	ListStudentAnswersByQA(ctx context.Context, qaID int64) ([]*models.StudentAnswer, error)

	// Stats queries
	CountQAPairs(ctx context.Context, lectureID int64) (int64, error)
	CountStudentAnswers(ctx context.Context, lectureID int64) (total, correct int64, err error)

	Close() error
}
