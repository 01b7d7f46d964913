// Package models defines core data structures for lectures, Q&A pairs, and student answers.
package models

import "time"

// LectureStatus is the processing state of an uploaded lecture.
type LectureStatus string

const (
	StatusUploaded   LectureStatus = "uploaded"
	StatusProcessing LectureStatus = "processing"
	StatusReady      LectureStatus = "ready"
	StatusError      LectureStatus = "error"
)

// LectureMaterial represents an uploaded unit of source material.
// Status is mutated only by the ingestion pipeline.
type LectureMaterial struct {
	ID        int64         `json:"id" db:"id"`
	Title     string        `json:"title" db:"title"`
	Filename  string        `json:"filename" db:"filename"`
	Path      string        `json:"path" db:"path"`
	Status    LectureStatus `json:"status" db:"status"`
	LastError string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// LectureStats holds per-lecture answer metrics.
// AnswerRate is answers per question; CorrectRate is the fraction of
// submitted answers judged correct. Both are 0 when the denominator is 0.
type LectureStats struct {
	LectureID     int64   `json:"lecture_id"`
	QuestionCount int64   `json:"question_count"`
	AnswerCount   int64   `json:"answer_count"`
	AnswerRate    float64 `json:"answer_rate"`
	CorrectRate   float64 `json:"correct_rate"`
}
