package models

import "time"

// Difficulty is the question difficulty tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QAPair is a generated question/answer pair owned by a lecture.
// Immutable once created except for explicit delete via management tooling.
type QAPair struct {
	ID         int64      `json:"id" db:"id"`
	LectureID  int64      `json:"lecture_id" db:"lecture_id"`
	Question   string     `json:"question" db:"question"`
	Answer     string     `json:"answer" db:"answer"`
	Difficulty Difficulty `json:"difficulty" db:"difficulty"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// StudentAnswer is a recorded submission against a QAPair. A resubmission
// creates a new row, never updates an existing one.
type StudentAnswer struct {
	ID        int64     `json:"id" db:"id"`
	QAID      int64     `json:"qa_id" db:"qa_id"`
	StudentID string    `json:"student_id" db:"student_id"`
	Answer    string    `json:"answer" db:"answer"`
	IsCorrect bool      `json:"is_correct" db:"is_correct"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
