// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mondai/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS lecture_materials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'uploaded',
		last_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lectures_path ON lecture_materials(path);
	CREATE INDEX IF NOT EXISTS idx_lectures_created_at ON lecture_materials(created_at);

	CREATE TABLE IF NOT EXISTS qas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lecture_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (lecture_id) REFERENCES lecture_materials(id) ON DELETE RESTRICT
	);

	CREATE INDEX IF NOT EXISTS idx_qas_lecture ON qas(lecture_id);

	CREATE TABLE IF NOT EXISTS student_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		qa_id INTEGER NOT NULL,
		student_id TEXT NOT NULL,
		answer TEXT NOT NULL,
		is_correct BOOLEAN NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (qa_id) REFERENCES qas(id) ON DELETE RESTRICT
	);

	CREATE INDEX IF NOT EXISTS idx_answers_qa ON student_answers(qa_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateLecture inserts a lecture row with status uploaded.
func (s *SQLiteStorage) CreateLecture(ctx context.Context, lec *models.LectureMaterial) error {
	if lec.Status == "" {
		lec.Status = models.StatusUploaded
	}
	lec.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lecture_materials (title, filename, path, status, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lec.Title, lec.Filename, lec.Path, string(lec.Status), lec.LastError, lec.CreatedAt,
	)
	if err != nil {
		return err
	}
	lec.ID, err = res.LastInsertId()
	return err
}

func scanLecture(row interface{ Scan(...any) error }) (*models.LectureMaterial, error) {
	var lec models.LectureMaterial
	var status string
	err := row.Scan(&lec.ID, &lec.Title, &lec.Filename, &lec.Path, &status, &lec.LastError, &lec.CreatedAt)
	if err != nil {
		return nil, err
	}
	lec.Status = models.LectureStatus(status)
	return &lec, nil
}

const lectureColumns = `id, title, filename, path, status, last_error, created_at`

// GetLecture returns a lecture by id.
func (s *SQLiteStorage) GetLecture(ctx context.Context, id int64) (*models.LectureMaterial, error) {
	lec, err := scanLecture(s.db.QueryRowContext(ctx,
		`SELECT `+lectureColumns+` FROM lecture_materials WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", models.ErrLectureNotFound, id)
	}
	return lec, err
}

// GetLectureByPath returns the lecture whose stored path matches path.
// Used by the directory watcher to re-ingest changed files.
func (s *SQLiteStorage) GetLectureByPath(ctx context.Context, path string) (*models.LectureMaterial, error) {
	lec, err := scanLecture(s.db.QueryRowContext(ctx,
		`SELECT `+lectureColumns+` FROM lecture_materials WHERE path = ?`, path))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: path %s", models.ErrLectureNotFound, path)
	}
	return lec, err
}

// ListLectures returns all lectures, newest first.
func (s *SQLiteStorage) ListLectures(ctx context.Context) ([]*models.LectureMaterial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lectureColumns+` FROM lecture_materials ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lectures []*models.LectureMaterial
	for rows.Next() {
		lec, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, lec)
	}
	return lectures, rows.Err()
}

// ClaimProcessing atomically transitions uploaded/error -> processing.
// The conditional UPDATE is the single-writer guard against concurrent
// duplicate ingestion for the same lecture id.
func (s *SQLiteStorage) ClaimProcessing(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lecture_materials SET status = ?, last_error = ''
		 WHERE id = ? AND status IN (?, ?)`,
		string(models.StatusProcessing), id,
		string(models.StatusUploaded), string(models.StatusError),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	lec, err := s.GetLecture(ctx, id)
	if err != nil {
		return err
	}
	switch lec.Status {
	case models.StatusProcessing:
		return fmt.Errorf("%w: %d", models.ErrAlreadyProcessing, id)
	case models.StatusReady:
		return fmt.Errorf("%w: %d", models.ErrAlreadyIngested, id)
	default:
		// Raced with another claim between UPDATE and SELECT.
		return fmt.Errorf("%w: %d", models.ErrAlreadyProcessing, id)
	}
}

// SetLectureStatus records a status transition with an optional failure reason.
func (s *SQLiteStorage) SetLectureStatus(ctx context.Context, id int64, status models.LectureStatus, lastError string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lecture_materials SET status = ?, last_error = ? WHERE id = ?`,
		string(status), lastError, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", models.ErrLectureNotFound, id)
	}
	return nil
}

// ResetLecture moves a ready/error lecture back to uploaded for an explicit re-ingest.
func (s *SQLiteStorage) ResetLecture(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lecture_materials SET status = ?, last_error = ''
		 WHERE id = ? AND status IN (?, ?)`,
		string(models.StatusUploaded), id,
		string(models.StatusReady), string(models.StatusError),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	lec, err := s.GetLecture(ctx, id)
	if err != nil {
		return err
	}
	if lec.Status == models.StatusProcessing {
		return fmt.Errorf("%w: %d", models.ErrAlreadyProcessing, id)
	}
	// Already uploaded: nothing to reset.
	return nil
}

// DeleteLecture removes a lecture. Deletion is blocked while QA pairs
// reference the lecture; the audit trail is never cascaded away.
func (s *SQLiteStorage) DeleteLecture(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM qas WHERE lecture_id = ?`, id).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: lecture %d has %d QA pairs", models.ErrLectureInUse, id, count)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM lecture_materials WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", models.ErrLectureNotFound, id)
	}
	return tx.Commit()
}

// CreateQAPairs inserts a generation batch in a single transaction
// (all-or-nothing), so a failed batch never leaves partial pairs visible.
func (s *SQLiteStorage) CreateQAPairs(ctx context.Context, pairs []*models.QAPair) error {
	if len(pairs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO qas (lecture_id, question, answer, difficulty, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range pairs {
		p.CreatedAt = now
		res, err := stmt.ExecContext(ctx, p.LectureID, p.Question, p.Answer, string(p.Difficulty), p.CreatedAt)
		if err != nil {
			return err
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetQAPair returns a QA pair by id.
func (s *SQLiteStorage) GetQAPair(ctx context.Context, id int64) (*models.QAPair, error) {
	var p models.QAPair
	var difficulty string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, lecture_id, question, answer, difficulty, created_at
		 FROM qas WHERE id = ?`, id,
	).Scan(&p.ID, &p.LectureID, &p.Question, &p.Answer, &difficulty, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", models.ErrQANotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p.Difficulty = models.Difficulty(difficulty)
	return &p, nil
}

// ListQAPairsByLecture returns all QA pairs for a lecture ordered by id.
func (s *SQLiteStorage) ListQAPairsByLecture(ctx context.Context, lectureID int64) ([]*models.QAPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lecture_id, question, answer, difficulty, created_at
		 FROM qas WHERE lecture_id = ? ORDER BY id`,
		lectureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.QAPair
	for rows.Next() {
		var p models.QAPair
		var difficulty string
		if err := rows.Scan(&p.ID, &p.LectureID, &p.Question, &p.Answer, &difficulty, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Difficulty = models.Difficulty(difficulty)
		pairs = append(pairs, &p)
	}
	return pairs, rows.Err()
}

// DeleteQAPair removes a QA pair by id. Exposed for management tooling only.
func (s *SQLiteStorage) DeleteQAPair(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM qas WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", models.ErrQANotFound, id)
	}
	return nil
}

// CreateStudentAnswer inserts a new answer row. Answers are append-only.
func (s *SQLiteStorage) CreateStudentAnswer(ctx context.Context, ans *models.StudentAnswer) error {
	ans.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO student_answers (qa_id, student_id, answer, is_correct, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ans.QAID, ans.StudentID, ans.Answer, ans.IsCorrect, ans.CreatedAt,
	)
	if err != nil {
		return err
	}
	ans.ID, err = res.LastInsertId()
	return err
}

// ListStudentAnswersByQA returns all answers for a QA pair, oldest first.
func (s *SQLiteStorage) ListStudentAnswersByQA(ctx context.Context, qaID int64) ([]*models.StudentAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, qa_id, student_id, answer, is_correct, created_at
		 FROM student_answers WHERE qa_id = ? ORDER BY id`,
		qaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []*models.StudentAnswer
	for rows.Next() {
		var a models.StudentAnswer
		if err := rows.Scan(&a.ID, &a.QAID, &a.StudentID, &a.Answer, &a.IsCorrect, &a.CreatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, &a)
	}
	return answers, rows.Err()
}

// CountQAPairs returns the number of QA pairs for a lecture.
func (s *SQLiteStorage) CountQAPairs(ctx context.Context, lectureID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM qas WHERE lecture_id = ?`, lectureID).Scan(&count)
	return count, err
}

// CountStudentAnswers returns the total and correct answer counts for a lecture.
func (s *SQLiteStorage) CountStudentAnswers(ctx context.Context, lectureID int64) (total, correct int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(sa.is_correct), 0)
		 FROM student_answers sa
		 JOIN qas q ON q.id = sa.qa_id
		 WHERE q.lecture_id = ?`, lectureID).Scan(&total, &correct)
	return total, correct, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
