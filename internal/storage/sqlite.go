package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/truework/truework/internal/models"
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

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		text_content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_student_id ON submissions(student_id);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		submission_a INTEGER NOT NULL,
		submission_b INTEGER NOT NULL,
		score REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_pair ON results(submission_a, submission_b);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateSubmission inserts a submission and assigns its ID.
func (s *SQLiteStorage) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	sub.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (student_id, filename, text_content, created_at)
		 VALUES (?, ?, ?, ?)`,
		sub.StudentID, sub.Filename, sub.Text, sub.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read submission id: %w", err)
	}
	sub.ID = id
	return nil
}

// GetSubmission returns a submission by ID.
func (s *SQLiteStorage) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, filename, text_content, created_at
		 FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.StudentID, &sub.Filename, &sub.Text, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("submission not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions returns all submissions in insertion order.
func (s *SQLiteStorage) ListSubmissions(ctx context.Context) ([]*models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, filename, text_content, created_at
		 FROM submissions ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		var sub models.Submission
		if err := rows.Scan(&sub.ID, &sub.StudentID, &sub.Filename, &sub.Text, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// CountSubmissions returns the number of stored submissions.
func (s *SQLiteStorage) CountSubmissions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n)
	return n, err
}

// ReplaceResults deletes all prior results and inserts the new pair set in a
// single transaction, so a failed run never leaves a half-replaced batch.
func (s *SQLiteStorage) ReplaceResults(ctx context.Context, runID string, pairs []models.SimilarityPair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return fmt.Errorf("failed to clear prior results: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, submission_a, submission_b, score, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, runID, p.DocA, p.DocB, p.Score, now); err != nil {
			return fmt.Errorf("failed to insert result %d-%d: %w", p.DocA, p.DocB, err)
		}
	}
	return tx.Commit()
}

// ListResults returns all stored similarity pairs ordered by descending score.
func (s *SQLiteStorage) ListResults(ctx context.Context) ([]models.SimilarityPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT submission_a, submission_b, score FROM results ORDER BY score DESC, submission_a, submission_b`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []models.SimilarityPair
	for rows.Next() {
		var p models.SimilarityPair
		if err := rows.Scan(&p.DocA, &p.DocB, &p.Score); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// CountResults returns the number of stored similarity pairs.
func (s *SQLiteStorage) CountResults(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n)
	return n, err
}

// LastRunID returns the run ID of the stored results, or "" when none exist.
func (s *SQLiteStorage) LastRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM results ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return runID, err
}

// Clear removes all submissions and results in one transaction.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return fmt.Errorf("failed to clear results: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions`); err != nil {
		return fmt.Errorf("failed to clear submissions: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
