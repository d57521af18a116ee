// Package models defines core data structures for submissions, similarity results, and graphs.
package models

import "time"

// Submission is one student document in a batch.
// Submissions are immutable after ingestion and live until the batch is cleared.
type Submission struct {
	ID        int64     `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	Filename  string    `json:"filename" db:"filename"`
	Text      string    `json:"text_content" db:"text_content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SubmissionInput is the input for ingesting a submission.
// StudentID is an opaque display label; it is never parsed back into an identifier.
type SubmissionInput struct {
	StudentID string `json:"student_id"`
	Filename  string `json:"filename"`
	Text      string `json:"text_content"`
}

// Valid reports whether the input carries the fields the engine requires.
// Malformed records are rejected at ingestion; the engine assumes a validated batch.
func (in *SubmissionInput) Valid() bool {
	return in.StudentID != "" && in.Filename != ""
}
