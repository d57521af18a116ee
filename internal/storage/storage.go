// Package storage defines the persistence interface for submissions and similarity results.
package storage

import (
	"context"

	"github.com/truework/truework/internal/models"
)

// Storage defines submission and result persistence operations.
type Storage interface {
	// Submission operations
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id int64) (*models.Submission, error)
	ListSubmissions(ctx context.Context) ([]*models.Submission, error)
	CountSubmissions(ctx context.Context) (int64, error)

	// Result operations. ReplaceResults swaps the stored pair set for the
	// batch in a single transaction: a run either replaces everything or
	// leaves prior results untouched.
	ReplaceResults(ctx context.Context, runID string, pairs []models.SimilarityPair) error
	ListResults(ctx context.Context) ([]models.SimilarityPair, error)
	CountResults(ctx context.Context) (int64, error)
	LastRunID(ctx context.Context) (string, error)

	// Clear removes all submissions and results in one transaction.
	Clear(ctx context.Context) error

	Close() error
}
