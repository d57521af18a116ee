// Package index provides a Bleve full-text index over submission texts so
// reviewers can locate the submissions containing a given phrase.
package index

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/truework/truework/internal/models"
)

// Match is one submission hit for a content search.
type Match struct {
	SubmissionID int64   `json:"submission_id"`
	StudentID    string  `json:"student_id"`
	Filename     string  `json:"filename"`
	Score        float64 `json:"score"`
}

// indexedSubmission is the shape stored in Bleve.
type indexedSubmission struct {
	StudentID string `json:"student_id"`
	Filename  string `json:"filename"`
	Content   string `json:"content"`
}

// SubmissionIndex indexes submission texts for phrase lookup.
type SubmissionIndex struct {
	mu    sync.Mutex
	path  string
	index bleve.Index
}

// NewSubmissionIndex creates or opens a Bleve index at path. An existing
// index is reused; remove the directory to force a rebuild after mapping changes.
func NewSubmissionIndex(path string) (*SubmissionIndex, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &SubmissionIndex{path: path, index: idx}, nil
	}
	idx, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &SubmissionIndex{path: path, index: idx}, nil
}

// buildMapping uses the standard analyzer (lowercase + tokenize, no
// stemming) so a searched phrase matches the exact words students wrote.
func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textField)
	keywordField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("student_id", keywordField)
	docMapping.AddFieldMappingsAt("filename", keywordField)
	im.AddDocumentMapping("submission", docMapping)
	im.DefaultType = "submission"
	im.DefaultMapping = docMapping
	return im
}

// Index adds or updates one submission.
func (s *SubmissionIndex) Index(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Index(strconv.FormatInt(sub.ID, 10), indexedSubmission{
		StudentID: sub.StudentID,
		Filename:  sub.Filename,
		Content:   sub.Text,
	})
}

// Search returns up to limit submissions matching the query, best first.
func (s *SubmissionIndex) Search(ctx context.Context, query string, limit int) ([]*Match, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"student_id", "filename"}

	s.mu.Lock()
	results, err := s.index.Search(req)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*Match, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		m := &Match{SubmissionID: id, Score: hit.Score}
		if v, ok := hit.Fields["student_id"].(string); ok {
			m.StudentID = v
		}
		if v, ok := hit.Fields["filename"].(string); ok {
			m.Filename = v
		}
		out = append(out, m)
	}
	return out, nil
}

// Reset drops all indexed submissions. Bleve has no truncate, so the index
// directory is removed and recreated.
func (s *SubmissionIndex) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Close(); err != nil {
		return fmt.Errorf("failed to close Bleve index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("failed to remove Bleve index: %w", err)
	}
	idx, err := bleve.New(s.path, buildMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate Bleve index: %w", err)
	}
	s.index = idx
	return nil
}

// Count returns the number of indexed submissions.
func (s *SubmissionIndex) Count() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.DocCount()
}

// Close closes the underlying index.
func (s *SubmissionIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
