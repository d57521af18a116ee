// Package engine runs the full analysis pipeline over one batch snapshot.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/truework/truework/internal/analysis"
	"github.com/truework/truework/internal/config"
	"github.com/truework/truework/internal/graph"
	"github.com/truework/truework/internal/models"
	"github.com/truework/truework/internal/report"
)

// Engine runs the synchronous similarity pipeline:
// tokenize -> vectorize -> all-pairs cosine -> classify -> graph/layout -> summary.
type Engine struct {
	config *config.AnalysisConfig
	logger *zap.Logger
}

// NewEngine creates an analysis engine with the given settings.
func NewEngine(cfg *config.AnalysisConfig, logger *zap.Logger) *Engine {
	return &Engine{config: cfg, logger: logger}
}

// Run analyzes one immutable batch snapshot and returns a complete Report.
// The run does not retry and produces either a full report or an error; it
// never yields partial output. An empty or single-submission batch is not an
// error: it yields zero pairs and a summary with zero comparisons.
func (e *Engine) Run(ctx context.Context, subs []*models.Submission) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	runID := uuid.NewString()

	tokens := make([][]string, len(subs))
	ids := make([]int64, len(subs))
	for i, sub := range subs {
		tokens[i] = analysis.Tokenize(sub.Text)
		ids[i] = sub.ID
	}
	vocab, vectors := analysis.Vectorize(tokens)
	e.logger.Debug("batch vectorized",
		zap.String("run_id", runID),
		zap.Int("submissions", len(subs)),
		zap.Int("vocabulary", len(vocab)),
	)

	pairs := analysis.ComputePairs(ids, vectors, e.config.Workers)
	payload := graph.Build(subs, pairs, e.config.VisibilityThreshold, e.config.CanvasWidth, e.config.CanvasHeight)
	summary := report.Aggregate(pairs, payload.Edges, e.config.TopEdges)

	elapsed := time.Since(start)
	e.logger.Info("analysis run complete",
		zap.String("run_id", runID),
		zap.Int("submissions", len(subs)),
		zap.Int("comparisons", summary.TotalComparisons),
		zap.Int("visible_edges", len(payload.Edges)),
		zap.Duration("elapsed", elapsed),
	)

	return &models.Report{
		RunID:       runID,
		Submissions: len(subs),
		Pairs:       pairs,
		Graph:       payload,
		Summary:     summary,
		DurationMS:  elapsed.Milliseconds(),
	}, nil
}
