// Package report assembles summary statistics for reporting consumers.
package report

import (
	"sort"

	"github.com/truework/truework/internal/analysis"
	"github.com/truework/truework/internal/models"
)

// Aggregate reduces one run's pairs and visible edges into a Summary.
// TotalComparisons and the per-level counts cover all computed pairs, not
// just the edges that passed the visibility filter; TopEdges lists up to
// topN visible edges ranked by descending score. Inputs are not mutated.
func Aggregate(pairs []models.SimilarityPair, edges []*models.GraphEdge, topN int) *models.Summary {
	counts := map[models.SuspicionLevel]int{
		models.LevelLow:      0,
		models.LevelMedium:   0,
		models.LevelHigh:     0,
		models.LevelCritical: 0,
	}
	for _, p := range pairs {
		counts[analysis.Classify(p.Score)]++
	}

	ranked := make([]*models.GraphEdge, len(edges))
	copy(ranked, edges)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	return &models.Summary{
		TotalComparisons: len(pairs),
		LevelCounts:      counts,
		TopEdges:         ranked,
	}
}
