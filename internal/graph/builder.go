// Package graph turns submissions and similarity pairs into a renderable
// node/edge structure with deterministic 2-D positions.
package graph

import (
	"github.com/truework/truework/internal/analysis"
	"github.com/truework/truework/internal/models"
)

// Build constructs the similarity graph: one node per submission, one edge
// per pair with score >= threshold. A node is suspicious when it has at least
// one incident visible edge classified high or critical; its centrality is
// the sum of incident visible edge scores (monotonic in the number and
// strength of incident edges). Positions are set by the layout for the given
// canvas size. Inputs are not mutated.
func Build(subs []*models.Submission, pairs []models.SimilarityPair, threshold, width, height float64) *models.GraphPayload {
	nodes := make([]*models.GraphNode, len(subs))
	byID := make(map[int64]*models.GraphNode, len(subs))
	positions := Positions(len(subs), width, height)
	for i, sub := range subs {
		node := &models.GraphNode{
			ID:        sub.ID,
			StudentID: sub.StudentID,
			Filename:  sub.Filename,
			X:         positions[i].X,
			Y:         positions[i].Y,
		}
		nodes[i] = node
		byID[sub.ID] = node
	}

	edges := make([]*models.GraphEdge, 0, len(pairs))
	for _, p := range pairs {
		if p.Score < threshold {
			continue
		}
		level := analysis.Classify(p.Score)
		edges = append(edges, &models.GraphEdge{
			DocA:  p.DocA,
			DocB:  p.DocB,
			Score: p.Score,
			Level: level,
		})
		severe := level == models.LevelHigh || level == models.LevelCritical
		for _, id := range []int64{p.DocA, p.DocB} {
			if node, ok := byID[id]; ok {
				node.Centrality += p.Score
				if severe {
					node.Suspicious = true
				}
			}
		}
	}

	return &models.GraphPayload{Nodes: nodes, Edges: edges}
}
