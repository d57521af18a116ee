package models

// SuspicionLevel is the discrete severity bucket derived from a similarity score.
type SuspicionLevel string

const (
	LevelLow      SuspicionLevel = "low"
	LevelMedium   SuspicionLevel = "medium"
	LevelHigh     SuspicionLevel = "high"
	LevelCritical SuspicionLevel = "critical"
)

// SimilarityPair is the similarity score for one unordered submission pair.
// DocA < DocB always holds; the diagonal (self-similarity, defined as 1.0) is never stored.
type SimilarityPair struct {
	DocA  int64   `json:"doc_a" db:"submission_a"`
	DocB  int64   `json:"doc_b" db:"submission_b"`
	Score float64 `json:"score" db:"score"`
}

// GraphNode is one submission in the similarity graph.
// Centrality is the sum of incident visible edge scores; Suspicious is true
// when at least one incident visible edge is classified high or critical.
type GraphNode struct {
	ID         int64   `json:"id"`
	StudentID  string  `json:"student_id"`
	Filename   string  `json:"filename"`
	Centrality float64 `json:"centrality"`
	Suspicious bool    `json:"suspicious"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// GraphEdge is one pair that passed the visibility filter.
type GraphEdge struct {
	DocA  int64          `json:"doc_a"`
	DocB  int64          `json:"doc_b"`
	Score float64        `json:"score"`
	Level SuspicionLevel `json:"level"`
}

// GraphPayload is the renderable graph handed to visualization consumers.
type GraphPayload struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*GraphEdge `json:"edges"`
}

// Summary is the reporting reduction over one analysis run.
// TotalComparisons counts computed pairs, not shown edges: a pair filtered
// out of the graph by the visibility threshold still counts here.
type Summary struct {
	TotalComparisons int                    `json:"total_comparisons"`
	LevelCounts      map[SuspicionLevel]int `json:"level_counts"`
	TopEdges         []*GraphEdge           `json:"top_edges"`
}

// Report is the complete output of one analysis run. A run either produces
// a full Report or fails; prior results are never partially replaced.
type Report struct {
	RunID       string           `json:"run_id"`
	Submissions int              `json:"submissions"`
	Pairs       []SimilarityPair `json:"pairs"`
	Graph       *GraphPayload    `json:"graph"`
	Summary     *Summary         `json:"summary"`
	DurationMS  int64            `json:"duration_ms"`
}
