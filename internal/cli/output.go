// Package cli provides output formatting for the TrueWork command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/truework/truework/internal/models"
	"github.com/truework/truework/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ResultRecord mirrors one entry of the /api/v1/results response.
type ResultRecord struct {
	DocA  int64                 `json:"doc_a"`
	DocB  int64                 `json:"doc_b"`
	Score float64               `json:"score"`
	Level models.SuspicionLevel `json:"level"`
}

// WriteReport writes an analysis report to w in the given format.
func WriteReport(w io.Writer, rep *models.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rep)
	}
	fmt.Fprintf(w, "Run %s: %d submissions, %d comparisons in %dms\n",
		rep.RunID, rep.Submissions, rep.Summary.TotalComparisons, rep.DurationMS)
	writeSummaryText(w, rep.Summary)
	return nil
}

// WriteResults writes stored similarity pairs to w in the given format.
func WriteResults(w io.Writer, records []ResultRecord, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No results. Run an analysis first.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%4d - %-4d  %.4f  %s\n", rec.DocA, rec.DocB, rec.Score, rec.Level)
	}
	return nil
}

// WriteSummary writes a run summary to w in the given format.
func WriteSummary(w io.Writer, summary *models.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, summary)
	}
	writeSummaryText(w, summary)
	return nil
}

// WriteSubmissions writes the submission list to w in the given format.
func WriteSubmissions(w io.Writer, subs []*models.Submission, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, subs)
	}
	if len(subs) == 0 {
		fmt.Fprintln(w, "No submissions.")
		return nil
	}
	for _, sub := range subs {
		preview := utils.Truncate(strings.Join(strings.Fields(sub.Text), " "), 60)
		fmt.Fprintf(w, "%4d  %-12s  %s (%d chars)  %s\n", sub.ID, sub.StudentID, sub.Filename, len(sub.Text), preview)
	}
	return nil
}

func writeSummaryText(w io.Writer, summary *models.Summary) {
	fmt.Fprintf(w, "comparisons: %d\n", summary.TotalComparisons)
	for _, level := range []models.SuspicionLevel{
		models.LevelCritical, models.LevelHigh, models.LevelMedium, models.LevelLow,
	} {
		fmt.Fprintf(w, "  %-8s %d\n", level, summary.LevelCounts[level])
	}
	if len(summary.TopEdges) > 0 {
		fmt.Fprintln(w, "top pairs:")
		for _, e := range summary.TopEdges {
			fmt.Fprintf(w, "  %4d - %-4d  %.4f  %s\n", e.DocA, e.DocB, e.Score, e.Level)
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
