// Package cli provides output helpers for the portfolio-rag subcommands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/portfolio-rag/internal/indexer"
	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/search"
	"github.com/hyperjump/portfolio-rag/internal/storage"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	previewWords = 40
	rule         = "─────────────────────────────────────────────────────────"
)

// ParseFormat resolves a -format flag value. Empty means text.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// QueryReport is the result of the query subcommand.
type QueryReport struct {
	Query     string                `json:"query"`
	K         int                   `json:"k"`
	QueryTime int64                 `json:"query_time_ms"`
	Results   []models.RankedResult `json:"results"`
	Sources   []models.Source       `json:"sources"`
}

// NewQueryReport builds a report from a retrieval.
func NewQueryReport(query string, k int, elapsed time.Duration, r *models.Retrieval) *QueryReport {
	report := &QueryReport{
		Query:     query,
		K:         k,
		QueryTime: elapsed.Milliseconds(),
		Results:   []models.RankedResult{},
		Sources:   []models.Source{},
	}
	if r != nil {
		if r.Results != nil {
			report.Results = r.Results
		}
		if r.Sources != nil {
			report.Sources = r.Sources
		}
	}
	return report
}

// WriteQueryResults writes ranked chunks to w in the given format.
func WriteQueryResults(w io.Writer, report *QueryReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms (k=%d)\n\n", len(report.Results), report.Query, report.QueryTime, report.K)
	for i, r := range report.Results {
		writeOneResult(w, i+1, r)
	}
	if len(report.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, s := range report.Sources {
			fmt.Fprintf(w, "  - %s (%s)\n", s.Title, s.Source)
		}
	}
	return nil
}

func writeOneResult(w io.Writer, rank int, r models.RankedResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Rank: %d | Score: %.4f (Raw: %.4f, Boost: %.2f)\n", rank, r.Score, r.RawScore, r.Boost)
	fmt.Fprintf(w, "Source: %s | Chunk %d/%d\n", r.Chunk.Source, r.Chunk.ChunkIndex+1, r.Chunk.TotalChunks)
	if r.Chunk.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", r.Chunk.Title)
	}
	fmt.Fprintf(w, "\n%s\n\n", TruncateWords(r.Chunk.Text, previewWords))
}

// StatsReport is the result of the stats subcommand.
type StatsReport struct {
	Retrieval search.Stats   `json:"retrieval"`
	Catalog   *storage.Stats `json:"catalog,omitempty"`
	DiskBytes int64          `json:"disk_usage_bytes"`
}

// WriteStats writes index and catalog statistics to w in the given format.
func WriteStats(w io.Writer, report *StatsReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	vs := report.Retrieval.VectorStore
	fmt.Fprintln(w, "Index:")
	fmt.Fprintf(w, "  Loaded:      %t\n", vs.Loaded)
	fmt.Fprintf(w, "  Kind:        %s\n", orDash(vs.IndexKind))
	fmt.Fprintf(w, "  Chunks:      %d\n", vs.TotalChunks)
	fmt.Fprintf(w, "  Dimension:   %d\n", vs.Dimension)
	fmt.Fprintf(w, "  Top K:       %d\n", report.Retrieval.TopK)
	fmt.Fprintf(w, "  Embed model: %s\n", orDash(report.Retrieval.EmbedModel))
	fmt.Fprintf(w, "  Disk usage:  %s\n", FormatBytes(report.DiskBytes))
	if c := report.Catalog; c != nil {
		fmt.Fprintln(w, "Catalog:")
		fmt.Fprintf(w, "  Runs:        %d\n", c.Runs)
		fmt.Fprintf(w, "  Documents:   %d\n", c.Documents)
		fmt.Fprintf(w, "  Chunks:      %d\n", c.Chunks)
		if run := c.LastRun; run != nil {
			fmt.Fprintf(w, "  Last run:    %s %s at %s\n", run.ID, run.Status, run.StartedAt.Format(time.RFC3339))
			if run.Error != "" {
				fmt.Fprintf(w, "  Last error:  %s\n", run.Error)
			}
		}
	}
	return nil
}

// WriteIngestSummary writes the outcome of an ingestion.
func WriteIngestSummary(w io.Writer, s *indexer.Summary) {
	fmt.Fprintf(w, "Indexed %d documents into %d chunks (dimension %d, %s) in %s\n",
		s.Documents, s.Chunks, s.Dimension, s.IndexKind, s.Duration.Round(time.Millisecond))
	if s.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", s.RunID)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
