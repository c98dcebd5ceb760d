package search

import (
	"fmt"
	"strings"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

const (
	// MaxChunkChars is how much of each chunk's text goes into the context block.
	MaxChunkChars = 500

	// NoResultsContext is the context for an empty result list.
	NoResultsContext = "No relevant information found."

	// FallbackContext is returned in place of a context when retrieval fails.
	FallbackContext = "I don't have information about that topic in my knowledge base."

	contextHeader = "**Context:**\n"
)

// FormatContext renders results as the numbered context block given to the chat model.
func FormatContext(results []models.RankedResult) string {
	return FormatContextLimit(results, MaxChunkChars)
}

// FormatContextLimit is FormatContext with a custom per-chunk character limit.
func FormatContextLimit(results []models.RankedResult, maxChunkChars int) string {
	if len(results) == 0 {
		return NoResultsContext
	}
	parts := make([]string, len(results))
	for i, r := range results {
		title := r.Chunk.Title
		if title == "" {
			title = "Untitled"
		}
		source := r.Chunk.Source
		if source == "" {
			source = "Unknown"
		}
		text := utils.Truncate(strings.TrimSpace(r.Chunk.Text), maxChunkChars)
		parts[i] = fmt.Sprintf("%d. **%s** (from %s)\n   %s", i+1, title, source, text)
	}
	return contextHeader + strings.Join(parts, "\n\n")
}

// ExtractSources lists the distinct documents behind results, first occurrence first.
// Chunks are keyed by id, or by title and source when the id is empty.
func ExtractSources(results []models.RankedResult) []models.Source {
	sources := make([]models.Source, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		key := r.Chunk.ID
		if key == "" {
			key = r.Chunk.Title + "_" + r.Chunk.Source
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, models.Source{
			Title:     r.Chunk.Title,
			Source:    r.Chunk.Source,
			CreatedAt: r.Chunk.CreatedAt,
		})
	}
	return sources
}

// Fallback returns the degraded retrieval used when anything fails.
func Fallback() *models.Retrieval {
	return &models.Retrieval{
		Context:  FallbackContext,
		Sources:  []models.Source{},
		Degraded: true,
	}
}
