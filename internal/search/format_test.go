package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

func result(id, title, source, text string) models.RankedResult {
	return models.RankedResult{Chunk: models.Chunk{ID: id, Title: title, Source: source, Text: text}}
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, NoResultsContext, FormatContext(nil))

	got := FormatContext([]models.RankedResult{
		result("a", "Go Engineer", "experience.json", "  Wrote services.\n"),
		result("b", "", "", "No metadata."),
	})
	want := "**Context:**\n" +
		"1. **Go Engineer** (from experience.json)\n   Wrote services.\n\n" +
		"2. **Untitled** (from Unknown)\n   No metadata."
	assert.Equal(t, want, got)
}

func TestFormatContext_TruncatesChunkText(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := FormatContext([]models.RankedResult{result("a", "T", "s.md", long)})
	assert.Contains(t, got, strings.Repeat("x", 500)+"...")
	assert.NotContains(t, got, strings.Repeat("x", 501))

	got = FormatContextLimit([]models.RankedResult{result("a", "T", "s.md", long)}, 10)
	assert.True(t, strings.HasSuffix(got, "   xxxxxxxxxx..."))
}

func TestFormatContext_TruncatesByCharacters(t *testing.T) {
	accented := strings.Repeat("é", 500)
	got := FormatContext([]models.RankedResult{result("a", "T", "s.md", accented)})
	assert.Contains(t, got, accented)
	assert.NotContains(t, got, "...")

	got = FormatContext([]models.RankedResult{result("a", "T", "s.md", accented+"ü")})
	assert.True(t, strings.HasSuffix(got, accented+"..."))
}

func TestExtractSources(t *testing.T) {
	results := []models.RankedResult{
		result("exp_0", "Engineer", "experience.json", "one"),
		result("exp_0", "Engineer", "experience.json", "two"),
		result("", "About", "about.md", "three"),
		result("", "About", "about.md", "four"),
		result("proj_1", "Site", "projects.json", "five"),
	}
	results[0].Chunk.CreatedAt = "2024-01-02T03:04:05"

	got := ExtractSources(results)
	assert.Equal(t, []models.Source{
		{Title: "Engineer", Source: "experience.json", CreatedAt: "2024-01-02T03:04:05"},
		{Title: "About", Source: "about.md"},
		{Title: "Site", Source: "projects.json"},
	}, got)

	empty := ExtractSources(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFallback(t *testing.T) {
	f := Fallback()
	assert.Equal(t, "I don't have information about that topic in my knowledge base.", f.Context)
	assert.Empty(t, f.Sources)
	assert.True(t, f.Degraded)
}
