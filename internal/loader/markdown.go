package loader

import (
	"strings"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

func markdownDocument(f fileMeta, text string) models.Document {
	title := f.stemTitle()
	if h, ok := firstHeading(text); ok {
		title = h
	}
	return models.Document{
		ID:        f.id(),
		Title:     title,
		Source:    f.source(),
		Text:      text,
		CreatedAt: f.createdAt(),
		FileType:  FileTypeMarkdown,
	}
}

// firstHeading returns the text of the first level-one "# " heading.
func firstHeading(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:]), true
		}
	}
	return "", false
}
