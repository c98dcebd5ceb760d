// Package extract turns knowledge files in binary formats into plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type extractFunc func(content []byte) (string, error)

// Extractor extracts plain text from document files.
type Extractor struct {
	formats map[string]extractFunc
}

// NewExtractor returns an Extractor for PDF, DOCX, XLSX, RTF, ODT, and plain text.
func NewExtractor() *Extractor {
	return &Extractor{formats: map[string]extractFunc{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".xlsx": extractExcel,
		".rtf":  extractWithCat,
		".odt":  extractWithCat,
		".txt":  extractPlain,
		".md":   extractPlain,
		".rst":  extractPlain,
	}}
}

// Supported reports whether ext (with leading dot, any case) has a dedicated extractor.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.formats[strings.ToLower(ext)]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text content.
// Returns an error if the file cannot be read or its content cannot be parsed.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension, e.g. ".pdf".
// Unknown extensions are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	if fn, ok := e.formats[strings.ToLower(ext)]; ok {
		return fn(content)
	}
	return extractPlain(content)
}
