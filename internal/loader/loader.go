// Package loader reads a knowledge directory into normalised documents.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/extract"
	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// File types recorded on documents.
const (
	FileTypeMarkdown = "markdown"
	FileTypeJSON     = "json"
)

// Loader walks a knowledge directory and turns matching files into documents.
type Loader struct {
	root      string
	include   []string
	exclude   []string
	extractor *extract.Extractor
	logger    *zap.Logger
}

// New creates a loader for root. An empty include list matches every file.
func New(root string, include, exclude []string, logger *zap.Logger) *Loader {
	if len(include) == 0 {
		include = []string{"**/*"}
	}
	return &Loader{
		root:      root,
		include:   include,
		exclude:   exclude,
		extractor: extract.NewExtractor(),
		logger:    utils.OrNop(logger),
	}
}

// Root returns the knowledge directory.
func (l *Loader) Root() string {
	return l.root
}

// Matches reports whether the slash-separated path relative to the root is loaded.
// Files with an extension no reader handles are never loaded.
func (l *Loader) Matches(rel string) bool {
	if !l.readable(rel) {
		return false
	}
	return matchAny(l.include, rel) && !matchAny(l.exclude, rel)
}

func (l *Loader) readable(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	return ext == ".json" || l.extractor.Supported(ext)
}

// Files lists the matching files as slash-separated paths relative to the root, in lexical order.
func (l *Loader) Files() ([]string, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("knowledge directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge directory %s is not a directory", l.root)
	}

	var files []string
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || matchAny(l.exclude, rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if l.Matches(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk knowledge directory: %w", err)
	}
	return files, nil
}

// Load reads every matching file. A file that fails to load is logged and skipped.
func (l *Loader) Load(ctx context.Context) ([]models.Document, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}
	var docs []models.Document
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := l.LoadFile(rel)
		if err != nil {
			l.logger.Error("Failed to load knowledge file", zap.String("file", rel), zap.Error(err))
			continue
		}
		l.logger.Info("Loaded knowledge file", zap.String("file", rel), zap.Int("documents", len(loaded)))
		docs = append(docs, loaded...)
	}
	l.logger.Info("Loaded documents", zap.Int("files", len(files)), zap.Int("documents", len(docs)))
	return docs, nil
}

// LoadFile loads one file given its slash-separated path relative to the root.
func (l *Loader) LoadFile(rel string) ([]models.Document, error) {
	path := filepath.Join(l.root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	f := fileMeta{rel: rel, modTime: info.ModTime()}

	switch ext := strings.ToLower(filepath.Ext(rel)); ext {
	case ".md":
		text, err := l.extractor.ExtractBytes(content, ext)
		if err != nil {
			return nil, err
		}
		return skipEmpty([]models.Document{markdownDocument(f, text)}), nil
	case ".json":
		return jsonDocuments(f, content)
	default:
		text, err := l.extractor.ExtractBytes(content, ext)
		if err != nil {
			return nil, err
		}
		return skipEmpty([]models.Document{{
			ID:        f.id(),
			Title:     f.stemTitle(),
			Source:    f.source(),
			Text:      text,
			CreatedAt: f.createdAt(),
			FileType:  strings.TrimPrefix(ext, "."),
		}}), nil
	}
}

func skipEmpty(docs []models.Document) []models.Document {
	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.Text) != "" {
			out = append(out, d)
		}
	}
	return out
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// fileMeta derives document fields from a file's location.
type fileMeta struct {
	rel     string
	modTime time.Time
}

// source is the path relative to the root; for top-level files that is the file name,
// which is what the source priority table is keyed by.
func (f fileMeta) source() string {
	return f.rel
}

func (f fileMeta) stem() string {
	base := filepath.Base(f.rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// id is the stem for top-level files and the extension-less relative path otherwise.
func (f fileMeta) id() string {
	return strings.TrimSuffix(f.rel, filepath.Ext(f.rel))
}

func (f fileMeta) stemTitle() string {
	return TitleCase(strings.ReplaceAll(f.stem(), "_", " "))
}

func (f fileMeta) createdAt() string {
	return f.modTime.Format(time.RFC3339)
}
