// Package search turns a question into a formatted, source-boosted context block.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/embedding"
	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/ranking"
	"github.com/hyperjump/portfolio-rag/internal/vector"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// DefaultTopK is the number of chunks retrieved when the caller does not say.
const DefaultTopK = 5

// Config holds retrieval settings.
type Config struct {
	TopK          int
	MaxChunkChars int
	Priorities    ranking.PriorityTable
}

// Engine embeds queries, ranks the published index snapshot, and formats the result.
type Engine struct {
	handle   *vector.Handle
	embedder embedding.Embedder
	pipeline *ranking.Pipeline
	config   Config
	logger   *zap.Logger
}

// Stats describes the retrieval subsystem.
type Stats struct {
	VectorStore models.IndexStats `json:"vector_store"`
	TopK        int               `json:"top_k"`
	EmbedModel  string            `json:"embed_model"`
	Generation  uint64            `json:"generation"`
	LastReload  *time.Time        `json:"last_reload,omitempty"`
}

// NewEngine creates a search engine with the given dependencies. embedder may be nil when
// the engine only reports Stats.
func NewEngine(handle *vector.Handle, embedder embedding.Embedder, cfg Config, logger *zap.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = MaxChunkChars
	}
	if cfg.Priorities == nil {
		cfg.Priorities = ranking.DefaultPriorityTable()
	}
	return &Engine{
		handle:   handle,
		embedder: embedder,
		pipeline: ranking.NewPipeline(handle, cfg.Priorities),
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Retrieve finds the k most relevant chunks for query and formats them. A non-positive k
// uses the configured top_k. On any failure it returns the fallback together with the error.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) (*models.Retrieval, error) {
	start := time.Now()
	if k <= 0 {
		k = e.config.TopK
	}

	results, err := e.rank(ctx, query, k)
	if err != nil {
		if models.IsExpected(err) {
			e.logger.Warn("Retrieval unavailable", zap.Error(err))
		} else {
			e.logger.Error("Retrieval failed", zap.Error(err))
		}
		return Fallback(), err
	}

	e.logger.Debug("Retrieved context",
		zap.Int("results", len(results)),
		zap.Int("k", k),
		zap.Duration("took", time.Since(start)))
	return &models.Retrieval{
		Context: FormatContextLimit(results, e.config.MaxChunkChars),
		Sources: ExtractSources(results),
		Results: results,
	}, nil
}

func (e *Engine) rank(ctx context.Context, query string, k int) ([]models.RankedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.ErrEmptyQuery
	}
	if !e.handle.Loaded() {
		return nil, models.ErrIndexUnavailable
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.pipeline.Rank(vec, k)
}

// Stats reports the published index and retrieval settings.
func (e *Engine) Stats() Stats {
	s := Stats{
		VectorStore: e.handle.Stats(),
		TopK:        e.config.TopK,
		Generation:  e.handle.Generation(),
	}
	if e.embedder != nil {
		s.EmbedModel = e.embedder.Model()
	}
	if t := e.handle.SwappedAt(); !t.IsZero() {
		s.LastReload = &t
	}
	return s
}

// Handle returns the snapshot handle the engine reads from.
func (e *Engine) Handle() *vector.Handle {
	return e.handle
}
