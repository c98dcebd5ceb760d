package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/embedding"
	"github.com/hyperjump/portfolio-rag/internal/loader"
	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/storage"
	"github.com/hyperjump/portfolio-rag/internal/vector"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

const (
	// DefaultEmbedBatchSize is the number of chunks sent per embedding call.
	DefaultEmbedBatchSize = 100

	smokeK     = 3
	smokeValue = 0.1
)

// ProgressFunc reports embedded chunks so far out of total.
type ProgressFunc func(done, total int)

// Options controls where and how the pipeline writes the index.
type Options struct {
	IndexKind  string
	VectorPath string
	ChunksPath string
	BatchSize  int
}

// Summary describes one completed ingestion.
type Summary struct {
	RunID        string        `json:"run_id,omitempty"`
	Documents    int           `json:"documents"`
	Chunks       int           `json:"chunks"`
	Dimension    int           `json:"dimension"`
	IndexKind    string        `json:"index_kind"`
	SmokeResults int           `json:"smoke_results"`
	Duration     time.Duration `json:"duration"`
}

// Pipeline loads the knowledge directory, chunks and embeds it, and builds the similarity index.
// Runs are serialised; a rebuild never overlaps another.
type Pipeline struct {
	loader   *loader.Loader
	chunker  *Chunker
	embedder embedding.Embedder
	catalog  storage.Catalog
	opts     Options
	progress ProgressFunc
	logger   *zap.Logger
	mu       sync.Mutex
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger for ingestion progress and the run summary.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = utils.OrNop(l) }
}

// WithProgress sets a callback invoked after every embedding batch.
func WithProgress(fn ProgressFunc) PipelineOption {
	return func(p *Pipeline) { p.progress = fn }
}

// WithCatalog records every run in catalog.
func WithCatalog(c storage.Catalog) PipelineOption {
	return func(p *Pipeline) { p.catalog = c }
}

// NewPipeline creates an ingestion pipeline. Empty paths in opts skip persisting the index.
func NewPipeline(l *loader.Loader, chunker *Chunker, embedder embedding.Embedder, opts Options, options ...PipelineOption) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultEmbedBatchSize
	}
	if opts.BatchSize > embedding.MaxBatchSize {
		opts.BatchSize = embedding.MaxBatchSize
	}
	p := &Pipeline{
		loader:   l,
		chunker:  chunker,
		embedder: embedder,
		opts:     opts,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Run performs one full ingestion and returns the new index.
func (p *Pipeline) Run(ctx context.Context) (*vector.FlatIndex, *Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run(ctx)
}

// Rebuild runs a full ingestion and publishes the result on h. On failure the
// previous snapshot stays in place.
func (p *Pipeline) Rebuild(ctx context.Context, h *vector.Handle) (*Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, summary, err := p.run(ctx)
	if err != nil {
		return nil, err
	}
	h.Swap(idx)
	p.logger.Info("index swapped", zap.Uint64("generation", h.Generation()), zap.Int("chunks", idx.Size()))
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context) (*vector.FlatIndex, *Summary, error) {
	start := time.Now()
	var run *storage.Run
	if p.catalog != nil {
		r, err := p.catalog.StartRun(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog: %w", err)
		}
		run = r
	}

	idx, summary, docs, chunks, err := p.build(ctx)
	if err != nil {
		if run != nil {
			if ferr := p.catalog.FailRun(context.WithoutCancel(ctx), run, err); ferr != nil {
				p.logger.Warn("failed to record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
			}
		}
		return nil, nil, err
	}

	if run != nil {
		if err := p.catalog.CompleteRun(ctx, run, docs, chunks, idx.Dimension()); err != nil {
			return nil, nil, fmt.Errorf("catalog: %w", err)
		}
		summary.RunID = run.ID
	}

	summary.SmokeResults = p.smokeTest(idx)
	summary.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		zap.String("run_id", summary.RunID),
		zap.Int("documents", summary.Documents),
		zap.Int("chunks", summary.Chunks),
		zap.Int("dimension", summary.Dimension),
		zap.String("index_kind", summary.IndexKind),
		zap.Int("smoke_results", summary.SmokeResults),
		zap.Duration("duration", summary.Duration),
	)
	return idx, summary, nil
}

func (p *Pipeline) build(ctx context.Context) (*vector.FlatIndex, *Summary, []models.Document, []models.Chunk, error) {
	docs, err := p.loader.Load(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("%w: no documents found in %s", models.ErrEmptyInput, p.loader.Root())
	}
	p.logger.Info("documents loaded", zap.Int("documents", len(docs)))

	chunks := p.chunker.SplitDocuments(docs)
	if len(chunks) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("%w: documents produced no chunks", models.ErrEmptyInput)
	}
	p.logger.Info("documents chunked", zap.Int("chunks", len(chunks)))

	vectors, err := p.embed(ctx, chunks)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	idx, err := vector.NewIndex(p.opts.IndexKind, vectors, chunks)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build index: %w", err)
	}
	if p.opts.VectorPath != "" && p.opts.ChunksPath != "" {
		if err := idx.Save(p.opts.VectorPath, p.opts.ChunksPath); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("save index: %w", err)
		}
		p.logger.Info("index saved", zap.String("vectors", p.opts.VectorPath), zap.String("chunks", p.opts.ChunksPath))
	}

	summary := &Summary{
		Documents: len(docs),
		Chunks:    len(chunks),
		Dimension: idx.Dimension(),
		IndexKind: string(idx.Kind()),
	}
	return idx, summary, docs, chunks, nil
}

// embed embeds chunk texts in batches, in order.
func (p *Pipeline) embed(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	total := len(chunks)
	vectors := make([][]float32, 0, total)
	for start := 0; start < total; start += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + p.opts.BatchSize
		if end > total {
			end = total
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, batch...)
		p.logger.Debug("batch embedded", zap.Int("done", len(vectors)), zap.Int("total", total))
		if p.progress != nil {
			p.progress(len(vectors), total)
		}
	}
	if len(vectors) != total {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", models.ErrDimensionMismatch, len(vectors), total)
	}
	return vectors, nil
}

// smokeTest runs a constant-vector query against idx and returns the hit count.
func (p *Pipeline) smokeTest(idx *vector.FlatIndex) int {
	query := make([]float32, idx.Dimension())
	for i := range query {
		query[i] = smokeValue
	}
	results, err := idx.Search(query, smokeK)
	if err != nil {
		p.logger.Warn("smoke search failed", zap.Error(err))
		return 0
	}
	for i, r := range results {
		p.logger.Debug("smoke result",
			zap.Int("rank", i+1),
			zap.String("source", r.Chunk.Source),
			zap.Float64("score", r.Score),
			zap.String("text", utils.Truncate(r.Chunk.Text, 80)),
		)
	}
	return len(results)
}
