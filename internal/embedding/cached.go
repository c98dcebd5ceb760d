package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// CachedEmbedder fronts an Embedder with an in-memory LRU for single texts (queries)
// and an optional on-disk cache for batches (ingestion).
type CachedEmbedder struct {
	inner  Embedder
	memory *EmbeddingCache
	disk   *BoltCache
	logger *zap.Logger
}

// NewCachedEmbedder wraps inner. Either cache may be nil.
func NewCachedEmbedder(inner Embedder, memory *EmbeddingCache, disk *BoltCache, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, memory: memory, disk: disk, logger: utils.OrNop(logger)}
}

// Embed returns the embedding for text, consulting the LRU first.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.inner.Model() + "\x00" + text
	if c.memory != nil {
		if v, ok := c.memory.Get(key); ok {
			return v, nil
		}
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if c.memory != nil {
		c.memory.Set(key, v)
	}
	return v, nil
}

// EmbedBatch embeds only the texts missing from the disk cache and stores the new vectors.
// A failing cache read or write is logged and otherwise ignored.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.disk == nil || len(texts) == 0 {
		return c.inner.EmbedBatch(ctx, texts)
	}
	model := c.inner.Model()
	hits, err := c.disk.GetMany(model, texts)
	if err != nil {
		c.logger.Warn("Embedding cache read failed", zap.Error(err))
		hits = map[int][]float32{}
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := hits[i]; ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
	}
	if err := c.disk.PutMany(model, missTexts, vecs); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.Error(err))
	}
	c.logger.Debug("Embedded with cache", zap.Int("hits", len(hits)), zap.Int("misses", len(missTexts)))
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Model returns the wrapped embedder's model.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Close closes the wrapped embedder. The caches belong to the caller.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
