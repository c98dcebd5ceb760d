package config

import (
	"fmt"

	"github.com/hyperjump/portfolio-rag/internal/ranking"
	"github.com/hyperjump/portfolio-rag/internal/vector"
)

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if _, err := vector.ParseKind(c.Retrieval.IndexKind); err != nil {
		return fmt.Errorf("retrieval.index_kind: %w", err)
	}
	if err := ranking.PriorityTable(c.Retrieval.SourcePriority).Validate(); err != nil {
		return fmt.Errorf("retrieval.source_priority: %w", err)
	}
	if c.Provider.EmbedBatchSize < 0 {
		return fmt.Errorf("provider.embed_batch_size must not be negative, got %d", c.Provider.EmbedBatchSize)
	}
	if c.Provider.MaxRetriesOrDefault() < 0 {
		return fmt.Errorf("provider.max_retries must not be negative")
	}
	return nil
}
