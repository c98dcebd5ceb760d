// Package embedding turns text into vectors through a hosted model, with in-memory and
// on-disk caches in front of it.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector length, or 0 while it is still unknown.
	Dimensions() int
	// Model names the embedding model; cache keys include it.
	Model() string
	Close() error
}
