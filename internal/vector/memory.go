// Package vector provides the exact in-memory similarity index, its on-disk form,
// and an atomically swappable handle for serving.
package vector

import (
	"fmt"
	"sort"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

// FlatIndex is an immutable in-memory index using brute-force inner product search
// over L2-normalized vectors. Row i of the vector matrix belongs to chunks[i].
// A FlatIndex is safe for concurrent Search once built.
type FlatIndex struct {
	dimension int
	kind      IndexKind
	vectors   []float32 // row-major, len = len(chunks) * dimension
	chunks    []models.Chunk
}

// Build creates a flat index from parallel vector and chunk slices. The dimension is taken
// from the first vector. Vectors are copied and normalized to unit length; all-zero vectors
// are stored as zero.
func Build(vectors [][]float32, chunks []models.Chunk) (*FlatIndex, error) {
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", models.ErrDimensionMismatch, len(vectors), len(chunks))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: cannot build an index from zero vectors", models.ErrDimensionMismatch)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: vectors have zero dimension", models.ErrDimensionMismatch)
	}
	flat := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d components, expected %d", models.ErrDimensionMismatch, i, len(v), dim)
		}
		row := make([]float32, dim)
		copy(row, v)
		utils.NormalizeL2(row)
		flat = append(flat, row...)
	}
	stored := make([]models.Chunk, len(chunks))
	copy(stored, chunks)
	return &FlatIndex{dimension: dim, kind: KindFlatIP, vectors: flat, chunks: stored}, nil
}

// Search returns the k rows most similar to query, by descending cosine similarity.
// Equal scores keep insertion order. k is clamped to the index size.
func (f *FlatIndex) Search(query []float32, k int) ([]models.RankedResult, error) {
	if f == nil || len(f.chunks) == 0 {
		return nil, models.ErrNotLoaded
	}
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d components, index expects %d", models.ErrDimensionMismatch, len(query), f.dimension)
	}
	if k <= 0 {
		return []models.RankedResult{}, nil
	}
	if k > len(f.chunks) {
		k = len(f.chunks)
	}
	q := make([]float32, len(query))
	copy(q, query)
	utils.NormalizeL2(q)

	type scored struct {
		row   int
		score float64
	}
	scores := make([]scored, len(f.chunks))
	for i := range f.chunks {
		scores[i] = scored{row: i, score: dot(q, f.row(i))}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	results := make([]models.RankedResult, k)
	for i := 0; i < k; i++ {
		s := scores[i]
		results[i] = models.RankedResult{Chunk: f.chunks[s.row], Score: s.score, RawScore: s.score}
	}
	return results, nil
}

func (f *FlatIndex) row(i int) []float32 {
	return f.vectors[i*f.dimension : (i+1)*f.dimension]
}

// Size returns the number of indexed vectors; zero for a nil index.
func (f *FlatIndex) Size() int {
	if f == nil {
		return 0
	}
	return len(f.chunks)
}

// Dimension returns the vector dimension; zero for a nil index.
func (f *FlatIndex) Dimension() int {
	if f == nil {
		return 0
	}
	return f.dimension
}

// Kind returns the index kind recorded in persisted metadata; empty for a nil index.
func (f *FlatIndex) Kind() IndexKind {
	if f == nil {
		return ""
	}
	return f.kind
}

// Chunks returns a copy of the indexed chunks in row order.
func (f *FlatIndex) Chunks() []models.Chunk {
	if f == nil {
		return nil
	}
	out := make([]models.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out
}

// Stats describes the index. A nil or empty index reports Loaded=false.
func (f *FlatIndex) Stats() models.IndexStats {
	if f == nil || len(f.chunks) == 0 {
		return models.IndexStats{Loaded: false}
	}
	return models.IndexStats{
		Loaded:      true,
		TotalChunks: len(f.chunks),
		Dimension:   f.dimension,
		IndexSize:   len(f.vectors) / f.dimension,
		IndexKind:   string(f.kind),
	}
}
