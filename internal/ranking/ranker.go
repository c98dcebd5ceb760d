package ranking

import (
	"fmt"
	"sort"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/vector"
)

// Pipeline ranks chunks for a query vector: it over-fetches from the published index
// snapshot, boosts each candidate, and re-sorts. Rank holds no state between calls.
type Pipeline struct {
	handle      *vector.Handle
	multipliers []Multiplier
}

// NewPipeline creates a pipeline reading snapshots from handle and boosting by table.
func NewPipeline(handle *vector.Handle, table PriorityTable) *Pipeline {
	return &Pipeline{
		handle:      handle,
		multipliers: DefaultMultipliers(table),
	}
}

// WithMultipliers sets custom multipliers.
func (p *Pipeline) WithMultipliers(multipliers []Multiplier) *Pipeline {
	p.multipliers = multipliers
	return p
}

// Rank returns up to k chunks ordered by boosted score, highest first. Candidates with equal
// boosted scores keep their raw similarity order.
func (p *Pipeline) Rank(query []float32, k int) ([]models.RankedResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", models.ErrEmptyInput)
	}
	var snap *vector.FlatIndex
	if p.handle != nil {
		snap = p.handle.Current()
	}
	if snap.Size() == 0 {
		return nil, models.ErrIndexUnavailable
	}
	if k <= 0 {
		return []models.RankedResult{}, nil
	}

	fetch := OverFetchFactor * k
	if n := snap.Size(); fetch > n {
		fetch = n
	}
	candidates, err := snap.Search(query, fetch)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	for i := range candidates {
		c := &candidates[i]
		c.Boost = p.boost(&ScoringContext{Chunk: &c.Chunk, Rank: i})
		c.Score = c.RawScore * c.Boost
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// boost folds every multiplier over a unit score.
func (p *Pipeline) boost(ctx *ScoringContext) float64 {
	b := 1.0
	for _, m := range p.multipliers {
		b = m.Multiply(ctx, b)
	}
	return b
}
