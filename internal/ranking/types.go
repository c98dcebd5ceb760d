// Package ranking re-ranks nearest-neighbour candidates with per-source score multipliers.
package ranking

import "github.com/hyperjump/portfolio-rag/internal/models"

// ScoringContext is what a multiplier sees about one candidate.
type ScoringContext struct {
	// Chunk is the candidate being scored.
	Chunk *models.Chunk
	// Rank is the candidate's 0-based position in the raw similarity order.
	Rank int
}

// Multiplier adjusts a candidate's score. Implementations must be multiplicative and pure:
// the same context and base score always yield the same result.
type Multiplier interface {
	// Multiply applies a multiplier to the base score.
	Multiply(ctx *ScoringContext, baseScore float64) float64
	// Name returns the name of the multiplier for debugging/logging.
	Name() string
}
