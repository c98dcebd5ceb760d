package ranking

// SourcePriorityMultiplier scales a score by the priority of the chunk's source.
type SourcePriorityMultiplier struct {
	table PriorityTable
}

// NewSourcePriorityMultiplier creates a new SourcePriorityMultiplier. A nil table boosts nothing.
func NewSourcePriorityMultiplier(table PriorityTable) *SourcePriorityMultiplier {
	return &SourcePriorityMultiplier{table: table}
}

// Name returns the multiplier name.
func (m *SourcePriorityMultiplier) Name() string {
	return "source_priority"
}

// Multiply applies the source priority to the base score.
func (m *SourcePriorityMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	if ctx == nil || ctx.Chunk == nil {
		return baseScore
	}
	return baseScore * m.table.Boost(ctx.Chunk.Source)
}

// DefaultMultipliers returns the multipliers applied by a pipeline built from table.
func DefaultMultipliers(table PriorityTable) []Multiplier {
	return []Multiplier{NewSourcePriorityMultiplier(table)}
}
