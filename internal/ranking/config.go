package ranking

import "fmt"

// OverFetchFactor is how many candidates per requested result are pulled from the index
// before re-ranking.
const OverFetchFactor = 3

// DefaultBoost applies to sources missing from the priority table.
const DefaultBoost = 1.0

// PriorityTable maps a source key (e.g. "experience.json") to a score multiplier.
type PriorityTable map[string]float64

// DefaultPriorityTable returns the built-in source priorities.
func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		"experience.json":      1.3,
		"projects.json":        1.1,
		"about.md":             1.05,
		"education.json":       1.0,
		"extracurricular.json": 0.95,
		"projects_social.json": 0.9,
	}
}

// Boost returns the multiplier for source, or DefaultBoost when the source is not listed.
func (t PriorityTable) Boost(source string) float64 {
	if b, ok := t[source]; ok {
		return b
	}
	return DefaultBoost
}

// Validate rejects non-positive multipliers.
func (t PriorityTable) Validate() error {
	for source, b := range t {
		if b <= 0 {
			return fmt.Errorf("source priority for %q must be positive, got %v", source, b)
		}
	}
	return nil
}
