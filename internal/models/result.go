package models

// RankedResult is a chunk with its similarity score. Score is the boosted score after
// ranking; RawScore is the cosine similarity returned by the index.
type RankedResult struct {
	Chunk    Chunk   `json:"chunk"`
	Score    float64 `json:"score"`
	RawScore float64 `json:"raw_score"`
	Boost    float64 `json:"boost,omitempty"`
}

// Source identifies a document that contributed to an answer.
type Source struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Retrieval is the formatted outcome of a retrieval call.
// Degraded is set when the fallback was returned instead of real results.
type Retrieval struct {
	Context  string         `json:"context"`
	Sources  []Source       `json:"sources"`
	Results  []RankedResult `json:"results,omitempty"`
	Degraded bool           `json:"degraded,omitempty"`
}

// IndexStats describes the currently published index. A zero value means nothing is loaded.
type IndexStats struct {
	Loaded      bool   `json:"loaded"`
	TotalChunks int    `json:"total_chunks"`
	Dimension   int    `json:"dimension"`
	IndexSize   int    `json:"index_size"`
	IndexKind   string `json:"index_kind,omitempty"`
}
