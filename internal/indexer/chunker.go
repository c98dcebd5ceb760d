// Package indexer provides document chunking and the ingestion pipeline.
package indexer

import (
	"strings"
	"sync"

	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/pkg/utils"
)

const (
	// DefaultChunkSize is the target chunk size in estimated tokens.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is the overlap between consecutive chunks in estimated tokens.
	DefaultChunkOverlap = 150
)

// Chunker splits text into boundary-aware, overlapping chunks.
// Sizes are in estimated tokens (see utils.EstimateTokens).
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	strategies   []boundaryStrategy
}

// NewChunker creates a chunker with the given size and overlap (in tokens).
// A non-positive size falls back to DefaultChunkSize; a negative overlap is treated as zero.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		strategies:   defaultStrategies,
	}
}

// span is a half-open byte range of the trimmed document text.
type span struct {
	start, end int
}

// Split splits text into chunks carrying base's metadata. Empty or whitespace-only
// text yields no chunks. Every chunk reports the final chunk count in TotalChunks.
func (c *Chunker) Split(text string, base models.Document) []models.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	spans := c.spans(text)
	chunks := make([]models.Chunk, 0, len(spans))
	for _, s := range spans {
		piece := strings.TrimSpace(text[s.start:s.end])
		if piece == "" {
			continue
		}
		chunk := models.NewChunk(base, piece)
		chunk.ChunkIndex = len(chunks)
		chunk.Tokens = utils.EstimateTokens(piece)
		chunks = append(chunks, chunk)
	}
	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// spans computes chunk ranges over already-trimmed text. Window and overlap are measured
// in characters; the returned spans are byte offsets.
func (c *Chunker) spans(text string) []span {
	if utils.EstimateTokens(text) <= c.chunkSize {
		return []span{{0, len(text)}}
	}
	window := utils.TokensToChars(c.chunkSize)
	overlap := utils.TokensToChars(c.chunkOverlap)

	t := newRuneText(text)
	n := t.len()
	var out []span
	start := 0
	for start < n {
		end := start + window
		if end >= n {
			out = append(out, span{t.byteAt(start), len(text)})
			break
		}
		cut := c.findCut(t, start, end)
		out = append(out, span{t.byteAt(start), t.byteAt(cut)})
		start = overlapStart(t, start, cut, overlap)
	}
	return out
}

// findCut asks each strategy in priority order for a cut inside characters [start, end).
func (c *Chunker) findCut(t *runeText, start, end int) int {
	for _, s := range c.strategies {
		if pos, ok := s.cut(t, start, end); ok {
			return pos
		}
	}
	return end
}

// SplitDocuments splits every document and assigns GlobalChunkID in document order.
// Documents with empty text are skipped. Documents are split concurrently.
func (c *Chunker) SplitDocuments(docs []models.Document) []models.Chunk {
	perDoc := make([][]models.Chunk, len(docs))
	var wg sync.WaitGroup
	for i := range docs {
		if docs[i].Text == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			perDoc[i] = c.Split(docs[i].Text, docs[i])
		}(i)
	}
	wg.Wait()

	var all []models.Chunk
	for _, chunks := range perDoc {
		for _, ch := range chunks {
			ch.GlobalChunkID = len(all)
			all = append(all, ch)
		}
	}
	return all
}
