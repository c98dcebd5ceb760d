// Package models defines core data structures for documents, chunks, and retrieval results.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is a normalized knowledge-base entry produced by the loader.
// Extra holds any additional fields carried by the source (e.g. "technologies").
type Document struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Source    string                 `json:"source"`
	Text      string                 `json:"text"`
	CreatedAt string                 `json:"created_at,omitempty"`
	FileType  string                 `json:"file_type,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Chunk is a bounded slice of a document's text plus the document's metadata.
// It serializes as one flat JSON object; Extra keys sit next to the known fields.
type Chunk struct {
	Text          string
	ChunkIndex    int
	TotalChunks   int
	Tokens        int
	GlobalChunkID int

	ID        string
	Title     string
	Source    string
	CreatedAt string
	FileType  string
	Extra     map[string]interface{}
}

// chunkFields mirrors Chunk with JSON names for the fixed fields.
type chunkFields struct {
	Text          string `json:"text"`
	ChunkIndex    int    `json:"chunk_index"`
	TotalChunks   int    `json:"total_chunks"`
	Tokens        int    `json:"tokens"`
	GlobalChunkID int    `json:"global_chunk_id"`
	ID            string `json:"id,omitempty"`
	Title         string `json:"title,omitempty"`
	Source        string `json:"source,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	FileType      string `json:"file_type,omitempty"`
}

var chunkKnownKeys = map[string]bool{
	"text": true, "chunk_index": true, "total_chunks": true, "tokens": true, "global_chunk_id": true,
	"id": true, "title": true, "source": true, "created_at": true, "file_type": true,
}

// NewChunk returns a chunk carrying doc's metadata and the given text slice.
func NewChunk(doc Document, text string) Chunk {
	c := Chunk{
		Text:      text,
		ID:        doc.ID,
		Title:     doc.Title,
		Source:    doc.Source,
		CreatedAt: doc.CreatedAt,
		FileType:  doc.FileType,
	}
	if len(doc.Extra) > 0 {
		c.Extra = make(map[string]interface{}, len(doc.Extra))
		for k, v := range doc.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// MarshalJSON writes the chunk as a flat object. Known fields take precedence over Extra keys.
func (c Chunk) MarshalJSON() ([]byte, error) {
	fixed, err := marshalRaw(chunkFields{
		Text:          c.Text,
		ChunkIndex:    c.ChunkIndex,
		TotalChunks:   c.TotalChunks,
		Tokens:        c.Tokens,
		GlobalChunkID: c.GlobalChunkID,
		ID:            c.ID,
		Title:         c.Title,
		Source:        c.Source,
		CreatedAt:     c.CreatedAt,
		FileType:      c.FileType,
	})
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return fixed, nil
	}
	merged := make(map[string]json.RawMessage, len(c.Extra)+len(chunkKnownKeys))
	for k, v := range c.Extra {
		if chunkKnownKeys[k] {
			continue
		}
		raw, err := marshalRaw(v)
		if err != nil {
			return nil, fmt.Errorf("marshal extra field %q: %w", k, err)
		}
		merged[k] = raw
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(fixed, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return marshalRaw(merged)
}

// marshalRaw is json.Marshal without HTML escaping, so chunk text stays readable on disk.
func marshalRaw(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads a flat chunk object; unknown keys are collected into Extra.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var fixed chunkFields
	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*c = Chunk{
		Text:          fixed.Text,
		ChunkIndex:    fixed.ChunkIndex,
		TotalChunks:   fixed.TotalChunks,
		Tokens:        fixed.Tokens,
		GlobalChunkID: fixed.GlobalChunkID,
		ID:            fixed.ID,
		Title:         fixed.Title,
		Source:        fixed.Source,
		CreatedAt:     fixed.CreatedAt,
		FileType:      fixed.FileType,
	}
	for k, v := range all {
		if chunkKnownKeys[k] {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]interface{})
		}
		c.Extra[k] = v
	}
	return nil
}
