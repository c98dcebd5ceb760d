package vector

import (
	"fmt"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

// IndexKind names the index implementation; it is recorded in the persisted metadata header.
type IndexKind string

const (
	// KindFlatIP is exact brute-force inner product search over normalized vectors.
	KindFlatIP IndexKind = "flat_ip"
)

// ParseKind resolves a configured index kind. "", "memory", and "flat" are aliases of flat_ip.
// Approximate kinds are not supported.
func ParseKind(kind string) (IndexKind, error) {
	switch kind {
	case "", "memory", "flat", string(KindFlatIP), "IndexFlatIP":
		return KindFlatIP, nil
	default:
		return "", fmt.Errorf("unknown index kind: %s (supported: flat_ip)", kind)
	}
}

// NewIndex builds an index of the given kind.
func NewIndex(kind string, vectors [][]float32, chunks []models.Chunk) (*FlatIndex, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	idx, err := Build(vectors, chunks)
	if err != nil {
		return nil, err
	}
	idx.kind = k
	return idx, nil
}
