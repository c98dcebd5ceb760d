package vector

import (
	"sync/atomic"
	"time"

	"github.com/hyperjump/portfolio-rag/internal/models"
)

// Handle publishes the current index snapshot. Readers take the snapshot with Current and
// keep using it even if a rebuild swaps in a new one; snapshots are never mutated.
type Handle struct {
	current    atomic.Pointer[FlatIndex]
	generation atomic.Uint64
	swappedAt  atomic.Int64
}

// NewHandle returns a handle publishing idx, which may be nil (nothing loaded yet).
func NewHandle(idx *FlatIndex) *Handle {
	h := &Handle{}
	if idx != nil {
		h.Swap(idx)
	}
	return h
}

// Current returns the published snapshot, or nil if none.
func (h *Handle) Current() *FlatIndex {
	return h.current.Load()
}

// Swap publishes idx and returns the previous snapshot.
func (h *Handle) Swap(idx *FlatIndex) *FlatIndex {
	prev := h.current.Swap(idx)
	h.generation.Add(1)
	h.swappedAt.Store(time.Now().UnixNano())
	return prev
}

// Loaded reports whether a non-empty snapshot is published.
func (h *Handle) Loaded() bool {
	return h.Current().Size() > 0
}

// Generation counts swaps since the handle was created.
func (h *Handle) Generation() uint64 {
	return h.generation.Load()
}

// SwappedAt returns when the current snapshot was published; zero if never.
func (h *Handle) SwappedAt() time.Time {
	ns := h.swappedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Stats describes the current snapshot.
func (h *Handle) Stats() models.IndexStats {
	return h.Current().Stats()
}
