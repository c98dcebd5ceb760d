package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector's length disagrees with the index dimension,
	// or when vector and chunk counts differ at build time.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexUnavailable is returned when search is attempted before an index was built or loaded.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrNotLoaded is the same condition as ErrIndexUnavailable, as seen from the index itself.
	ErrNotLoaded = ErrIndexUnavailable

	// ErrCorruptIndex is returned when persisted index files disagree with each other.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrEmptyInput is returned for an empty embedding batch or empty query vector.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmptyQuery is returned for a blank query; it matches ErrEmptyInput with errors.Is.
	ErrEmptyQuery = fmt.Errorf("%w: query cannot be empty", ErrEmptyInput)

	// ErrInvalidQuestion is returned when a chat question fails validation.
	ErrInvalidQuestion = errors.New("invalid question")
)

// IsExpected reports whether err is one of the anticipated retrieval conditions
// (blank query, index not ready) rather than a fault.
func IsExpected(err error) bool {
	return errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrIndexUnavailable)
}
