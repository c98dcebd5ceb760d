// Package utils provides shared utilities for text, math, and logging.
package utils

import "unicode/utf8"

// CharsPerToken is the fixed characters-per-token ratio used for size estimates.
const CharsPerToken = 4

// Truncate returns s cut to at most maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	if i := RuneOffset(s, maxLen); i < len(s) {
		return s[:i] + "..."
	}
	return s
}

// RuneOffset returns the byte offset at which the n-th character of s starts,
// or len(s) when s has n characters or fewer.
func RuneOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// EstimateTokens approximates the token count of s as ceil(characters/CharsPerToken).
// Characters are code points, so accented text is not over-counted.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + CharsPerToken - 1) / CharsPerToken
}

// TokensToChars converts a token budget into a character budget.
func TokensToChars(tokens int) int {
	return tokens * CharsPerToken
}
