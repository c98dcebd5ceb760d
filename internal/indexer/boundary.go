package indexer

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// sentenceEnd matches a sentence terminator followed by a whitespace run.
var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// sectionBreaks are tried in order: paragraph break, markdown heading, bullet, numbered and dashed list items.
var sectionBreaks = []*regexp.Regexp{
	regexp.MustCompile(`\n\n+`),
	regexp.MustCompile(`\n#{1,6}\s`),
	regexp.MustCompile(`\n\*\s`),
	regexp.MustCompile(`\n\d+\.\s`),
	regexp.MustCompile(`\n-\s`),
}

// runeText is a document with the byte offset of every character, so windows and cuts are
// measured in characters while slicing stays in bytes.
type runeText struct {
	text    string
	offsets []int // offsets[i] is where character i starts; offsets[len] == len(text)
}

func newRuneText(text string) *runeText {
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return &runeText{text: text, offsets: append(offsets, len(text))}
}

// len is the number of characters.
func (t *runeText) len() int {
	return len(t.offsets) - 1
}

// byteAt converts a character position to a byte offset.
func (t *runeText) byteAt(pos int) int {
	return t.offsets[pos]
}

// posAt converts a byte offset on a character boundary to a character position.
func (t *runeText) posAt(off int) int {
	return sort.SearchInts(t.offsets, off)
}

// slice returns the text of characters [start, end).
func (t *runeText) slice(start, end int) string {
	return t.text[t.offsets[start]:t.offsets[end]]
}

// boundaryStrategy proposes a cut inside characters [start, end). ok is false when the
// strategy found nothing acceptable and the next strategy should be tried.
type boundaryStrategy interface {
	name() string
	cut(t *runeText, start, end int) (pos int, ok bool)
}

// defaultStrategies is the cut search order.
var defaultStrategies = []boundaryStrategy{
	sentenceBoundary{minFraction: 0.5},
	sectionBoundary{minFraction: 0.3},
	wordBoundary{minFraction: 0.3},
	hardBoundary{},
}

// pastFraction reports whether pos lies more than frac of the way into [start, end).
func pastFraction(pos, start, end int, frac float64) bool {
	return float64(pos-start) > frac*float64(end-start)
}

type sentenceBoundary struct{ minFraction float64 }

func (sentenceBoundary) name() string { return "sentence" }

// cut places the boundary after the whitespace that follows the last terminator in the window.
func (s sentenceBoundary) cut(t *runeText, start, end int) (int, bool) {
	matches := sentenceEnd.FindAllStringIndex(t.slice(start, end), -1)
	if len(matches) == 0 {
		return 0, false
	}
	pos := t.posAt(t.byteAt(start) + matches[len(matches)-1][1])
	return pos, pastFraction(pos, start, end, s.minFraction)
}

type sectionBoundary struct{ minFraction float64 }

func (sectionBoundary) name() string { return "section" }

// cut keeps the newline that opens the section with the previous chunk.
func (s sectionBoundary) cut(t *runeText, start, end int) (int, bool) {
	window := t.slice(start, end)
	for _, re := range sectionBreaks {
		matches := re.FindAllStringIndex(window, -1)
		if len(matches) == 0 {
			continue
		}
		pos := t.posAt(t.byteAt(start)+matches[len(matches)-1][0]) + 1
		if pastFraction(pos, start, end, s.minFraction) {
			return pos, true
		}
	}
	return 0, false
}

type wordBoundary struct{ minFraction float64 }

func (wordBoundary) name() string { return "word" }

func (w wordBoundary) cut(t *runeText, start, end int) (int, bool) {
	i := strings.LastIndexByte(t.slice(start, end), ' ')
	if i < 0 {
		return 0, false
	}
	space := t.posAt(t.byteAt(start) + i)
	return space + 1, pastFraction(space, start, end, w.minFraction)
}

type hardBoundary struct{}

func (hardBoundary) name() string { return "hard" }

// cut takes the full window. Positions are characters, so no multi-byte sequence is split.
func (hardBoundary) cut(_ *runeText, _, end int) (int, bool) {
	return end, true
}

// overlapStart returns where the chunk after [start, cut) begins. It steps back overlap
// characters from cut (never before start) and, when a sentence ends strictly inside that
// window, moves forward to just after the first such sentence end. The result is always
// past start, so splitting progresses even when overlap covers the whole chunk.
func overlapStart(t *runeText, start, cut, overlap int) int {
	from := cut - overlap
	if from < start {
		from = start
	}
	if m := sentenceEnd.FindStringIndex(t.slice(from, cut)); m != nil {
		if end := t.byteAt(from) + m[1]; end < t.byteAt(cut) {
			return t.posAt(end)
		}
	}
	if from <= start {
		return start + 1
	}
	return from
}
