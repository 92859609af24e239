// Package chunker splits extracted document text into overlapping pieces
// sized for embedding.
package chunker

import (
	"strings"
	"unicode"
)

// Piece is one chunk of text with its offsets into the source.
type Piece struct {
	Text  string
	Start int // inclusive byte offset into the source text
	End   int // exclusive byte offset
}

// Chunker splits text into pieces of at most Size bytes, with consecutive
// pieces overlapping by Overlap bytes where a clean boundary allows it.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Size must be positive and overlap must be smaller
// than size; the config layer validates this before construction.
func New(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into pieces. Boundaries prefer paragraph breaks, then
// sentence ends, then word boundaries, falling back to a hard cut. Every
// byte of the source appears in at least one piece, and each piece starts
// at most overlap bytes before the previous piece's end.
func (c *Chunker) Split(text string) []Piece {
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []Piece{{Text: text, Start: 0, End: len(text)}}
	}

	var pieces []Piece
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			pieces = append(pieces, Piece{Text: text[start:], Start: start, End: len(text)})
			break
		}

		cut := findBoundary(text, start, end)
		pieces = append(pieces, Piece{Text: text[start:cut], Start: start, End: cut})

		// Walk forward off a mid-rune position so the actual overlap never
		// exceeds the configured width.
		next := cut - c.overlap
		for next < cut && next > start && !isRuneStart(text[next]) {
			next++
		}
		if next <= start {
			// Overlap would stall progress; advance past the cut instead.
			next = cut
		}
		start = next
	}

	return pieces
}

// findBoundary picks the best cut point in (start, limit]. It scans the tail
// of the window for a paragraph break, then a sentence end, then whitespace.
func findBoundary(text string, start, limit int) int {
	window := text[start:limit]

	// Paragraph break: cut after the blank line.
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}

	// Sentence end: cut after terminal punctuation followed by a space.
	best := -1
	for i := len(window) - 2; i > 0; i-- {
		if isSentenceEnd(window[i]) && isSpaceByte(window[i+1]) {
			best = i + 2
			break
		}
	}
	if best > 0 {
		return start + best
	}

	// Word boundary: cut after the last whitespace run.
	for i := len(window) - 1; i > 0; i-- {
		if isSpaceByte(window[i]) {
			return start + i + 1
		}
	}

	// Hard cut, avoiding splitting a multi-byte rune.
	cut := limit
	for cut > start && !isRuneStart(text[cut]) {
		cut--
	}
	if cut == start {
		return limit
	}
	return cut
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpaceByte(b byte) bool {
	return b < unicode.MaxASCII && unicode.IsSpace(rune(b))
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
