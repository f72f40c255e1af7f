// Package chunker splits extracted document text into overlapping
// fixed-size segments suitable for embedding.
package chunker

import (
	"errors"
	"strings"
	"unicode"
)

// Chunker applies a sliding window over runes. Size is the maximum
// window length, Overlap the number of runes shared with the previous
// window so context spanning a boundary is preserved.
type Chunker struct {
	Size    int
	Overlap int
}

// New validates the window parameters and returns a Chunker.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be > 0")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk overlap must be >= 0 and < size")
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

// Split returns the text cut into overlapping windows, in document
// order. Window ends are pulled back to the nearest whitespace where
// possible so words are not bisected. Empty input yields nil.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end >= len(runes) {
			end = len(runes)
		} else if boundary := snapToWhitespace(runes, start, end); boundary > start {
			end = boundary
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}

		// The next window starts Overlap runes before the (possibly
		// snapped) end of this one. Guard against stalling when the
		// snap pulled the end close to the current start.
		next := end - c.Overlap
		if next <= start {
			next = start + (c.Size - c.Overlap)
		}
		start = next
	}

	return chunks
}

// snapToWhitespace walks back from end looking for a whitespace rune to
// break on. It gives up after half a window so pathological inputs with
// no whitespace still chunk.
func snapToWhitespace(runes []rune, start, end int) int {
	limit := start + (end-start)/2
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
