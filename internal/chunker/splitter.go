// Package chunker splits normalized case text into overlapping fixed-size
// windows for embedding. Splitting is deterministic: the same text and
// config always produce the identical chunk sequence.
package chunker

import (
	"fmt"

	"accidentadvisor/internal/corpus"
	"accidentadvisor/internal/logging"
)

// Chunk is one bounded window of a normalized case text. Chunks are derived
// views - they are regenerated from their source records whenever the corpus
// changes, never patched in place.
type Chunk struct {
	SourceCaseID string
	Text         string
	Index        int // Position within the parent text
	Offset       int // Rune offset of the chunk start in the parent text
}

// separators, in priority order. Splitting prefers to cut after a paragraph
// break, then a line break, then a space; the empty separator means a hard
// cut at the size bound.
var separators = []string{"\n\n", "\n", " "}

// Splitter is a recursive character splitter with a fixed window size and
// overlap, both measured in runes.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the configuration. overlap must be smaller than
// size and both must be positive.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap <= 0 {
		return nil, fmt.Errorf("chunk overlap must be positive, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split cuts text into ordered chunks of at most size runes with the
// configured overlap. Text within the size bound yields exactly one chunk.
// Empty text yields none.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + s.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cutPoint(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			Text:   string(runes[start:end]),
			Index:  len(chunks),
			Offset: start,
		})

		if end >= len(runes) {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	logging.ChunkerDebug("split %d runes into %d chunks (size=%d overlap=%d)",
		len(runes), len(chunks), s.size, s.overlap)
	return chunks
}

// SplitRecord splits one normalized record, tagging every chunk with the
// source case id.
func (s *Splitter) SplitRecord(n corpus.Normalized) []Chunk {
	chunks := s.Split(n.Text)
	for i := range chunks {
		chunks[i].SourceCaseID = n.CaseID
	}
	return chunks
}

// SplitAll splits every normalized record, preserving corpus order.
func (s *Splitter) SplitAll(records []corpus.Normalized) []Chunk {
	var all []Chunk
	for _, n := range records {
		all = append(all, s.SplitRecord(n)...)
	}
	logging.Chunker("produced %d chunks from %d records", len(all), len(records))
	return all
}

// cutPoint finds where to end a non-final chunk. It prefers the highest
// priority separator occurring inside the window, cutting just after it so
// the separator stays with the earlier chunk. A cut must land past the
// overlap region so the next window starts beyond the current one; a
// separator that only occurs earlier (a paragraph break sitting inside the
// overlap carried over from the previous chunk) falls through to the next
// separator, and finally to a hard cut at the size bound.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	floor := start + s.overlap
	for _, sep := range separators {
		if cut := lastSeparatorEnd(runes, start, end, []rune(sep)); cut > floor {
			return cut
		}
	}
	return end
}

// lastSeparatorEnd returns the index just past the last occurrence of sep
// fully contained in runes[start:end], or start if none.
func lastSeparatorEnd(runes []rune, start, end int, sep []rune) int {
	for i := end - len(sep); i > start; i-- {
		match := true
		for j := range sep {
			if runes[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i + len(sep)
		}
	}
	return start
}

// Reconstruct rebuilds the source text from an ordered chunk sequence using
// the per-chunk offsets to drop overlap. It is the inverse of Split.
func Reconstruct(chunks []Chunk) string {
	var out []rune
	for _, c := range chunks {
		text := []rune(c.Text)
		if c.Offset < len(out) {
			text = text[len(out)-c.Offset:]
		}
		out = append(out, text...)
	}
	return string(out)
}
