package ingest

import (
	"strings"
)

// Chunking defaults. 1000 characters keeps a chunk comfortably inside the
// embedding model's token limit; the 200-character overlap preserves
// sentences that straddle a chunk boundary.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators are tried in order: paragraph breaks first, then line
// breaks, then word breaks, then a hard character split as the last
// resort for text with no whitespace at all.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter breaks text into overlapping chunks, preferring to cut at the
// largest structural boundary that keeps each chunk under the size limit.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a splitter with the given chunk size and overlap.
// Non-positive values fall back to the defaults.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split breaks text into chunks. Chunks are trimmed of surrounding
// whitespace and empty chunks are dropped; text at or under the chunk
// size comes back as a single chunk.
func (s *Splitter) Split(text string) []string {
	pieces := s.split(text, s.separators)

	chunks := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

// split recursively divides text at the first separator present in it,
// descending to finer separators for any piece still over the limit, and
// merges sibling pieces back into chunks.
func (s *Splitter) split(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}

	separator := ""
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	if separator == "" {
		return s.hardSplit(text)
	}

	var final []string
	var pending []string
	for _, piece := range strings.Split(text, separator) {
		if len(piece) <= s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		// Flush small siblings before descending into the oversized piece
		// so the output preserves document order.
		if len(pending) > 0 {
			final = append(final, s.merge(pending, separator)...)
			pending = nil
		}
		final = append(final, s.split(piece, rest)...)
	}
	if len(pending) > 0 {
		final = append(final, s.merge(pending, separator)...)
	}
	return final
}

// merge packs consecutive small pieces into chunks up to the size limit,
// carrying the configured overlap from the tail of each chunk into the
// next one.
func (s *Splitter) merge(pieces []string, separator string) []string {
	var chunks []string
	var current []string
	total := 0

	joinedLen := func(extra string) int {
		n := total + len(extra)
		if len(current) > 0 {
			n += len(separator)
		}
		return n
	}

	for _, piece := range pieces {
		if len(current) > 0 && joinedLen(piece) > s.chunkSize {
			chunks = append(chunks, strings.Join(current, separator))

			// Drop pieces from the front until the carried tail fits the
			// overlap budget alongside the incoming piece.
			for len(current) > 0 && (total > s.overlap || joinedLen(piece) > s.chunkSize) {
				total -= len(current[0])
				if len(current) > 1 {
					total -= len(separator)
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += len(separator)
		}
		current = append(current, piece)
		total += len(piece)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, separator))
	}
	return chunks
}

// hardSplit cuts text at fixed offsets. Only reached for runs longer than
// the chunk size with no separator at all.
func (s *Splitter) hardSplit(text string) []string {
	step := s.chunkSize - s.overlap
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
