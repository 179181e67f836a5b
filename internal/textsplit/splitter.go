// Package textsplit splits transcripts into overlapping chunks that respect
// paragraph, line and word boundaries where possible.
package textsplit

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Defaults used by the HTTP API.
const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 150
)

// Static errors for splitter configuration.
var (
	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("textsplit: chunk size must be positive")
	// ErrInvalidOverlap is returned when the overlap is negative or not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("textsplit: overlap must be in [0, chunk size)")
)

// DefaultSeparators are tried in order, from paragraph breaks down to
// single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text on the coarsest separator that occurs in it
// and recurses into pieces that are still longer than ChunkSize. Adjacent
// small pieces are merged back into chunks of at most ChunkSize runes that
// share up to ChunkOverlap runes with their predecessor.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a RecursiveSplitter.
func New(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, ErrInvalidOverlap
	}
	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// ChunkSize returns the configured maximum chunk length in runes.
func (s *RecursiveSplitter) ChunkSize() int { return s.chunkSize }

// Split returns the chunks of text. Whitespace-only text yields no chunks.
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		for _, p := range strings.Split(text, separator) {
			if p != "" {
				pieces = append(pieces, p)
			}
		}
	}

	var chunks, small []string
	for _, p := range pieces {
		if length(p) < s.chunkSize {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small, separator)...)
			small = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, p)
		} else {
			chunks = append(chunks, s.split(p, rest)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small, separator)...)
	}
	return chunks
}

// merge packs pieces into chunks, carrying a tail of up to chunkOverlap runes
// from one chunk into the next.
func (s *RecursiveSplitter) merge(pieces []string, separator string) []string {
	sepLen := length(separator)
	var chunks, current []string
	total := 0

	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		l := length(p)
		if total+l+joinLen() > s.chunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.chunkOverlap || (total+l+joinLen() > s.chunkSize && total > 0) {
				drop := length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		total += l + joinLen()
		current = append(current, p)
	}
	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
