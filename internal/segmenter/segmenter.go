// Package segmenter splits raw text into bounded, semantically coherent
// chunks. Splitting is recursive: coarse separators (paragraph breaks)
// are tried before fine ones (sentence punctuation, spaces), and pieces
// that are still too large are re-split with the remaining separators.
// Fixed-size rune windows are the final fallback when no separator
// matches.
//
// Separators are retained as a suffix of the preceding piece, so the
// original text can be reconstructed from the chunks: concatenating all
// chunks after trimming the carried overlap prefix from each chunk but
// the first yields the input exactly. Lengths are measured in runes, not
// bytes.
package segmenter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/meridianhq/ragpipe/internal/core/domain"
)

// DefaultChunkSize is the default target chunk size in runes.
const DefaultChunkSize = 150

// DefaultOverlap is the default number of trailing runes carried over
// from the previous chunk.
const DefaultOverlap = 30

// DefaultSeparators is the default separator priority, coarsest first.
var DefaultSeparators = []string{"\r\n\r\n", "\n\n", "\r\n", "\n", ". ", "? ", "! ", " "}

// Segmenter splits text into chunks of at most chunkSize runes.
// It is pure and deterministic: the same input and configuration always
// produce the same chunks.
type Segmenter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New creates a segmenter. chunkSize must be positive and overlap must be
// non-negative and strictly smaller than chunkSize; anything else is a
// configuration error, rejected here rather than clamped.
func New(chunkSize, overlap int, separators []string) (*Segmenter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", chunkSize, domain.ErrInvalidConfig)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must be non-negative, got %d: %w", overlap, domain.ErrInvalidConfig)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d: %w", overlap, chunkSize, domain.ErrInvalidConfig)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Segmenter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: separators,
	}, nil
}

// Split returns the ordered chunks for text. Empty input yields no
// chunks; output chunks are never empty strings.
//
// The text is first partitioned losslessly into pieces no longer than
// chunkSize-overlap runes, then adjacent pieces are packed into chunks of
// at most chunkSize runes with the trailing overlap of each chunk carried
// into the next. Keeping pieces within the reduced budget is what lets
// every chunk honour the size bound even after the overlap prefix is
// prepended.
func (s *Segmenter) Split(text string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	return s.merge(s.partition(text, s.separators))
}

// pieceBudget is the maximum piece length that still fits in a chunk
// alongside the carried overlap.
func (s *Segmenter) pieceBudget() int {
	return s.chunkSize - s.overlap
}

// partition splits text into an ordered, lossless sequence of pieces,
// each at most pieceBudget runes long. Separators are tried in priority
// order; a piece that is still too long is re-split with the remaining,
// lower-priority separators only. When every separator fails, the text is
// cut into fixed-size rune windows.
func (s *Segmenter) partition(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.pieceBudget() {
		return []string{text}
	}

	for i, sep := range separators {
		parts := splitKeepSeparator(text, sep)
		if len(parts) <= 1 {
			// Separator did not match; fall through to the next one.
			continue
		}

		pieces := make([]string, 0, len(parts))
		for _, part := range parts {
			if utf8.RuneCountInString(part) <= s.pieceBudget() {
				pieces = append(pieces, part)
			} else {
				pieces = append(pieces, s.partition(part, separators[i+1:])...)
			}
		}
		return pieces
	}

	return windows(text, s.pieceBudget())
}

// splitKeepSeparator splits text on sep, keeping sep as a suffix of the
// preceding piece so concatenation is lossless.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	// SplitAfter leaves a trailing empty string when text ends with sep.
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// merge packs adjacent pieces into chunks of at most chunkSize runes,
// starting each chunk after the first with the trailing overlap runes of
// the previous one.
func (s *Segmenter) merge(pieces []string) []string {
	var chunks []string
	current := ""
	currentLen := 0

	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		pieceLen := utf8.RuneCountInString(piece)

		switch {
		case currentLen == 0:
			current = piece
			currentLen = pieceLen
		case currentLen+pieceLen <= s.chunkSize:
			current += piece
			currentLen += pieceLen
		default:
			chunks = append(chunks, current)
			if s.overlap > 0 {
				tail := runeTail(current, s.overlap)
				current = tail + piece
				currentLen = utf8.RuneCountInString(tail) + pieceLen
			} else {
				current = piece
				currentLen = pieceLen
			}
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// windows cuts text into consecutive rune windows of the given size.
func windows(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// runeTail returns the last n runes of text, or all of it when shorter.
func runeTail(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
