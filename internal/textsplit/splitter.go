package textsplit

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidChunkSize is returned for a chunk size that is not positive.
	ErrInvalidChunkSize = errors.New("textsplit: chunk size must be positive")

	// ErrOverlapTooLarge is returned when the overlap exceeds the chunk size.
	ErrOverlapTooLarge = errors.New("textsplit: chunk overlap larger than chunk size")
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most size characters where possible,
// preferring to break on the coarsest separator that occurs in the text.
// Consecutive chunks share up to overlap characters of trailing context.
// Lengths are counted in runes.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeparators replaces DefaultSeparators. The last separator should be ""
// so that any text can be split down to single characters.
func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = separators
		}
	}
}

// New creates a Splitter.
func New(size, overlap int, opts ...Option) (*Splitter, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap > size {
		return nil, ErrOverlapTooLarge
	}
	s := &Splitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Size returns the configured chunk size.
func (s *Splitter) Size() int {
	return s.size
}

// Split returns the chunks of text in order.
//
// Text that fits in one chunk is returned unchanged as the only chunk.
// Empty or whitespace-only text produces no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if runeLen(text) <= s.size {
		return []string{text}
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		small  []string
	)
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < s.size {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, s.merge(small)...)
			small = nil
		}
		if len(next) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, next)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small)...)
	}
	return chunks
}

// merge packs pieces into chunks no longer than size. When a chunk is
// emitted, pieces are dropped from the front of the window until at most
// overlap characters remain to seed the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks []string
		window []string
		total  int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.size && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(window) > 0 && (total > s.overlap || total+n > s.size) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepSeparator splits text on sep and keeps each separator at the start
// of the piece that follows it. Empty pieces are dropped. An empty sep splits
// into single characters.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, runeLen(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	if parts[0] != "" {
		pieces = append(pieces, parts[0])
	}
	for _, p := range parts[1:] {
		pieces = append(pieces, sep+p)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
