// Package textsplit splits long text into overlapping chunks that fit a
// language model's input budget.
//
// The splitter is recursive: it breaks on paragraph boundaries first, falls
// back to line breaks, then spaces, then single characters, and only for the
// pieces that are still too long. Small pieces are packed back together up to
// the chunk size.
//
//	s, err := textsplit.New(110_000, 200)
//	chunks := s.Split(corpus)
package textsplit
