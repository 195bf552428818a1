package audit

import (
	"context"
	"fmt"

	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/model"
	"github.com/nao1215/siteaudit/internal/textsplit"
)

// Summarizer applies one instruction to every chunk of a text.
// Calls are sequential, one per chunk, and share no history.
type Summarizer struct {
	llm      llm.Service
	splitter *textsplit.Splitter
}

// NewSummarizer creates a Summarizer that chunks with splitter.
func NewSummarizer(svc llm.Service, splitter *textsplit.Splitter) *Summarizer {
	return &Summarizer{llm: svc, splitter: splitter}
}

// Summarize returns one free-form answer per chunk, in chunk order.
// Text that is empty or whitespace only produces no calls and no answers.
func (s *Summarizer) Summarize(ctx context.Context, text, instruction string) ([]string, error) {
	chunks := s.splitter.Split(text)
	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		answer, err := s.llm.Complete(ctx, instruction, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out = append(out, answer)
	}
	return out, nil
}

// SummarizeStructured returns one Finding per chunk, in chunk order.
// The instruction is prefixed to each chunk.
func (s *Summarizer) SummarizeStructured(ctx context.Context, text, instruction string) ([]model.Finding, error) {
	chunks := s.splitter.Split(text)
	out := make([]model.Finding, 0, len(chunks))
	for i, chunk := range chunks {
		finding, err := s.llm.CompleteStructured(ctx, instruction+chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out = append(out, finding)
	}
	return out, nil
}
