package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/siteaudit/internal/model"
)

// Synthesizer writes the long-form report of each stakeholder.
type Synthesizer struct {
	summarizer *Summarizer
	logger     *slog.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(summarizer *Summarizer, opts ...Option) *Synthesizer {
	o := newOptions(opts)
	return &Synthesizer{summarizer: summarizer, logger: o.logger}
}

// Corpus concatenates the findings of every page for one stakeholder:
//
//	<url>:
//	Benefits:
//	<one per line>
//	Drawbacks:
//	<one per line>
//
// Pages follow sorted URL order and are separated by a newline. A page
// without a finding for the stakeholder contributes empty lists.
func Corpus(findings model.Findings, stakeholder string) string {
	pages := findings.URLs()
	parts := make([]string, 0, len(pages))
	for _, url := range pages {
		f := findings.Get(url, stakeholder)
		parts = append(parts, fmt.Sprintf("%s:\nBenefits:\n%s\nDrawbacks:\n%s",
			url, strings.Join(f.Benefits, "\n"), strings.Join(f.Drawbacks, "\n")))
	}
	return strings.Join(parts, "\n")
}

// Report produces the documents of one stakeholder, one per corpus chunk.
func (s *Synthesizer) Report(ctx context.Context, findings model.Findings, stakeholder string) (model.StakeholderReport, error) {
	docs, err := s.summarizer.Summarize(ctx, Corpus(findings, stakeholder), reportInstruction(stakeholder))
	if err != nil {
		return nil, fmt.Errorf("report for %s: %w", stakeholder, err)
	}
	s.logger.Debug("stakeholder report written", "stakeholder", stakeholder, "documents", len(docs))
	return model.StakeholderReport(docs), nil
}

// Synthesize produces the reports of every stakeholder in order.
// The first failure stops the run.
func (s *Synthesizer) Synthesize(ctx context.Context, findings model.Findings, stakeholders model.Stakeholders) (model.Reports, error) {
	reports := make(model.Reports, len(stakeholders))
	for _, st := range stakeholders {
		report, err := s.Report(ctx, findings, st.Name)
		if err != nil {
			return nil, err
		}
		reports[st.Name] = report
	}
	return reports, nil
}
