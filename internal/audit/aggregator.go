package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/model"
)

// Aggregator merges the website and image reviews of every page into one
// structured Finding per stakeholder.
type Aggregator struct {
	summarizer *Summarizer
	llm        llm.Service
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(summarizer *Summarizer, svc llm.Service, opts ...Option) *Aggregator {
	o := newOptions(opts)
	return &Aggregator{summarizer: summarizer, llm: svc, logger: o.logger}
}

// pairResult is what one (page, stakeholder) worker reports to the collector.
type pairResult struct {
	url         string
	stakeholder string
	finding     model.Finding
	err         error
}

// Aggregate produces a Finding for every page of website and every
// stakeholder.
//
// Pages are processed one at a time in sorted order. For each page all
// stakeholders run concurrently and a single collector records their
// results. A failed pair does not stop its siblings, but once the page's
// batch has finished any failure aborts the whole stage and no findings are
// returned. images may lack a page or a stakeholder; the missing text is
// treated as empty.
func (a *Aggregator) Aggregate(ctx context.Context, website, images *model.PageReviews, stakeholders model.Stakeholders) (model.Findings, error) {
	findings := make(model.Findings)

	for _, page := range website.URLs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.aggregatePage(ctx, page, website, images, stakeholders, findings); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

func (a *Aggregator) aggregatePage(ctx context.Context, page string, website, images *model.PageReviews, stakeholders model.Stakeholders, findings model.Findings) error {
	results := make(chan pairResult)
	done := make(chan struct{})
	var errs []error

	// The collector is the only writer of findings and errs during the batch.
	go func() {
		defer close(done)
		for r := range results {
			if r.err != nil {
				a.logger.Error("failed to aggregate", "url", r.url, "stakeholder", r.stakeholder, "error", r.err)
				errs = append(errs, fmt.Errorf("%s (%s): %w", r.url, r.stakeholder, r.err))
				continue
			}
			findings.Set(r.url, r.stakeholder, r.finding)
		}
	}()

	var wg sync.WaitGroup
	for _, st := range stakeholders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			merged := MergeReviews(website.Get(page, st.Name), reviewText(images, page, st.Name))
			finding, err := a.Finding(ctx, merged, st.Name)
			results <- pairResult{url: page, stakeholder: st.Name, finding: finding, err: err}
		}()
	}
	wg.Wait()
	close(results)
	<-done

	return errors.Join(errs...)
}

// Finding summarizes merged review text into chunk findings, flattens them
// and asks for the final Finding over all collected points.
func (a *Aggregator) Finding(ctx context.Context, merged, stakeholder string) (model.Finding, error) {
	chunks, err := a.summarizer.SummarizeStructured(ctx, merged, summaryInstruction(stakeholder))
	if err != nil {
		return model.Finding{}, err
	}

	var all model.Finding
	for _, c := range chunks {
		all.Append(c)
	}
	return a.llm.CompleteStructured(ctx, findingPrompt(stakeholder, strings.Join(all.Items(), "\n")))
}

// MergeReviews joins the website and image review of one page.
func MergeReviews(website, image string) string {
	return website + "\n" + image
}

func reviewText(reviews *model.PageReviews, url, stakeholder string) string {
	if reviews == nil {
		return ""
	}
	return reviews.Get(url, stakeholder)
}
