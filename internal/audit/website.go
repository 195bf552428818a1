package audit

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/model"
)

// WebsiteAuditor reviews the text of every page from each stakeholder's
// perspective.
type WebsiteAuditor struct {
	llm         llm.Service
	concurrency int
	logger      *slog.Logger
}

// NewWebsiteAuditor creates a WebsiteAuditor.
func NewWebsiteAuditor(svc llm.Service, opts ...Option) *WebsiteAuditor {
	o := newOptions(opts)
	return &WebsiteAuditor{llm: svc, concurrency: o.concurrency, logger: o.logger}
}

// Audit makes one model call per page and stakeholder. The mission statement
// frames every review. Any failure cancels the remaining calls and fails
// the stage.
func (w *WebsiteAuditor) Audit(ctx context.Context, cm *model.ContentMap, stakeholders model.Stakeholders, mission string) (*model.PageReviews, error) {
	reviews := model.NewPageReviews()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, page := range cm.URLs() {
		rec, _ := cm.Get(page)
		for _, st := range stakeholders {
			g.Go(func() error {
				text, err := w.llm.Complete(gctx, websitePrompt(st, mission), rec.Text)
				if err != nil {
					return fmt.Errorf("website audit of %s for %s: %w", page, st.Name, err)
				}
				reviews.Set(page, st.Name, text)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	w.logger.Info("website audit complete", "pages", reviews.Len(), "stakeholders", len(stakeholders))
	return reviews, nil
}
