package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/siteaudit/internal/images"
	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/model"
)

// Result is the outcome of one image review call.
type Result struct {
	Text string
	Err  error
}

// FallbackPolicy decides what a failed image review turns into.
type FallbackPolicy int

const (
	// FallbackEmpty records an empty review and carries on.
	FallbackEmpty FallbackPolicy = iota

	// FallbackFail aborts the stage.
	FallbackFail
)

// ImageAuditor reviews the captions of each page's images from each
// stakeholder's perspective.
type ImageAuditor struct {
	llm         llm.Service
	policy      FallbackPolicy
	concurrency int
	logger      *slog.Logger
}

// NewImageAuditor creates an ImageAuditor applying policy to failed calls.
func NewImageAuditor(svc llm.Service, policy FallbackPolicy, opts ...Option) *ImageAuditor {
	o := newOptions(opts)
	return &ImageAuditor{llm: svc, policy: policy, concurrency: o.concurrency, logger: o.logger}
}

// Review makes one model call over captionsText for st.
func (a *ImageAuditor) Review(ctx context.Context, captionsText string, st model.Stakeholder) Result {
	text, err := a.llm.Complete(ctx, imagePrompt(st), captionsText)
	return Result{Text: text, Err: err}
}

// PageCaptions joins the captions of a page's images with newlines.
// Images without a caption are skipped.
func PageCaptions(rec model.PageRecord, captions model.Captions, baseURL string) string {
	var lines []string
	for _, link := range images.PageImages(rec, baseURL) {
		if c, ok := captions[link]; ok {
			lines = append(lines, c)
		}
	}
	return strings.Join(lines, "\n")
}

// Audit reviews every page of cm for every stakeholder. Pages without
// captioned images get an empty review without a model call. A cancelled
// ctx fails the audit regardless of the fallback policy.
func (a *ImageAuditor) Audit(ctx context.Context, cm *model.ContentMap, captions model.Captions, baseURL string, stakeholders model.Stakeholders) (*model.PageReviews, error) {
	reviews := model.NewPageReviews()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, page := range cm.URLs() {
		rec, _ := cm.Get(page)
		text := PageCaptions(rec, captions, baseURL)
		for _, st := range stakeholders {
			if text == "" {
				reviews.Set(page, st.Name, "")
				continue
			}
			g.Go(func() error {
				res := a.Review(gctx, text, st)
				if interrupted(res.Err) {
					return res.Err
				}
				review, err := a.apply(res)
				if err != nil {
					return fmt.Errorf("image audit of %s for %s: %w", page, st.Name, err)
				}
				if res.Err != nil {
					a.logger.Warn("image review failed, using empty review", "url", page, "stakeholder", st.Name, "error", res.Err)
				}
				reviews.Set(page, st.Name, review)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

// interrupted reports whether err comes from a cancelled or expired context
// rather than from the model. Such failures never get the fallback.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (a *ImageAuditor) apply(res Result) (string, error) {
	if res.Err == nil {
		return res.Text, nil
	}
	if a.policy == FallbackFail {
		return "", res.Err
	}
	return "", nil
}
