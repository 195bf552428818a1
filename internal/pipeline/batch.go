package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/model"
)

// Target is one organization to audit.
type Target struct {
	// Organization names the run and scopes its snapshot directory.
	Organization string

	// Site is the resolved site configuration. Site.URL is the base URL.
	Site config.SiteConfig
}

// Factory builds the pipeline for one target.
type Factory func(target Target) (*Pipeline, error)

// BatchProcessor audits several organizations concurrently.
// Every target gets a fresh pipeline from the factory so that no state is
// shared between runs.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent audits.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: config.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch audits targets with at most the configured number running at
// once. Runs are returned in target order, including failed ones; the error
// only reports cancellation of the batch.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*model.AuditRun, error) {
	runs := make([]*model.AuditRun, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(run *model.AuditRun, index int) {
		runs[index] = run
	})
	return runs, err
}

// ProcessBatchWithCallback audits targets and calls callback for every
// finished run with its index in targets. callback is called from the
// goroutine that ran the audit and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []Target,
	callback func(run *model.AuditRun, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("auditing organization",
				"organization", target.Organization,
				"url", target.Site.URL,
				"index", i+1,
				"total", len(targets),
			)

			run := model.NewAuditRun(target.Organization, target.Site.URL, target.Site.Stakeholders)
			p, err := bp.factory(target)
			if err != nil {
				run.Error = err
				run.ErrorMessage = err.Error()
				run.FinishedAt = time.Now()
			} else if err := p.Execute(ctx, run); err != nil {
				// The error is recorded in the run; other audits continue.
				bp.logger.Warn("audit failed",
					"organization", target.Organization,
					"error", err,
				)
			} else {
				bp.logger.Info("audit completed",
					"organization", target.Organization,
					"elapsed", run.Duration(),
				)
			}

			callback(run, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
