package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/siteaudit/internal/metrics"
	"github.com/nao1215/siteaudit/internal/model"
)

// Step is one stage of an audit.
type Step interface {
	// Do executes the step. It receives the context for cancellation and
	// the run to read from and write to. Failures that should stop the
	// audit are returned; per-item failures are logged by the step.
	Do(ctx context.Context, run *model.AuditRun) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order over one run.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger

	// metrics, when set, records the duration of every step.
	metrics *metrics.Metrics

	// continueOnError keeps executing after a failed step. Audit stages
	// depend on each other, so the default is to stop.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records step durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithContinueOnError configures the pipeline to continue after a step fails.
// The last error is kept in the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked before each
// step; a cancelled run is marked as such and returns the context error.
// FinishedAt is set however the run ends.
func (p *Pipeline) Execute(ctx context.Context, run *model.AuditRun) error {
	defer func() {
		run.FinishedAt = time.Now()
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"organization", run.Organization,
				"reason", err,
			)
			run.Cancelled = true
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"organization", run.Organization,
		)

		start := time.Now()
		err := step.Do(ctx, run)
		p.metrics.ObserveStep(step.Name(), time.Since(start))

		if err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"organization", run.Organization,
				"error", err,
			)
			run.Error = err
			run.ErrorMessage = err.Error()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				run.Cancelled = true
			}
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"organization", run.Organization,
				"elapsed", time.Since(start),
			)
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
