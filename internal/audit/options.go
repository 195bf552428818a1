package audit

import (
	"log/slog"

	"github.com/nao1215/siteaudit/internal/config"
)

// options are shared by the stage types in this package.
type options struct {
	logger      *slog.Logger
	concurrency int
}

// Option configures a stage.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConcurrency caps simultaneous model calls where a stage fans out.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:      slog.Default(),
		concurrency: config.DefaultLLMConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
