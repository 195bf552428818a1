package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/siteaudit/internal/metrics"
	"github.com/nao1215/siteaudit/internal/model"
)

// instrumented records every call of the wrapped Service.
type instrumented struct {
	next     Service
	provider string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Instrument wraps svc so each call is counted, timed and logged at debug
// level. A nil m disables metrics; a nil logger uses slog.Default().
func Instrument(svc Service, provider string, m *metrics.Metrics, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{next: svc, provider: provider, metrics: m, logger: logger}
}

func (i *instrumented) Complete(ctx context.Context, system, content string) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, system, content)
	i.observe("complete", len(content), start, err)
	return out, err
}

func (i *instrumented) CompleteStructured(ctx context.Context, prompt string) (model.Finding, error) {
	start := time.Now()
	out, err := i.next.CompleteStructured(ctx, prompt)
	i.observe("structured", len(prompt), start, err)
	return out, err
}

func (i *instrumented) Caption(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	start := time.Now()
	out, err := i.next.Caption(ctx, image, mimeType, prompt)
	i.observe("caption", len(image), start, err)
	return out, err
}

func (i *instrumented) observe(op string, size int, start time.Time, err error) {
	d := time.Since(start)
	i.metrics.ObserveLLM(i.provider, op, err, d)
	if err != nil {
		i.logger.Debug("model call failed", "provider", i.provider, "operation", op, "bytes", size, "duration", d, "error", err)
		return
	}
	i.logger.Debug("model call", "provider", i.provider, "operation", op, "bytes", size, "duration", d)
}
