// Package metrics exposes Prometheus instrumentation for an audit run.
//
// A nil *Metrics is valid and records nothing, so components can take one
// as an optional dependency.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "siteaudit"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched     *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	llmCalls         *prometheus.CounterVec
	llmDuration      *prometheus.HistogramVec
	stageLookups     *prometheus.CounterVec
	imagesDownloaded *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages requested by the crawler, by outcome.",
		}, []string{"outcome"}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of page fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Language model calls, by provider, operation and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		llmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Duration of language model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"operation"}),
		stageLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_cache_lookups_total",
			Help:      "Stage snapshot lookups, by stage and result.",
		}, []string{"stage", "result"}),
		imagesDownloaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_downloaded_total",
			Help:      "Image downloads, by outcome.",
		}, []string{"outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Duration of pipeline steps.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"step"}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records a page fetch.
func (m *Metrics) ObserveFetch(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(outcome(ok)).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

// ObserveLLM records a model call.
func (m *Metrics) ObserveLLM(provider, operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(provider, operation, outcome(err == nil)).Inc()
	m.llmDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveStage records whether a stage was served from its snapshot.
func (m *Metrics) ObserveStage(stage string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.stageLookups.WithLabelValues(stage, result).Inc()
}

// ObserveImage records an image download outcome: "ok", "skipped" or "error".
func (m *Metrics) ObserveImage(result string) {
	if m == nil {
		return
	}
	m.imagesDownloaded.WithLabelValues(result).Inc()
}

// ObserveStep records the duration of a pipeline step.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // Best effort shutdown
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
