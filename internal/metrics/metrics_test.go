package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	t.Run("nil metrics is a no-op", func(t *testing.T) {
		t.Parallel()

		var m *Metrics
		m.ObserveFetch(true, time.Second)
		m.ObserveLLM("gemini", "complete", nil, time.Second)
		m.ObserveStage("website_map.json", true)
		m.ObserveImage("ok")
		m.ObserveStep("crawl", time.Second)
		if m.Registry() != nil {
			t.Error("expected nil registry")
		}
	})

	t.Run("counters track outcomes", func(t *testing.T) {
		t.Parallel()

		m := New()
		m.ObserveFetch(true, 10*time.Millisecond)
		m.ObserveFetch(true, 10*time.Millisecond)
		m.ObserveFetch(false, 10*time.Millisecond)
		m.ObserveLLM("openai", "structured", errors.New("boom"), time.Second)
		m.ObserveStage("captions.json", true)
		m.ObserveStage("captions.json", false)

		if got := testutil.ToFloat64(m.pagesFetched.WithLabelValues("ok")); got != 2 {
			t.Errorf("expected 2 ok fetches, got %v", got)
		}
		if got := testutil.ToFloat64(m.pagesFetched.WithLabelValues("error")); got != 1 {
			t.Errorf("expected 1 failed fetch, got %v", got)
		}
		if got := testutil.ToFloat64(m.llmCalls.WithLabelValues("openai", "structured", "error")); got != 1 {
			t.Errorf("expected 1 failed llm call, got %v", got)
		}
		if got := testutil.ToFloat64(m.stageLookups.WithLabelValues("captions.json", "hit")); got != 1 {
			t.Errorf("expected 1 stage hit, got %v", got)
		}
	})

	t.Run("handler exposes metrics", func(t *testing.T) {
		t.Parallel()

		m := New()
		m.ObserveImage("skipped")

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `siteaudit_images_downloaded_total{outcome="skipped"} 1`) {
			t.Errorf("expected image counter in output, got:\n%s", rec.Body.String())
		}
	})
}
