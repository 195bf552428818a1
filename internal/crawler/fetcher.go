package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/metrics"
)

var (
	// ErrUnavailable is returned when a page cannot be retrieved: a transport
	// failure or any status other than 200. Callers skip such pages.
	ErrUnavailable = errors.New("page unavailable")

	// ErrBaseUnavailable is returned by BuildMap when the site root itself
	// cannot be fetched. The crawl produces nothing in that case.
	ErrBaseUnavailable = errors.New("base url unavailable")
)

// PageFetcher retrieves the HTML of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Fetcher retrieves pages over HTTP with a fixed User-Agent.
// Successful bodies are kept in a bounded LRU so a link fetched once during
// liveness probing is not downloaded again when the page is expanded.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	headers     map[string]string
	cache       *lru.Cache[string, string]
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithCacheSize sets the number of bodies kept in memory. 0 disables the cache.
func WithCacheSize(size int) FetcherOption {
	return func(f *Fetcher) {
		if size <= 0 {
			f.cache = nil
			return
		}
		cache, err := lru.New[string, string](size)
		if err == nil {
			f.cache = cache
		}
	}
}

// WithFetcherMetrics records fetch outcomes.
func WithFetcherMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithFetcherLogger sets a custom logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher that issues requests through client.
// The caller owns client and closes its idle connections when the run ends.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	WithCacheSize(config.DefaultPageCacheSize)(f)

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body of url decoded to UTF-8.
// Any status other than 200 and any transport failure yield an error
// wrapping ErrUnavailable. Requests are not retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.cache != nil {
		if body, ok := f.cache.Get(url); ok {
			return body, nil
		}
	}

	start := time.Now()
	body, err := f.get(ctx, url)
	f.metrics.ObserveFetch(err == nil, time.Since(start))
	if err != nil {
		return "", err
	}

	if f.cache != nil {
		f.cache.Add(url, body)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // Drain for connection reuse
		return "", fmt.Errorf("%w: %s returned status %d", ErrUnavailable, url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.maxBodySize)
	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		f.logger.Debug("unknown charset, reading raw body", "url", url, "error", err)
		reader = limited
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, url, err)
	}
	return string(data), nil
}

// Probe reports whether url answers a GET with 200.
// The body is cached, so a later Fetch of the same url is served from memory.
func (f *Fetcher) Probe(ctx context.Context, url string) bool {
	_, err := f.Fetch(ctx, url)
	return err == nil
}
