package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/model"
)

// Spider builds the content map of a site: the homepage plus every live
// same-origin page it links to. Pages linked only from those pages are
// recorded in their link lists but not fetched.
type Spider struct {
	fetcher PageFetcher

	// concurrency bounds simultaneous probes and fetches.
	concurrency int

	// maxPages caps the number of pages in the map. 0 means no cap.
	maxPages int

	ignorePatterns []string
	followPatterns []string

	// robots, when set, excludes paths disallowed for our User-Agent.
	robots *robotstxt.Group

	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats describes the most recent BuildMap call.
type Stats struct {
	// Pages is the number of pages in the content map.
	Pages int

	// DeadLinks are homepage links that failed the liveness probe.
	DeadLinks []string

	// Failed is the number of pages that could not be fetched during expansion.
	Failed int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithConcurrency sets the number of concurrent probes and fetches.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxPages caps the number of pages in the content map.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithIgnorePatterns sets URL path globs that are never crawled.
// Patterns use doublestar syntax, e.g. "/wp-admin/**" or "**/*.pdf".
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts crawling to URL paths matching one of the globs.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithRobots applies a robots.txt rule group.
func WithRobots(group *robotstxt.Group) SpiderOption {
	return func(s *Spider) {
		s.robots = group
	}
}

// WithSpiderLogger sets a custom logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that retrieves pages through fetcher.
func NewSpider(fetcher PageFetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:     fetcher,
		concurrency: config.DefaultCrawlConcurrency(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildMap crawls the site rooted at baseURL.
//
// The homepage is fetched first; if that fails the crawl fails with
// ErrBaseUnavailable. Every link on the homepage is probed and dead links are
// dropped. The homepage is recorded with the surviving links, then each
// surviving link is fetched concurrently and recorded with its own links,
// minus the ones already known to be dead. A page that cannot be fetched is
// logged and skipped without affecting the others.
//
// baseURL is the origin for every link list: only URLs starting with it are kept.
func (s *Spider) BuildMap(ctx context.Context, baseURL string) (*model.ContentMap, error) {
	html, err := s.fetcher.Fetch(ctx, baseURL)
	if err != nil {
		s.logger.Error("failed to fetch base url", "url", baseURL, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrBaseUnavailable, err)
	}
	home := Extract(html, baseURL, baseURL)

	candidates := make([]string, 0, len(home.Links))
	for _, link := range home.Links {
		if s.shouldCrawl(link) {
			candidates = append(candidates, link)
		}
	}

	alive := s.probe(ctx, candidates)
	live := make([]string, 0, len(candidates))
	dead := make(map[string]bool)
	for i, link := range candidates {
		if alive[i] {
			live = append(live, link)
		} else {
			dead[link] = true
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contentMap := model.NewContentMap()
	contentMap.InsertIfAbsent(baseURL, model.PageRecord{Text: home.Text, Links: live})

	frontier := make([]string, 0, len(live))
	for _, link := range live {
		if link != baseURL {
			frontier = append(frontier, link)
		}
	}
	if s.maxPages > 0 && len(frontier) > s.maxPages-1 {
		frontier = frontier[:max(s.maxPages-1, 0)]
	}

	failed := s.expand(ctx, contentMap, frontier, baseURL, dead)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadLinks := make([]string, 0, len(dead))
	for link := range dead {
		deadLinks = append(deadLinks, link)
	}
	slices.Sort(deadLinks)

	s.mu.Lock()
	s.stats = Stats{Pages: contentMap.Len(), DeadLinks: deadLinks, Failed: failed}
	s.mu.Unlock()

	s.logger.Info("content map built",
		"base_url", baseURL,
		"pages", contentMap.Len(),
		"dead_links", len(deadLinks),
		"failed", failed,
	)
	return contentMap, nil
}

// probe checks every link concurrently and reports which ones responded with 200.
func (s *Spider) probe(ctx context.Context, links []string) []bool {
	alive := make([]bool, len(links))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, link := range links {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if _, err := s.fetcher.Fetch(ctx, link); err != nil {
				s.logger.Debug("dropping dead link", "url", link, "error", err)
				return nil
			}
			alive[i] = true
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers never return errors

	return alive
}

// expand fetches each frontier page and records it. It returns the number of
// pages that could not be fetched.
func (s *Spider) expand(ctx context.Context, contentMap *model.ContentMap, frontier []string, origin string, dead map[string]bool) int {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed int
	)
	g.SetLimit(s.concurrency)

	for _, link := range frontier {
		g.Go(func() error {
			if ctx.Err() != nil || contentMap.Has(link) {
				return nil
			}

			html, err := s.fetcher.Fetch(ctx, link)
			if err != nil {
				s.logger.Warn("skipping page", "url", link, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			rec := Extract(html, link, origin)
			rec.Links = slices.DeleteFunc(rec.Links, func(l string) bool { return dead[l] })
			contentMap.InsertIfAbsent(link, rec)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers never return errors

	return failed
}

// Stats returns statistics for the most recent BuildMap call.
func (s *Spider) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// shouldCrawl applies robots.txt and the ignore/follow globs to a link's path.
//
//  1. Disallowed by robots.txt: skip
//  2. Matches any ignore pattern: skip
//  3. Follow patterns set and none matches: skip
//  4. Otherwise crawl
func (s *Spider) shouldCrawl(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	urlPath := u.EscapedPath()
	if urlPath == "" {
		urlPath = "/"
	}

	if s.robots != nil && !s.robots.Test(urlPath) {
		return false
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, urlPath) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchPattern reports whether urlPath matches a doublestar glob. A pattern
// without a slash, such as "*.pdf", is matched against the last path segment.
func matchPattern(pattern, urlPath string) bool {
	if ok, err := doublestar.Match(pattern, urlPath); err == nil && ok {
		return true
	}
	if strings.Contains(pattern, "/") {
		return false
	}
	ok, err := doublestar.Match(pattern, path.Base(urlPath))
	return err == nil && ok
}
