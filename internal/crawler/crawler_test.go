package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/temoto/robotstxt"
)

// newSite serves a small fixture site and counts requests per path.
func newSite(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()

	hits := &sync.Map{}
	pages := map[string]string{
		"/": `<html><body><h1>Helping Hands</h1>
			<a href="/about">About</a>
			<a href="/about">About again</a>
			<a href="/missing">Broken</a>
			<a href="contact#form">Contact</a>
			<a href="#top">Top</a>
			<a href="">Self</a>
			<a href="mailto:info@example.org">Mail</a>
			<a href="https://other.example/ext">Elsewhere</a>
			<a href="/">Home</a>
		</body></html>`,
		"/about": `<html><body><p>We feed families.</p>
			<a href="/">Home</a>
			<a href="/team">Team</a>
			<a href="/missing">Broken</a>
		</body></html>`,
		"/contact": `<html><body><p>Write to us.</p></body></html>`,
		"/team":    `<html><body><p>Staff list.</p></body></html>`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		v.(*atomic.Int32).Add(1) //nolint:errcheck,forcetypeassert // Test helper

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func hitCount(hits *sync.Map, path string) int32 {
	v, ok := hits.Load(path)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load() //nolint:forcetypeassert // Test helper
}

// TestExtract tests text and link extraction.
func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("collapses blank runs", func(t *testing.T) {
		t.Parallel()

		got := ExtractText("<p>one</p>\n\n\n\n<p>two</p>\n\n<p>three</p>")
		if got != "one\ntwo\n\nthree" {
			t.Errorf("unexpected text %q", got)
		}
	})

	t.Run("resolves and filters links", func(t *testing.T) {
		t.Parallel()

		html := `<a href="/a">a</a>
			<a href="b?x=1#frag">b</a>
			<a href="#only">skip</a>
			<a href="javascript:void(0)">skip</a>
			<a href="https://example.org/a">dup</a>
			<a href="https://elsewhere.org/">other</a>
			<a>no href</a>`

		got := ExtractLinks(html, "https://example.org/dir/page", "https://example.org/")
		want := []string{"https://example.org/a", "https://example.org/dir/b?x=1"}
		if !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("no links yields empty slice", func(t *testing.T) {
		t.Parallel()

		rec := Extract("<p>plain</p>", "https://example.org/", "https://example.org/")
		if rec.Links == nil || len(rec.Links) != 0 {
			t.Errorf("expected empty non-nil links, got %#v", rec.Links)
		}
		if rec.Text != "plain" {
			t.Errorf("expected text 'plain', got %q", rec.Text)
		}
	})
}

// TestFetcher tests the HTTP fetcher.
func TestFetcher(t *testing.T) {
	t.Parallel()

	t.Run("sends user agent and returns body", func(t *testing.T) {
		t.Parallel()

		gotUA := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA <- r.Header.Get("User-Agent")
			fmt.Fprint(w, "<p>hello</p>") //nolint:errcheck
		}))
		defer srv.Close()

		f := NewFetcher(srv.Client(), WithUserAgent("auditbot/2"))
		body, err := f.Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "<p>hello</p>" {
			t.Errorf("unexpected body %q", body)
		}
		if ua := <-gotUA; ua != "auditbot/2" {
			t.Errorf("expected user agent auditbot/2, got %q", ua)
		}
	})

	t.Run("non-200 is unavailable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		f := NewFetcher(srv.Client())
		_, err := f.Fetch(context.Background(), srv.URL)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
		if f.Probe(context.Background(), srv.URL) {
			t.Error("expected probe to fail")
		}
	})

	t.Run("caches successful bodies", func(t *testing.T) {
		t.Parallel()

		var count atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			count.Add(1)
			fmt.Fprint(w, "ok") //nolint:errcheck
		}))
		defer srv.Close()

		f := NewFetcher(srv.Client())
		for range 3 {
			if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if count.Load() != 1 {
			t.Errorf("expected 1 request, got %d", count.Load())
		}
	})

	t.Run("cache can be disabled", func(t *testing.T) {
		t.Parallel()

		var count atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			count.Add(1)
			fmt.Fprint(w, "ok") //nolint:errcheck
		}))
		defer srv.Close()

		f := NewFetcher(srv.Client(), WithCacheSize(0))
		f.Fetch(context.Background(), srv.URL) //nolint:errcheck
		f.Fetch(context.Background(), srv.URL) //nolint:errcheck
		if count.Load() != 2 {
			t.Errorf("expected 2 requests, got %d", count.Load())
		}
	})

	t.Run("limits body size", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, strings.Repeat("x", 100)) //nolint:errcheck
		}))
		defer srv.Close()

		f := NewFetcher(srv.Client(), WithMaxBodySize(10))
		body, err := f.Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(body))
		}
	})
}

// TestSpider tests content map construction.
func TestSpider(t *testing.T) {
	t.Parallel()

	t.Run("builds one level below the root", func(t *testing.T) {
		t.Parallel()

		srv, _ := newSite(t)
		base := srv.URL + "/"

		spider := NewSpider(NewFetcher(srv.Client()), WithConcurrency(4))
		cm, err := spider.BuildMap(context.Background(), base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{base, srv.URL + "/about", srv.URL + "/contact"}
		slices.Sort(want)
		if got := cm.URLs(); !slices.Equal(got, want) {
			t.Errorf("expected keys %v, got %v", want, got)
		}

		for _, u := range cm.URLs() {
			if !strings.HasPrefix(u, base) {
				t.Errorf("key %q lacks base prefix", u)
			}
		}

		about, _ := cm.Get(srv.URL + "/about")
		if !slices.Equal(about.Links, []string{base, srv.URL + "/team"}) {
			t.Errorf("unexpected about links %v", about.Links)
		}
		if !strings.Contains(about.Text, "We feed families.") {
			t.Errorf("unexpected about text %q", about.Text)
		}
	})

	t.Run("dead links are dropped everywhere", func(t *testing.T) {
		t.Parallel()

		srv, _ := newSite(t)
		base := srv.URL + "/"
		missing := srv.URL + "/missing"

		spider := NewSpider(NewFetcher(srv.Client()))
		cm, err := spider.BuildMap(context.Background(), base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cm.Has(missing) {
			t.Error("dead link should not be a key")
		}
		for _, u := range cm.URLs() {
			rec, _ := cm.Get(u)
			if slices.Contains(rec.Links, missing) {
				t.Errorf("dead link listed on %s", u)
			}
		}
		if stats := spider.Stats(); !slices.Equal(stats.DeadLinks, []string{missing}) {
			t.Errorf("expected dead links [%s], got %v", missing, stats.DeadLinks)
		}
	})

	t.Run("same key set on repeated crawls", func(t *testing.T) {
		t.Parallel()

		srv, _ := newSite(t)
		base := srv.URL + "/"

		first, err := NewSpider(NewFetcher(srv.Client())).BuildMap(context.Background(), base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := NewSpider(NewFetcher(srv.Client()), WithConcurrency(1)).BuildMap(context.Background(), base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(first.URLs(), second.URLs()) {
			t.Errorf("key sets differ: %v vs %v", first.URLs(), second.URLs())
		}
	})

	t.Run("probed pages are fetched once", func(t *testing.T) {
		t.Parallel()

		srv, hits := newSite(t)
		if _, err := NewSpider(NewFetcher(srv.Client())).BuildMap(context.Background(), srv.URL+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := hitCount(hits, "/about"); n != 1 {
			t.Errorf("expected 1 request for /about, got %d", n)
		}
		if n := hitCount(hits, "/team"); n != 0 {
			t.Errorf("expected /team not to be fetched, got %d", n)
		}
	})

	t.Run("base failure", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := NewSpider(NewFetcher(srv.Client())).BuildMap(context.Background(), srv.URL+"/")
		if !errors.Is(err, ErrBaseUnavailable) {
			t.Errorf("expected ErrBaseUnavailable, got %v", err)
		}
	})

	t.Run("ignore patterns and max pages", func(t *testing.T) {
		t.Parallel()

		srv, hits := newSite(t)
		base := srv.URL + "/"

		spider := NewSpider(NewFetcher(srv.Client()), WithIgnorePatterns([]string{"/contact"}))
		cm, err := spider.BuildMap(context.Background(), base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cm.Has(srv.URL + "/contact") {
			t.Error("ignored page should not be crawled")
		}
		if n := hitCount(hits, "/contact"); n != 0 {
			t.Errorf("ignored page was requested %d times", n)
		}

		capped, err := NewSpider(NewFetcher(srv.Client()), WithMaxPages(2)).BuildMap(context.Background(), base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if capped.Len() != 2 {
			t.Errorf("expected 2 pages, got %d", capped.Len())
		}
	})

	t.Run("follow patterns restrict the crawl", func(t *testing.T) {
		t.Parallel()

		srv, _ := newSite(t)
		cm, err := NewSpider(NewFetcher(srv.Client()), WithFollowPatterns([]string{"/about"})).
			BuildMap(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cm.Len() != 2 || !cm.Has(srv.URL+"/about") {
			t.Errorf("expected root and /about, got %v", cm.URLs())
		}
	})

	t.Run("robots disallow", func(t *testing.T) {
		t.Parallel()

		srv, _ := newSite(t)
		robots, err := robotstxt.FromString("User-agent: *\nDisallow: /about\n")
		if err != nil {
			t.Fatalf("failed to parse robots: %v", err)
		}

		cm, err := NewSpider(NewFetcher(srv.Client()), WithRobots(robots.FindGroup("siteaudit"))).
			BuildMap(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cm.Has(srv.URL + "/about") {
			t.Error("disallowed page should not be crawled")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		srv, _ := newSite(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := NewSpider(NewFetcher(srv.Client())).BuildMap(ctx, srv.URL+"/"); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

// TestLoadRobots tests robots.txt retrieval.
func TestLoadRobots(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n") //nolint:errcheck
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	group, err := LoadRobots(context.Background(), srv.Client(), srv.URL+"/", "siteaudit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if group.Test("/private/page") {
		t.Error("expected /private/page to be disallowed")
	}
	if !group.Test("/public") {
		t.Error("expected /public to be allowed")
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/wp-admin/**", "/wp-admin/edit.php", true},
		{"/files/*.pdf", "/files/report.pdf", true},
		{"*.pdf", "/files/annual/report.pdf", true},
		{"*.pdf", "/files/report.html", false},
		{"/news/*", "/events/today", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
