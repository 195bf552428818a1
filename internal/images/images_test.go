package images

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/siteaudit/internal/model"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestIsImageLink(t *testing.T) {
	t.Parallel()

	base := "https://example.org/"
	tests := []struct {
		link string
		want bool
	}{
		{"https://example.org/img/team.jpg", true},
		{"https://example.org/img/TEAM.JPEG", true},
		{"https://example.org/logo.png?v=2", true},
		{"https://example.org/logo.gif", false},
		{"https://example.org/about", false},
		{"https://cdn.example.net/team.jpg", false},
	}
	for _, tt := range tests {
		if got := IsImageLink(tt.link, base); got != tt.want {
			t.Errorf("IsImageLink(%q) = %v, want %v", tt.link, got, tt.want)
		}
	}
}

func TestLinks(t *testing.T) {
	t.Parallel()

	base := "https://example.org/"
	cm := model.NewContentMap()
	cm.InsertIfAbsent(base, model.PageRecord{Links: []string{base + "b.png", base + "about", base + "a.jpg"}})
	cm.InsertIfAbsent(base+"about", model.PageRecord{Links: []string{base + "a.jpg", base + "c.jpeg"}})

	want := []string{base + "b.png", base + "a.jpg", base + "c.jpeg"}
	if got := Links(cm, base); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	rec, _ := cm.Get(base)
	if got := PageImages(rec, base); !slices.Equal(got, []string{base + "b.png", base + "a.jpg"}) {
		t.Errorf("unexpected page images %v", got)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	name := FileName("https://example.org/img/team.jpg?x=1")
	if !strings.HasPrefix(name, "team-") || !strings.HasSuffix(name, ".jpg") {
		t.Errorf("expected team-<hash>.jpg, got %q", name)
	}
	if again := FileName("https://example.org/img/team.jpg?x=1"); again != name {
		t.Errorf("expected a stable name, got %q and %q", name, again)
	}
	if other := FileName("https://example.org/staff/team.jpg"); other == name {
		t.Errorf("expected distinct names for distinct urls, both %q", name)
	}
	if got := FileName("https://example.org/"); got != "" {
		t.Errorf("expected empty name, got %q", got)
	}
}

func TestDownloader(t *testing.T) {
	t.Parallel()

	t.Run("downloads and skips existing files", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/broken.jpg" {
				http.NotFound(w, r)
				return
			}
			w.Write(pngHeader) //nolint:errcheck
		}))
		defer srv.Close()

		dir := t.TempDir()
		oldName := FileName(srv.URL + "/old.png")
		if err := os.WriteFile(filepath.Join(dir, oldName), []byte("kept"), 0600); err != nil {
			t.Fatal(err)
		}

		d := NewDownloader(srv.Client())
		stats, err := d.Download(context.Background(), []string{
			srv.URL + "/new.png",
			srv.URL + "/old.png",
			srv.URL + "/broken.jpg",
		}, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats != (DownloadStats{Downloaded: 1, Skipped: 1, Failed: 1}) {
			t.Errorf("unexpected stats %+v", stats)
		}

		kept, _ := os.ReadFile(filepath.Join(dir, oldName))
		if string(kept) != "kept" {
			t.Error("existing file was overwritten")
		}
		if _, err := os.Stat(filepath.Join(dir, FileName(srv.URL+"/broken.jpg"))); err == nil {
			t.Error("failed download should leave no file")
		}
	})

	t.Run("same file name under different paths", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(append(append([]byte{}, pngHeader...), r.URL.Path...)) //nolint:errcheck
		}))
		defer srv.Close()

		dir := t.TempDir()
		urls := []string{srv.URL + "/a/logo.png", srv.URL + "/b/logo.png"}
		stats, err := NewDownloader(srv.Client()).Download(context.Background(), urls, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats != (DownloadStats{Downloaded: 2}) {
			t.Errorf("expected two downloads, got %+v", stats)
		}
		for _, link := range urls {
			data, err := os.ReadFile(filepath.Join(dir, FileName(link)))
			if err != nil {
				t.Fatalf("missing file for %s: %v", link, err)
			}
			if !strings.HasSuffix(string(data), strings.TrimPrefix(link, srv.URL)) {
				t.Errorf("file for %s holds another image", link)
			}
		}
	})

	t.Run("rejects images over the size limit", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/big.png" {
				w.Write(make([]byte, 64)) //nolint:errcheck
				return
			}
			w.Write(make([]byte, 32)) //nolint:errcheck
		}))
		defer srv.Close()

		dir := t.TempDir()
		d := NewDownloader(srv.Client(), WithMaxImageSize(32))
		stats, err := d.Download(context.Background(), []string{srv.URL + "/big.png", srv.URL + "/fits.png"}, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats != (DownloadStats{Downloaded: 1, Failed: 1}) {
			t.Errorf("unexpected stats %+v", stats)
		}
		if _, err := os.Stat(filepath.Join(dir, FileName(srv.URL+"/big.png"))); err == nil {
			t.Error("oversized image should leave no file")
		}

		err = d.fetch(context.Background(), srv.URL+"/big.png", filepath.Join(dir, "big.png"))
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("expected ErrImageTooLarge, got %v", err)
		}

		// A later run downloads it again once the limit allows.
		stats, err = NewDownloader(srv.Client()).Download(context.Background(), []string{srv.URL + "/big.png"}, dir)
		if err != nil || stats.Downloaded != 1 {
			t.Errorf("expected a fresh download, got %+v, %v", stats, err)
		}
	})

	t.Run("respects concurrency cap", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			n := current.Add(1)
			defer current.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			w.Write(pngHeader) //nolint:errcheck
		}))
		defer srv.Close()

		urls := make([]string, 12)
		for i := range urls {
			urls[i] = fmt.Sprintf("%s/img%d.png", srv.URL, i)
		}

		d := NewDownloader(srv.Client(), WithDownloadConcurrency(3))
		stats, err := d.Download(context.Background(), urls, t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.Downloaded != 12 {
			t.Errorf("expected 12 downloads, got %d", stats.Downloaded)
		}
		if peak.Load() > 3 {
			t.Errorf("expected at most 3 concurrent downloads, saw %d", peak.Load())
		}
	})
}

// visionStub records caption calls and tracks concurrency.
type visionStub struct {
	current, peak atomic.Int32
	delay         time.Duration
	fail          map[string]bool

	mu      sync.Mutex
	prompts []string
	mimes   []string
}

func (v *visionStub) Complete(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func (v *visionStub) CompleteStructured(context.Context, string) (model.Finding, error) {
	return model.Finding{}, errors.New("not used")
}

func (v *visionStub) Caption(_ context.Context, image []byte, mimeType, prompt string) (string, error) {
	n := v.current.Add(1)
	defer v.current.Add(-1)
	for {
		p := v.peak.Load()
		if n <= p || v.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(v.delay)

	v.mu.Lock()
	v.prompts = append(v.prompts, prompt)
	v.mimes = append(v.mimes, mimeType)
	v.mu.Unlock()

	if v.fail[string(image)] {
		return "", errors.New("vision model unavailable")
	}
	return "a photo", nil
}

func TestCaptioner(t *testing.T) {
	t.Parallel()

	t.Run("never exceeds ten calls in flight", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		urls := make([]string, 30)
		for i := range urls {
			urls[i] = fmt.Sprintf("https://example.org/img%d.png", i)
			if err := os.WriteFile(filepath.Join(dir, FileName(urls[i])), pngHeader, 0600); err != nil {
				t.Fatal(err)
			}
		}

		stub := &visionStub{delay: 10 * time.Millisecond}
		captions, err := NewCaptioner(stub).Caption(context.Background(), urls, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(captions) != 30 {
			t.Errorf("expected 30 captions, got %d", len(captions))
		}
		if stub.peak.Load() > 10 {
			t.Errorf("expected at most 10 in-flight calls, saw %d", stub.peak.Load())
		}
		if stub.prompts[0] != CaptionPrompt {
			t.Errorf("unexpected prompt %q", stub.prompts[0])
		}
		if stub.mimes[0] != "image/png" {
			t.Errorf("expected image/png, got %q", stub.mimes[0])
		}
	})

	t.Run("failures and missing files are omitted", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, FileName("https://example.org/ok.jpg")), []byte("ok"), 0600)   //nolint:errcheck
		os.WriteFile(filepath.Join(dir, FileName("https://example.org/bad.jpg")), []byte("bad"), 0600) //nolint:errcheck

		stub := &visionStub{fail: map[string]bool{"bad": true}}
		captions, err := NewCaptioner(stub, WithCaptionConcurrency(2)).Caption(context.Background(), []string{
			"https://example.org/ok.jpg",
			"https://example.org/bad.jpg",
			"https://example.org/missing.jpg",
		}, dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(captions) != 1 || captions["https://example.org/ok.jpg"] != "a photo" {
			t.Errorf("unexpected captions %v", captions)
		}
		if !slices.Contains(stub.mimes, "image/jpeg") {
			t.Errorf("expected extension fallback to image/jpeg, got %v", stub.mimes)
		}
	})
}

func TestCaptionerDistinctPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	urls := []string{"https://example.org/a/logo.png", "https://example.org/b/logo.png"}
	for _, link := range urls {
		if err := os.WriteFile(filepath.Join(dir, FileName(link)), []byte(link), 0600); err != nil {
			t.Fatal(err)
		}
	}

	stub := &visionStub{fail: map[string]bool{urls[1]: true}}
	captions, err := NewCaptioner(stub).Caption(context.Background(), urls, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := captions[urls[1]]; ok {
		t.Errorf("expected %s to be captioned from its own file, got %v", urls[1], captions)
	}
	if captions[urls[0]] != "a photo" {
		t.Errorf("unexpected captions %v", captions)
	}
}

func TestExifHints(t *testing.T) {
	t.Parallel()

	if got := exifHints(pngHeader); got != "" {
		t.Errorf("expected no hints, got %q", got)
	}
	if !strings.HasPrefix(mimeType("x.png", []byte("plain")), "image/png") {
		t.Error("expected extension based mime type")
	}
}
