package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/metrics"
)

// ErrImageTooLarge is returned for an image whose body exceeds the size limit.
// Nothing is written for it.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// DownloadStats counts the outcome of a Download call.
type DownloadStats struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Downloader saves images into a directory with bounded concurrency.
type Downloader struct {
	client      *http.Client
	concurrency int
	userAgent   string
	maxSize     int64
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadConcurrency caps simultaneous downloads.
func WithDownloadConcurrency(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithDownloadUserAgent sets the User-Agent header.
func WithDownloadUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// WithMaxImageSize sets the largest image accepted. Larger images fail.
func WithMaxImageSize(n int64) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.maxSize = n
		}
	}
}

// WithDownloadMetrics records download outcomes.
func WithDownloadMetrics(m *metrics.Metrics) DownloaderOption {
	return func(d *Downloader) {
		d.metrics = m
	}
}

// WithDownloadLogger sets a custom logger.
func WithDownloadLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a Downloader using client.
func NewDownloader(client *http.Client, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client:      client,
		concurrency: config.DefaultImageDownloadConcurrency,
		userAgent:   config.DefaultUserAgent,
		maxSize:     config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download saves each url into dir under its FileName. Files that already
// exist are kept as they are. A failed download is logged and skipped; only
// a failure to create dir or a cancelled ctx is returned.
func (d *Downloader) Download(ctx context.Context, urls []string, dir string) (DownloadStats, error) {
	var stats DownloadStats
	if err := os.MkdirAll(dir, 0750); err != nil {
		return stats, fmt.Errorf("failed to create image directory: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.concurrency)

	record := func(result string) {
		d.metrics.ObserveImage(result)
		mu.Lock()
		defer mu.Unlock()
		switch result {
		case "ok":
			stats.Downloaded++
		case "skipped":
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	for _, link := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			name := FileName(link)
			if name == "" {
				d.logger.Debug("image url has no file name", "url", link)
				record("error")
				return nil
			}
			target := filepath.Join(dir, name)
			if _, err := os.Stat(target); err == nil {
				record("skipped")
				return nil
			}
			if err := d.fetch(ctx, link, target); err != nil {
				d.logger.Warn("failed to download image", "url", link, "error", err)
				record("error")
				return nil
			}
			record("ok")
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers never return errors

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	d.logger.Info("images downloaded",
		"downloaded", stats.Downloaded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (d *Downloader) fetch(ctx context.Context, link, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Already renamed on success

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return err
	}
	if n > d.maxSize {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, d.maxSize)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}
