package images

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/model"
)

// CaptionPrompt is the instruction sent with every image.
const CaptionPrompt = "describe the scene."

// Captioner describes downloaded images with a vision model.
type Captioner struct {
	llm      llm.Service
	inFlight int64
	logger   *slog.Logger
}

// CaptionerOption configures a Captioner.
type CaptionerOption func(*Captioner)

// WithCaptionConcurrency caps simultaneous model calls.
func WithCaptionConcurrency(n int) CaptionerOption {
	return func(c *Captioner) {
		if n > 0 {
			c.inFlight = int64(n)
		}
	}
}

// WithCaptionLogger sets a custom logger.
func WithCaptionLogger(logger *slog.Logger) CaptionerOption {
	return func(c *Captioner) {
		c.logger = logger
	}
}

// NewCaptioner creates a Captioner backed by svc.
func NewCaptioner(svc llm.Service, opts ...CaptionerOption) *Captioner {
	c := &Captioner{
		llm:      svc,
		inFlight: config.DefaultCaptionConcurrency,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Caption describes every url whose file exists in dir. Images that were not
// downloaded, and images the model fails on, are logged and left out.
func (c *Captioner) Caption(ctx context.Context, urls []string, dir string) (model.Captions, error) {
	var (
		sem      = semaphore.NewWeighted(c.inFlight)
		wg       sync.WaitGroup
		mu       sync.Mutex
		captions = make(model.Captions)
	)

	for _, link := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			text, err := c.captionOne(ctx, link, dir)
			if err != nil {
				c.logger.Warn("failed to caption image", "url", link, "error", err)
				return
			}
			mu.Lock()
			captions[link] = text
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return captions, nil
}

func (c *Captioner) captionOne(ctx context.Context, link, dir string) (string, error) {
	name := FileName(link)
	if name == "" {
		return "", fs.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("image was not downloaded", "url", link)
		}
		return "", err
	}

	prompt := CaptionPrompt
	if hints := exifHints(data); hints != "" {
		prompt += "\nThe image carries this metadata:\n" + hints
	}
	return c.llm.Caption(ctx, data, mimeType(name, data), prompt)
}

// mimeType prefers the sniffed type and falls back to the file extension.
func mimeType(name string, data []byte) string {
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return "image/jpeg"
}
