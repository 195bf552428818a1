package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/metrics"
	"github.com/nao1215/siteaudit/internal/model"
	"github.com/nao1215/siteaudit/internal/report"
	"github.com/nao1215/siteaudit/internal/stage"
)

// Deps are the services shared by the steps of one audit.
type Deps struct {
	// Store holds the organization's stage snapshots.
	Store stage.Store

	// LLM answers every model call.
	LLM llm.Service

	// HTTPClient fetches pages, robots.txt and images.
	HTTPClient *http.Client

	// Renderer converts Markdown reports before they are stored.
	// nil stores Markdown.
	Renderer report.Renderer

	// ImageDir receives downloaded images.
	ImageDir string

	// Force recomputes every stage.
	Force bool

	// ForceStages recomputes the named stages. Names may omit ".json";
	// "reports" matches every stakeholder report.
	ForceStages []string

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) renderer() report.Renderer {
	if d.Renderer == nil {
		return report.MarkdownRenderer{}
	}
	return d.Renderer
}

// forced reports whether the stage stored under name must be recomputed.
func (d *Deps) forced(name string) bool {
	if d.Force {
		return true
	}
	base := strings.TrimSuffix(name, ".json")
	for _, s := range d.ForceStages {
		s = strings.TrimSuffix(strings.TrimSpace(s), ".json")
		if s == base || strings.HasPrefix(base, s+"/") {
			return true
		}
	}
	return false
}

// resolveStage loads the snapshot stored under name or computes and saves it.
func resolveStage[T any](ctx context.Context, d *Deps, run *model.AuditRun, name string, compute func(context.Context) (T, error)) (T, error) {
	value, cached, err := stage.Resolve(ctx, d.Store, name, d.forced(name), compute)
	if err != nil {
		return value, fmt.Errorf("stage %s: %w", name, err)
	}

	d.Metrics.ObserveStage(name, cached)
	if cached {
		run.MarkCached(name)
		d.logger().Info("loaded stage snapshot", "stage", name, "location", d.Store.Location(name))
	} else {
		d.logger().Debug("saved stage snapshot", "stage", name, "location", d.Store.Location(name))
	}
	return value, nil
}

// ImageDir returns where images of organization are downloaded: next to
// the snapshots for a directory store, in the user cache otherwise.
func ImageDir(store stage.Store, organization string) string {
	if ds, ok := store.(*stage.DirStore); ok {
		return filepath.Join(ds.Dir(), "images")
	}
	return filepath.Join(config.XDGCacheDir(), filepath.FromSlash(organization), "images")
}
