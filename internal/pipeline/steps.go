package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/siteaudit/internal/audit"
	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/crawler"
	"github.com/nao1215/siteaudit/internal/images"
	"github.com/nao1215/siteaudit/internal/model"
	"github.com/nao1215/siteaudit/internal/report"
	"github.com/nao1215/siteaudit/internal/stage"
	"github.com/nao1215/siteaudit/internal/textsplit"
)

var (
	// ErrEmptySite is returned when the crawl produced no pages.
	ErrEmptySite = errors.New("content map is empty")

	// ErrMissingArtifact is returned by a step whose input an earlier step
	// did not produce.
	ErrMissingArtifact = errors.New("required artifact missing")
)

// Step names.
const (
	StepCrawl        = "crawl"
	StepImages       = "images"
	StepMission      = "mission"
	StepWebsiteAudit = "website_audit"
	StepImageAudit   = "image_audit"
	StepAggregate    = "aggregate"
	StepSynthesize   = "synthesize"
	StepRender       = "render"
)

// SummaryName is the name of the rendered run summary in the store.
const SummaryName = "summary.md"

// CrawlStep builds the content map of the site.
type CrawlStep struct {
	deps *Deps

	fetcherOpts []crawler.FetcherOption
	spiderOpts  []crawler.SpiderOption

	// respectRobots loads robots.txt before crawling.
	respectRobots bool
	userAgent     string
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxPages caps the number of pages in the content map.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithMaxPages(maxPages))
	}
}

// WithCrawlConcurrency sets the number of concurrent fetches.
func WithCrawlConcurrency(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithConcurrency(n))
	}
}

// WithCrawlIgnorePatterns sets URL path globs to skip.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithIgnorePatterns(patterns))
	}
}

// WithCrawlFollowPatterns restricts crawling to matching URL paths.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOpts = append(s.spiderOpts, crawler.WithFollowPatterns(patterns))
	}
}

// WithCrawlUserAgent sets the User-Agent header for page requests.
func WithCrawlUserAgent(userAgent string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.userAgent = userAgent
		s.fetcherOpts = append(s.fetcherOpts, crawler.WithUserAgent(userAgent))
	}
}

// WithCrawlMaxBodySize sets the maximum page size in bytes.
func WithCrawlMaxBodySize(maxBodySize int64) CrawlStepOption {
	return func(s *CrawlStep) {
		s.fetcherOpts = append(s.fetcherOpts, crawler.WithMaxBodySize(maxBodySize))
	}
}

// WithCrawlHeaders adds custom headers to page requests.
func WithCrawlHeaders(headers map[string]string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.fetcherOpts = append(s.fetcherOpts, crawler.WithHeaders(headers))
	}
}

// WithCrawlCacheSize sets the number of page bodies kept in memory.
func WithCrawlCacheSize(size int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.fetcherOpts = append(s.fetcherOpts, crawler.WithCacheSize(size))
	}
}

// WithCrawlRobots makes the crawl honor robots.txt.
func WithCrawlRobots(respect bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.respectRobots = respect
	}
}

// NewCrawlStep creates a new crawl step.
func NewCrawlStep(deps *Deps, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		deps:      deps,
		userAgent: config.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do loads or builds the content map.
func (s *CrawlStep) Do(ctx context.Context, run *model.AuditRun) error {
	logger := s.deps.logger()

	cm, err := resolveStage(ctx, s.deps, run, stage.WebsiteMap, func(ctx context.Context) (*model.ContentMap, error) {
		fetcherOpts := append([]crawler.FetcherOption{
			crawler.WithFetcherMetrics(s.deps.Metrics),
			crawler.WithFetcherLogger(logger),
		}, s.fetcherOpts...)
		spiderOpts := append([]crawler.SpiderOption{crawler.WithSpiderLogger(logger)}, s.spiderOpts...)

		if s.respectRobots {
			group, err := crawler.LoadRobots(ctx, s.deps.HTTPClient, run.BaseURL, s.userAgent)
			if err != nil {
				logger.Warn("ignoring robots.txt", "url", run.BaseURL, "error", err)
			} else {
				spiderOpts = append(spiderOpts, crawler.WithRobots(group))
			}
		}

		spider := crawler.NewSpider(crawler.NewFetcher(s.deps.HTTPClient, fetcherOpts...), spiderOpts...)
		return spider.BuildMap(ctx, run.BaseURL)
	})
	if err != nil {
		return err
	}
	if cm == nil || cm.Len() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptySite, run.BaseURL)
	}

	run.ContentMap = cm
	return nil
}

// ImagesStep downloads the site's images and captions them.
type ImagesStep struct {
	deps         *Deps
	downloadOpts []images.DownloaderOption
	captionOpts  []images.CaptionerOption
}

// ImagesStepOption configures an ImagesStep.
type ImagesStepOption func(*ImagesStep)

// WithImageDownloadConcurrency caps simultaneous downloads.
func WithImageDownloadConcurrency(n int) ImagesStepOption {
	return func(s *ImagesStep) {
		s.downloadOpts = append(s.downloadOpts, images.WithDownloadConcurrency(n))
	}
}

// WithImageCaptionConcurrency caps simultaneous caption calls.
func WithImageCaptionConcurrency(n int) ImagesStepOption {
	return func(s *ImagesStep) {
		s.captionOpts = append(s.captionOpts, images.WithCaptionConcurrency(n))
	}
}

// WithImageUserAgent sets the User-Agent header for image requests.
func WithImageUserAgent(userAgent string) ImagesStepOption {
	return func(s *ImagesStep) {
		s.downloadOpts = append(s.downloadOpts, images.WithDownloadUserAgent(userAgent))
	}
}

// WithImageMaxSize sets the largest image accepted, in bytes.
func WithImageMaxSize(n int64) ImagesStepOption {
	return func(s *ImagesStep) {
		s.downloadOpts = append(s.downloadOpts, images.WithMaxImageSize(n))
	}
}

// NewImagesStep creates a new image step.
func NewImagesStep(deps *Deps, opts ...ImagesStepOption) *ImagesStep {
	s := &ImagesStep{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ImagesStep) Name() string {
	return StepImages
}

// Do collects image links and loads or computes their captions.
func (s *ImagesStep) Do(ctx context.Context, run *model.AuditRun) error {
	if run.ContentMap == nil {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, stage.WebsiteMap)
	}
	logger := s.deps.logger()
	run.ImageURLs = images.Links(run.ContentMap, run.BaseURL)

	captions, err := resolveStage(ctx, s.deps, run, stage.Captions, func(ctx context.Context) (model.Captions, error) {
		if len(run.ImageURLs) == 0 {
			return model.Captions{}, nil
		}

		downloadOpts := append([]images.DownloaderOption{
			images.WithDownloadMetrics(s.deps.Metrics),
			images.WithDownloadLogger(logger),
		}, s.downloadOpts...)
		downloader := images.NewDownloader(s.deps.HTTPClient, downloadOpts...)
		if _, err := downloader.Download(ctx, run.ImageURLs, s.deps.ImageDir); err != nil {
			return nil, err
		}

		captionOpts := append([]images.CaptionerOption{images.WithCaptionLogger(logger)}, s.captionOpts...)
		return images.NewCaptioner(s.deps.LLM, captionOpts...).Caption(ctx, run.ImageURLs, s.deps.ImageDir)
	})
	if err != nil {
		return err
	}
	if captions == nil {
		captions = model.Captions{}
	}

	run.Captions = captions
	return nil
}

// MissionStep sets the run's mission statement, generating one from the
// homepage when none is configured.
type MissionStep struct {
	deps       *Deps
	summarizer *audit.Summarizer

	// configured is the mission statement from the site file.
	configured string
}

// NewMissionStep creates a new mission step. A non-empty configured
// statement is used as is.
func NewMissionStep(deps *Deps, summarizer *audit.Summarizer, configured string) *MissionStep {
	return &MissionStep{deps: deps, summarizer: summarizer, configured: strings.TrimSpace(configured)}
}

// Name returns the step name.
func (s *MissionStep) Name() string {
	return StepMission
}

// Do sets run.Mission.
func (s *MissionStep) Do(ctx context.Context, run *model.AuditRun) error {
	if s.configured != "" {
		run.Mission = s.configured
		return nil
	}
	if run.ContentMap == nil {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, stage.WebsiteMap)
	}

	mission, err := resolveStage(ctx, s.deps, run, stage.MissionStatement, func(ctx context.Context) (string, error) {
		home, _ := run.ContentMap.Get(run.BaseURL)
		return audit.Mission(ctx, s.summarizer, home.Text)
	})
	if err != nil {
		return err
	}

	run.Mission = mission
	return nil
}

// WebsiteAuditStep reviews every page for every stakeholder.
type WebsiteAuditStep struct {
	deps    *Deps
	auditor *audit.WebsiteAuditor
}

// NewWebsiteAuditStep creates a new website audit step.
func NewWebsiteAuditStep(deps *Deps, auditor *audit.WebsiteAuditor) *WebsiteAuditStep {
	return &WebsiteAuditStep{deps: deps, auditor: auditor}
}

// Name returns the step name.
func (s *WebsiteAuditStep) Name() string {
	return StepWebsiteAudit
}

// Do loads or computes run.WebsiteAudit.
func (s *WebsiteAuditStep) Do(ctx context.Context, run *model.AuditRun) error {
	if run.ContentMap == nil {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, stage.WebsiteMap)
	}

	reviews, err := resolveStage(ctx, s.deps, run, stage.WebsiteAudit, func(ctx context.Context) (*model.PageReviews, error) {
		return s.auditor.Audit(ctx, run.ContentMap, run.Stakeholders, run.Mission)
	})
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = model.NewPageReviews()
	}

	run.WebsiteAudit = reviews
	return nil
}

// ImageAuditStep reviews each page's captioned images for every stakeholder.
type ImageAuditStep struct {
	deps    *Deps
	auditor *audit.ImageAuditor
}

// NewImageAuditStep creates a new image audit step.
func NewImageAuditStep(deps *Deps, auditor *audit.ImageAuditor) *ImageAuditStep {
	return &ImageAuditStep{deps: deps, auditor: auditor}
}

// Name returns the step name.
func (s *ImageAuditStep) Name() string {
	return StepImageAudit
}

// Do loads or computes run.ImageAudit.
func (s *ImageAuditStep) Do(ctx context.Context, run *model.AuditRun) error {
	if run.ContentMap == nil {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, stage.WebsiteMap)
	}

	reviews, err := resolveStage(ctx, s.deps, run, stage.ImagesAudit, func(ctx context.Context) (*model.PageReviews, error) {
		return s.auditor.Audit(ctx, run.ContentMap, run.Captions, run.BaseURL, run.Stakeholders)
	})
	if err != nil {
		return err
	}

	run.ImageAudit = reviews
	return nil
}

// AggregateStep merges the reviews into structured findings.
type AggregateStep struct {
	deps       *Deps
	aggregator *audit.Aggregator
}

// NewAggregateStep creates a new aggregation step.
func NewAggregateStep(deps *Deps, aggregator *audit.Aggregator) *AggregateStep {
	return &AggregateStep{deps: deps, aggregator: aggregator}
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return StepAggregate
}

// Do loads or computes run.Findings. A missing image audit is treated as
// empty reviews.
func (s *AggregateStep) Do(ctx context.Context, run *model.AuditRun) error {
	if run.WebsiteAudit == nil {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, stage.WebsiteAudit)
	}

	findings, err := resolveStage(ctx, s.deps, run, stage.OutputReports, func(ctx context.Context) (model.Findings, error) {
		return s.aggregator.Aggregate(ctx, run.WebsiteAudit, run.ImageAudit, run.Stakeholders)
	})
	if err != nil {
		return err
	}
	if findings == nil {
		findings = model.Findings{}
	}

	run.Findings = findings
	return nil
}

// SynthesizeStep writes the long-form report of every stakeholder.
type SynthesizeStep struct {
	deps        *Deps
	synthesizer *audit.Synthesizer
}

// NewSynthesizeStep creates a new synthesis step.
func NewSynthesizeStep(deps *Deps, synthesizer *audit.Synthesizer) *SynthesizeStep {
	return &SynthesizeStep{deps: deps, synthesizer: synthesizer}
}

// Name returns the step name.
func (s *SynthesizeStep) Name() string {
	return StepSynthesize
}

// Do loads or computes each stakeholder's report separately, so a run
// interrupted halfway keeps the reports already written.
func (s *SynthesizeStep) Do(ctx context.Context, run *model.AuditRun) error {
	if run.Findings == nil {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, stage.OutputReports)
	}

	reports := make(model.Reports, len(run.Stakeholders))
	for _, st := range run.Stakeholders {
		docs, err := resolveStage(ctx, s.deps, run, stage.ReportName(st.Name), func(ctx context.Context) (model.StakeholderReport, error) {
			return s.synthesizer.Report(ctx, run.Findings, st.Name)
		})
		if err != nil {
			return err
		}
		reports[st.Name] = docs
	}

	run.Reports = reports
	return nil
}

// RenderStep stores a document per stakeholder and the run summary.
// Rendering makes no model calls and always runs.
type RenderStep struct {
	deps *Deps
}

// NewRenderStep creates a new render step.
func NewRenderStep(deps *Deps) *RenderStep {
	return &RenderStep{deps: deps}
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return StepRender
}

// Do renders and stores the documents, recording their locations in the run.
func (s *RenderStep) Do(ctx context.Context, run *model.AuditRun) error {
	renderer := s.deps.renderer()
	ext := renderer.Extension()

	for _, st := range run.Stakeholders {
		md, err := report.StakeholderMarkdown(st.Name, run.Reports[st.Name])
		if err != nil {
			return fmt.Errorf("failed to build report for %s: %w", st.Name, err)
		}
		name := strings.TrimSuffix(stage.MarkdownReportName(st.Name), ".md") + ext
		if err := s.store(ctx, run, name, md); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := report.NewMarkdownWriter(&buf).Write(run); err != nil {
		return fmt.Errorf("failed to build summary: %w", err)
	}
	return s.store(ctx, run, strings.TrimSuffix(SummaryName, ".md")+ext, buf.String())
}

func (s *RenderStep) store(ctx context.Context, run *model.AuditRun, name, markdown string) error {
	data, err := s.deps.renderer().Render(markdown)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	if err := s.deps.Store.Save(ctx, name, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	run.ReportFiles = append(run.ReportFiles, s.deps.Store.Location(name))
	return nil
}

// DefaultPipeline creates the standard audit pipeline for one site.
// Image steps are left out when cfg.SkipImages is set.
func DefaultPipeline(cfg *config.Config, site config.SiteConfig, deps *Deps, pipelineOpts ...Option) (*Pipeline, error) {
	splitter, err := textsplit.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	logger := deps.logger()
	auditOpts := []audit.Option{
		audit.WithLogger(logger),
		audit.WithConcurrency(cfg.LLMConcurrency),
	}
	summarizer := audit.NewSummarizer(deps.LLM, splitter)

	maxPages := cfg.MaxPages
	if site.MaxPages != 0 {
		maxPages = site.MaxPages
	}
	crawlOpts := []CrawlStepOption{
		WithCrawlMaxPages(maxPages),
		WithCrawlConcurrency(cfg.CrawlConcurrency),
		WithCrawlUserAgent(cfg.UserAgent),
		WithCrawlMaxBodySize(cfg.MaxBodySize),
		WithCrawlCacheSize(cfg.PageCacheSize),
		WithCrawlRobots(cfg.RespectRobots),
	}
	if len(site.Headers) > 0 {
		crawlOpts = append(crawlOpts, WithCrawlHeaders(site.Headers))
	}
	if len(site.IgnorePatterns) > 0 {
		crawlOpts = append(crawlOpts, WithCrawlIgnorePatterns(site.IgnorePatterns))
	}
	if len(site.FollowPatterns) > 0 {
		crawlOpts = append(crawlOpts, WithCrawlFollowPatterns(site.FollowPatterns))
	}

	p := New(pipelineOpts...)
	p.AddStep(NewCrawlStep(deps, crawlOpts...))
	if !cfg.SkipImages {
		p.AddStep(NewImagesStep(deps,
			WithImageDownloadConcurrency(cfg.ImageDownloadConcurrency),
			WithImageCaptionConcurrency(cfg.CaptionConcurrency),
			WithImageUserAgent(cfg.UserAgent),
			WithImageMaxSize(cfg.MaxBodySize),
		))
	}
	p.AddSteps(
		NewMissionStep(deps, summarizer, site.Mission),
		NewWebsiteAuditStep(deps, audit.NewWebsiteAuditor(deps.LLM, auditOpts...)),
	)
	if !cfg.SkipImages {
		p.AddStep(NewImageAuditStep(deps, audit.NewImageAuditor(deps.LLM, audit.FallbackEmpty, auditOpts...)))
	}
	p.AddSteps(
		NewAggregateStep(deps, audit.NewAggregator(summarizer, deps.LLM, auditOpts...)),
		NewSynthesizeStep(deps, audit.NewSynthesizer(summarizer, auditOpts...)),
		NewRenderStep(deps),
	)
	return p, nil
}
