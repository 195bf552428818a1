package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds each HTTP request made by the fetcher and the
	// image downloader. Model calls are bounded by the command context only.
	DefaultTimeout = 60 * time.Second

	// DefaultBatchSize is the number of organizations audited concurrently
	// when several targets are given.
	DefaultBatchSize = 2

	// DefaultMaxPages of 0 leaves the one-level crawl unbounded.
	DefaultMaxPages = 0

	// AppName is the application name used for XDG directory paths.
	AppName = "siteaudit"

	// DefaultUserAgent identifies siteaudit in HTTP requests so site
	// operators can recognise the traffic in their logs.
	DefaultUserAgent = "siteaudit/1.0 (+https://github.com/nao1215/siteaudit)"

	// DefaultMaxBodySize limits the response body read for a single page or image.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultPageCacheSize is the number of fetched bodies the fetcher keeps so
	// that pages probed for liveness are not downloaded twice.
	DefaultPageCacheSize = 512

	// DefaultImageDownloadConcurrency caps simultaneous image downloads.
	DefaultImageDownloadConcurrency = 8

	// DefaultCaptionConcurrency caps simultaneous vision model calls.
	DefaultCaptionConcurrency = 10

	// DefaultLLMConcurrency caps simultaneous text model calls in the
	// website and image audit stages.
	DefaultLLMConcurrency = 8

	// DefaultChunkSize is the largest text segment, in characters, handed to
	// the model in a single call.
	DefaultChunkSize = 110_000

	// DefaultChunkOverlap is the number of characters shared by consecutive chunks.
	DefaultChunkOverlap = 200

	// ProviderGemini selects the Google Gemini API.
	ProviderGemini = "gemini"

	// ProviderOpenAI selects an OpenAI compatible chat completions API.
	ProviderOpenAI = "openai"

	// DefaultProvider is the model provider used when none is configured.
	DefaultProvider = ProviderGemini

	// DefaultGeminiModel is used for both text and vision calls on Gemini.
	DefaultGeminiModel = "gemini-2.0-flash"

	// DefaultOpenAIModel is used for both text and vision calls on OpenAI.
	DefaultOpenAIModel = "gpt-4o"
)

// DefaultCrawlConcurrency mirrors the usual thread pool default of
// min(32, NumCPU+4) workers.
func DefaultCrawlConcurrency() int {
	return min(32, runtime.NumCPU()+4)
}

// Config holds all configuration options for siteaudit.
// It is populated from CLI flags and the YAML site file, then passed
// through the application explicitly rather than kept in global state.
type Config struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every HTTP request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// MaxPages caps the number of pages in the content map. 0 means no cap.
	MaxPages int

	// RespectRobots makes the crawler skip paths disallowed by robots.txt.
	RespectRobots bool

	// PageCacheSize is the number of fetched bodies kept in memory.
	PageCacheSize int

	// CrawlConcurrency is the number of concurrent page fetches.
	CrawlConcurrency int

	// ImageDownloadConcurrency is the number of concurrent image downloads.
	ImageDownloadConcurrency int

	// CaptionConcurrency is the number of concurrent vision model calls.
	CaptionConcurrency int

	// LLMConcurrency is the number of concurrent text model calls in the
	// website and image audit stages.
	LLMConcurrency int

	// ChunkSize and ChunkOverlap configure the text splitter.
	ChunkSize    int
	ChunkOverlap int

	// Provider is the model provider, "gemini" or "openai".
	Provider string

	// Model is the model name passed to the provider.
	// Empty selects the provider's default.
	Model string

	// OutputDir is the root under which each organization gets its
	// snapshot directory.
	OutputDir string

	// Force recomputes every stage even when a snapshot exists.
	Force bool

	// ForceStages recomputes only the named stages.
	ForceStages []string

	// SkipImages disables image download, captioning and the image audit.
	SkipImages bool

	// S3 holds the object storage settings. When S3.Bucket is set, stage
	// snapshots are stored in the bucket instead of OutputDir.
	S3 S3Config

	// DBDir is the directory holding the audit history database.
	DBDir string

	// SaveToDB records runs and findings in the history database.
	SaveToDB bool

	// Verbose enables debug logging; otherwise only warnings and errors are logged.
	Verbose bool

	// LogJSON switches the log format from text to JSON.
	LogJSON bool

	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string

	// BatchSize is the number of organizations audited concurrently.
	BatchSize int

	// ConfigFilePath is the path to the YAML site file.
	// If empty, .siteaudit is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the site file contents.
	SiteConfigs *File

	// JSONReport prints the run summary as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the run summary as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile redirects the run summary to a file.
	ReportFile string

	// Targets are organization names from the site file or site URLs.
	Targets []string
}

// S3Config configures the S3 compatible snapshot store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether snapshots should go to object storage.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:                  DefaultTimeout,
		UserAgent:                DefaultUserAgent,
		MaxBodySize:              DefaultMaxBodySize,
		MaxPages:                 DefaultMaxPages,
		PageCacheSize:            DefaultPageCacheSize,
		CrawlConcurrency:         DefaultCrawlConcurrency(),
		ImageDownloadConcurrency: DefaultImageDownloadConcurrency,
		CaptionConcurrency:       DefaultCaptionConcurrency,
		LLMConcurrency:           DefaultLLMConcurrency,
		ChunkSize:                DefaultChunkSize,
		ChunkOverlap:             DefaultChunkOverlap,
		Provider:                 DefaultProvider,
		OutputDir:                filepath.Join(XDGDataDir(), "audits"),
		BatchSize:                DefaultBatchSize,
		DBDir:                    XDGDataDir(),
	}
}

// ModelName returns the configured model or the provider's default.
func (c *Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderOpenAI {
		return DefaultOpenAIModel
	}
	return DefaultGeminiModel
}

// XDGDataDir returns the XDG data directory for siteaudit.
// On Linux: ~/.local/share/siteaudit
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for siteaudit.
// On Linux: ~/.config/siteaudit
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for siteaudit.
// On Linux: ~/.cache/siteaudit
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.CrawlConcurrency <= 0 || c.ImageDownloadConcurrency <= 0 ||
		c.CaptionConcurrency <= 0 || c.LLMConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap > c.ChunkSize {
		return ErrInvalidChunkOverlap
	}
	if c.Provider != ProviderGemini && c.Provider != ProviderOpenAI {
		return ErrUnknownProvider
	}
	if c.OutputDir == "" && !c.S3.Enabled() {
		return ErrNoOutput
	}
	return nil
}
