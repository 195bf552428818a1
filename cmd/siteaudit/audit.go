package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/siteaudit/internal/config"
	"github.com/nao1215/siteaudit/internal/database"
	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/log"
	"github.com/nao1215/siteaudit/internal/metrics"
	"github.com/nao1215/siteaudit/internal/model"
	"github.com/nao1215/siteaudit/internal/pipeline"
	"github.com/nao1215/siteaudit/internal/report"
	"github.com/nao1215/siteaudit/internal/stage"
)

// errAuditsFailed is returned when at least one audit did not complete.
var errAuditsFailed = errors.New("audit failed")

// Environment variables for S3 credentials, used when the flags are not given.
const (
	envS3AccessKey = "SITEAUDIT_S3_ACCESS_KEY"
	envS3SecretKey = "SITEAUDIT_S3_SECRET_KEY"
)

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [organization|site-url]...",
		Short: "Audit nonprofit websites for their stakeholders",
		Long: `Audit crawls each site, reviews every page for every stakeholder and
writes one report per stakeholder plus a run summary.

A target is either an organization listed in the configuration file or a
site URL. Stage snapshots are kept under --output-dir/<organization>, and a
later run reuses them instead of crawling or calling the model again.

Examples:
  # Audit a site by URL with the built-in stakeholders
  siteaudit audit https://www.green-futures.example.org/

  # Audit organizations from the configuration file, two at a time
  siteaudit audit green-futures river-trust -b 2

  # Recompute the stakeholder reports only
  siteaudit audit green-futures --force-stage reports

  # Use an OpenAI compatible endpoint and print a JSON summary
  siteaudit audit green-futures --provider openai --model gpt-4o --json

  # Keep snapshots in an S3 bucket
  siteaudit audit green-futures --s3-endpoint localhost:9000 --s3-bucket audits`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAuditCmd,
	}

	flags := cmd.Flags()

	flags.StringP("config", "c", "",
		"Configuration file path (default: .siteaudit in current or home directory)")
	flags.StringP("output-dir", "o", filepath.Join(config.XDGDataDir(), "audits"),
		"Directory holding one snapshot directory per organization")

	flags.String("provider", config.DefaultProvider, "Model provider: gemini or openai")
	flags.String("model", "", "Model name (default: provider's default model)")

	flags.BoolP("force", "f", false, "Recompute every stage even when a snapshot exists")
	flags.StringSlice("force-stage", nil,
		"Recompute the named stages, e.g. website_audit or reports (repeatable)")
	flags.Bool("skip-images", false, "Skip image download, captioning and the image audit")

	flags.DurationP("timeout", "t", config.DefaultTimeout, "HTTP request timeout")
	flags.String("user-agent", config.DefaultUserAgent, "User-Agent header for HTTP requests")
	flags.IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages per site (0 = no limit)")
	flags.Bool("respect-robots", false, "Skip paths disallowed by robots.txt")

	flags.Int("crawl-concurrency", config.DefaultCrawlConcurrency(), "Concurrent page fetches")
	flags.Int("download-concurrency", config.DefaultImageDownloadConcurrency, "Concurrent image downloads")
	flags.Int("caption-concurrency", config.DefaultCaptionConcurrency, "Concurrent image caption calls")
	flags.Int("llm-concurrency", config.DefaultLLMConcurrency, "Concurrent review calls per stage")
	flags.Int("chunk-size", config.DefaultChunkSize, "Largest text chunk sent to the model, in characters")
	flags.Int("chunk-overlap", config.DefaultChunkOverlap, "Characters shared by consecutive chunks")
	flags.IntP("batch", "b", config.DefaultBatchSize, "Number of concurrent audits")

	flags.String("s3-endpoint", "", "S3 compatible endpoint for snapshots, e.g. localhost:9000")
	flags.String("s3-region", "", "S3 region")
	flags.String("s3-bucket", "", "S3 bucket for snapshots (enables the S3 store)")
	flags.String("s3-access-key", "", "S3 access key (default: $"+envS3AccessKey+")")
	flags.String("s3-secret-key", "", "S3 secret key (default: $"+envS3SecretKey+")")
	flags.Bool("s3-ssl", true, "Use TLS for the S3 endpoint")

	flags.Bool("no-db", false, "Do not record the run in the history database")
	flags.String("db-dir", config.XDGDataDir(), "Directory of the history database")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	flags.BoolP("json", "j", false, "Print the run summary as JSON (mutually exclusive with --markdown)")
	flags.BoolP("markdown", "m", false, "Print the run summary as Markdown (mutually exclusive with --json)")
	flags.String("report-file", "", "Write the run summary to this file instead of stdout")

	return cmd
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(os.Stderr, log.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	return runAudit(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	applyLogFlags(cmd, cfg)
	flags := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.Provider, err = flags.GetString("provider"); err != nil {
		return nil, err
	}
	if cfg.Model, err = flags.GetString("model"); err != nil {
		return nil, err
	}
	if cfg.Force, err = flags.GetBool("force"); err != nil {
		return nil, err
	}
	if cfg.ForceStages, err = flags.GetStringSlice("force-stage"); err != nil {
		return nil, err
	}
	if cfg.SkipImages, err = flags.GetBool("skip-images"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("respect-robots"); err != nil {
		return nil, err
	}
	if cfg.CrawlConcurrency, err = flags.GetInt("crawl-concurrency"); err != nil {
		return nil, err
	}
	if cfg.ImageDownloadConcurrency, err = flags.GetInt("download-concurrency"); err != nil {
		return nil, err
	}
	if cfg.CaptionConcurrency, err = flags.GetInt("caption-concurrency"); err != nil {
		return nil, err
	}
	if cfg.LLMConcurrency, err = flags.GetInt("llm-concurrency"); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = flags.GetInt("chunk-size"); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = flags.GetInt("chunk-overlap"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}

	if cfg.S3.Endpoint, err = flags.GetString("s3-endpoint"); err != nil {
		return nil, err
	}
	if cfg.S3.Region, err = flags.GetString("s3-region"); err != nil {
		return nil, err
	}
	if cfg.S3.Bucket, err = flags.GetString("s3-bucket"); err != nil {
		return nil, err
	}
	if cfg.S3.AccessKey, err = flags.GetString("s3-access-key"); err != nil {
		return nil, err
	}
	if cfg.S3.SecretKey, err = flags.GetString("s3-secret-key"); err != nil {
		return nil, err
	}
	if cfg.S3.UseSSL, err = flags.GetBool("s3-ssl"); err != nil {
		return nil, err
	}
	if cfg.S3.AccessKey == "" {
		cfg.S3.AccessKey = os.Getenv(envS3AccessKey)
	}
	if cfg.S3.SecretKey == "" {
		cfg.S3.SecretKey = os.Getenv(envS3SecretKey)
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	// An explicit config path must exist; otherwise a missing file means
	// no configured sites.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = config.EmptyFile()
	}

	cfg.Targets = args
	return cfg, nil
}

// resolveTargets maps every CLI target to an organization and its site.
func resolveTargets(cfg *config.Config) ([]pipeline.Target, error) {
	targets := make([]pipeline.Target, 0, len(cfg.Targets))
	seen := make(map[string]bool)
	for _, arg := range cfg.Targets {
		org, site, err := cfg.SiteConfigs.Resolve(arg)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		if seen[org] {
			return nil, fmt.Errorf("%q: organization %s given twice", arg, org)
		}
		seen[org] = true
		targets = append(targets, pipeline.Target{Organization: org, Site: site})
	}
	return targets, nil
}

// newHTTPClient returns the client shared by the crawl and the image
// downloads of one invocation.
func newHTTPClient(cfg *config.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	transport.MaxIdleConnsPerHost = max(cfg.CrawlConcurrency, cfg.ImageDownloadConcurrency)
	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}

// runAudit audits every target and prints one summary per run to out.
func runAudit(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	targets, err := resolveTargets(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	client := newHTTPClient(cfg)
	defer client.CloseIdleConnections()

	// Model calls are bounded by ctx only; the page timeout does not apply.
	llmClient := &http.Client{}
	defer llmClient.CloseIdleConnections()

	svc, err := llm.New(ctx, cfg, llmClient)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	svc = llm.Instrument(svc, cfg.Provider, m, logger)

	var db *database.AuditDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	factory := func(target pipeline.Target) (*pipeline.Pipeline, error) {
		store, err := stage.Open(cfg, target.Organization)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		orgLogger := logger.With("organization", target.Organization)
		deps := &pipeline.Deps{
			Store:       store,
			LLM:         svc,
			HTTPClient:  client,
			ImageDir:    pipeline.ImageDir(store, target.Organization),
			Force:       cfg.Force,
			ForceStages: cfg.ForceStages,
			Metrics:     m,
			Logger:      orgLogger,
		}
		return pipeline.DefaultPipeline(cfg, target.Site, deps,
			pipeline.WithLogger(orgLogger),
			pipeline.WithMetrics(m),
		)
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	fmt.Fprintf(os.Stderr, "Auditing %d organization(s)...\n", len(targets))
	start := time.Now()

	var (
		mu     sync.Mutex
		failed int
	)
	err = bp.ProcessBatchWithCallback(ctx, targets, func(run *model.AuditRun, index int) {
		mu.Lock()
		defer mu.Unlock()

		if run.Failed() {
			failed++
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", index+1, len(targets), run.Organization, report.NewSummary(run).Status())

		if err := writeSummary(cfg, output, run); err != nil {
			logger.Error("failed to write summary", "organization", run.Organization, "error", err)
		}
		if err := saveRun(ctx, db, run, logger); err != nil {
			logger.Error("failed to save run", "organization", run.Organization, "error", err)
		}
	})
	fmt.Fprintf(os.Stderr, "Finished in %s\n", time.Since(start).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d organization(s)", errAuditsFailed, failed, len(targets))
	}
	return nil
}

// openOutput returns the destination of the run summaries: path when set,
// otherwise fallback. The returned func closes what was opened.
func openOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil //nolint:errcheck // Closed after the last write
}

// writeSummary prints the run summary in the requested format.
func writeSummary(cfg *config.Config, w io.Writer, run *model.AuditRun) error {
	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(w)
	default:
		writer = report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
	_, err := writer.Write(run)
	return err
}

// saveRun records run in the history database. A nil db is a no-op.
func saveRun(ctx context.Context, db *database.AuditDB, run *model.AuditRun, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	// The run is recorded even when ctx was cancelled mid-audit.
	if err := db.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return err
	}
	logger.Info("run saved to database", "organization", run.Organization, "id", run.ID)
	return nil
}
