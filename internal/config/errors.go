package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no organization or site URL is given.
	ErrNoTarget = errors.New("no target specified: provide an organization name from the config file or a site URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidConcurrency is returned when any worker limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: all worker limits must be positive")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be positive")

	// ErrInvalidChunkOverlap is returned when the overlap is negative or
	// larger than the chunk size.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap: must be between 0 and the chunk size")

	// ErrUnknownProvider is returned for a provider other than gemini or openai.
	ErrUnknownProvider = errors.New("unknown model provider: use gemini or openai")

	// ErrNoOutput is returned when neither an output directory nor a bucket is configured.
	ErrNoOutput = errors.New("no output location: set --output-dir or an S3 bucket")

	// ErrUnknownSite is returned when a target is neither a URL nor a site in the config file.
	ErrUnknownSite = errors.New("unknown site: not a URL and not listed in the config file")

	// ErrInvalidSiteURL is returned when a site URL is not an absolute http(s) URL.
	ErrInvalidSiteURL = errors.New("invalid site url: must be an absolute http or https URL")
)
