package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditRun is the state one audit of one organization accumulates as the
// pipeline steps execute. Each step reads the artifacts of earlier steps and
// fills in its own.
type AuditRun struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// Organization is the name that scopes the run's snapshot directory.
	Organization string `json:"organization"`

	// BaseURL is the site root. Every crawled URL starts with it.
	BaseURL string `json:"base_url"`

	// Mission is the organization's mission statement, configured or generated.
	Mission string `json:"mission,omitempty"`

	// Stakeholders are the audiences evaluated in this run, in report order.
	Stakeholders Stakeholders `json:"stakeholders"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	ContentMap   *ContentMap  `json:"-"`
	ImageURLs    []string     `json:"-"`
	Captions     Captions     `json:"-"`
	WebsiteAudit *PageReviews `json:"-"`
	ImageAudit   *PageReviews `json:"-"`
	Findings     Findings     `json:"-"`
	Reports      Reports      `json:"-"`

	// PerformedSteps lists step names in execution order.
	PerformedSteps []string `json:"performed_steps"`

	// CachedStages lists stage names that were loaded from a snapshot
	// instead of being computed.
	CachedStages []string `json:"cached_stages,omitempty"`

	// ReportFiles lists rendered documents written to disk.
	ReportFiles []string `json:"report_files,omitempty"`

	// Error is the error that stopped the run, if any.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`

	// Cancelled is set when the run stopped because its context was cancelled.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewAuditRun creates a run for an organization's site.
func NewAuditRun(organization, baseURL string, stakeholders Stakeholders) *AuditRun {
	return &AuditRun{
		ID:             uuid.New().String(),
		Organization:   organization,
		BaseURL:        baseURL,
		Stakeholders:   stakeholders,
		StartedAt:      time.Now(),
		PerformedSteps: make([]string, 0),
	}
}

// MarkCached records that a stage was satisfied from a snapshot.
func (r *AuditRun) MarkCached(stage string) {
	r.CachedStages = append(r.CachedStages, stage)
}

// Failed reports whether the run stopped with an error.
func (r *AuditRun) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// Duration returns how long the run took, or the time elapsed so far.
func (r *AuditRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
