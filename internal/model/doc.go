// Package model defines the core data structures shared by the siteaudit stages.
//
// This package contains the following main types:
//   - PageRecord and ContentMap: the crawled site graph
//   - Stakeholder: a named audience perspective
//   - PageReviews and Captions: free-form model output keyed by page or image
//   - Finding and Findings: structured benefit/drawback lists per page and stakeholder
//   - Reports: ordered long-form documents per stakeholder
//   - AuditRun: the mutable state a pipeline execution threads through its steps
//
// Models live in their own package so that the crawler, audit, stage cache and
// report packages can share them without import cycles. Every type serializes
// to the JSON layout used by the stage snapshots.
package model
