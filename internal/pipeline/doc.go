// Package pipeline runs the stages of a site audit in sequence.
//
// Each stage is a Step that reads the artifacts earlier steps stored in the
// model.AuditRun and adds its own. Every step resolves its artifact through
// the stage store first, so an interrupted audit resumes from the last
// snapshot instead of repeating crawls and model calls.
//
// DefaultPipeline wires the standard order:
//
//	crawl -> images -> mission -> website_audit -> image_audit
//	      -> aggregate -> synthesize -> render
//
// BatchProcessor audits several organizations concurrently, each with its
// own pipeline and run.
package pipeline
