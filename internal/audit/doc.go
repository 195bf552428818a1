// Package audit turns crawled pages into stakeholder findings and reports.
//
// The stages, in pipeline order:
//
//   - Mission: a mission statement from the homepage when none is configured
//   - WebsiteAuditor: free-form review of every page for every stakeholder
//   - ImageAuditor: the same review over the captions of each page's images
//   - Aggregator: merges both reviews per page and stakeholder into a
//     structured Finding
//   - Synthesizer: one long-form report per stakeholder from all findings
//
// Long inputs go through a Summarizer, which splits text into chunks and
// makes one model call per chunk in order.
package audit
