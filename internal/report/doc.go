// Package report renders the results of an audit run.
//
// Writers produce a run summary in different formats:
//   - SimpleWriter: aligned plain text for the terminal
//   - JSONWriter: the summary as JSON, FullJSONWriter adds the findings
//   - MarkdownWriter: summary.md with a stakeholder table and a pie chart
//
// StakeholderMarkdown builds the per-stakeholder document from the model's
// report chunks, and a Renderer turns Markdown into the bytes stored on disk.
package report
