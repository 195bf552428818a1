package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/siteaudit/internal/model"
)

// JSONWriter outputs the run summary as JSON for tooling.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary of run.
func (w *JSONWriter) Write(run *model.AuditRun) (int, error) {
	return w.writeJSON(NewSummary(run))
}

// WriteSummary outputs summary.
func (w *JSONWriter) WriteSummary(summary *Summary) (int, error) {
	return w.writeJSON(summary)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport is the complete result of a run with the tool version.
type JSONReport struct {
	Version  string          `json:"version"`
	Run      *model.AuditRun `json:"run"`
	Summary  *Summary        `json:"summary"`
	Findings model.Findings  `json:"findings"`
	Reports  model.Reports   `json:"reports"`
}

// NewJSONReport wraps run with version information.
func NewJSONReport(run *model.AuditRun, version string) *JSONReport {
	findings := run.Findings
	if findings == nil {
		findings = model.Findings{}
	}
	reports := run.Reports
	if reports == nil {
		reports = model.Reports{}
	}
	return &JSONReport{
		Version:  version,
		Run:      run,
		Summary:  NewSummary(run),
		Findings: findings,
		Reports:  reports,
	}
}

// FullJSONWriter outputs the findings and reports along with the summary.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete results.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the complete run wrapped with metadata.
func (w *FullJSONWriter) Write(run *model.AuditRun) (int, error) {
	return w.writeJSON(NewJSONReport(run, w.version))
}
