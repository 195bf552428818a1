package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/nao1215/siteaudit/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs a plain text summary for the terminal.
// Columns are aligned by display width so stakeholder names in any script
// line up.
type SimpleWriter struct {
	baseWriter

	// verbose adds the mission statement, cached stages and report files.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary of run.
func (w *SimpleWriter) Write(run *model.AuditRun) (int, error) {
	return w.WriteSummary(NewSummary(run))
}

// WriteSummary outputs summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeStakeholders(&sb, summary)
	if w.verbose {
		w.writeDetails(&sb, summary)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        SITE AUDIT REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Organization:   %s\n", s.Organization)
	fmt.Fprintf(sb, "Site:           %s\n", s.BaseURL)
	fmt.Fprintf(sb, "Audit Date:     %s\n", s.DateAudited.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages Crawled:  %d\n", s.PagesCrawled)
	fmt.Fprintf(sb, "Images:         %d found, %d captioned\n", s.ImagesFound, s.ImagesCaptioned)

	switch {
	case s.Cancelled:
		sb.WriteString("Status:         CANCELLED (partial results)\n")
	case s.Error != "":
		fmt.Fprintf(sb, "Status:         ERROR - %s\n", s.Error)
	default:
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStakeholders(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("STAKEHOLDERS\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	if len(s.Stakeholders) == 0 {
		sb.WriteString("  No stakeholders audited\n\n")
		return
	}

	header := []string{"Stakeholder", "Pages", "Benefits", "Drawbacks", "Docs"}
	rows := make([][]string, 0, len(s.Stakeholders)+1)
	for _, st := range s.Stakeholders {
		rows = append(rows, []string{
			st.Name,
			strconv.Itoa(st.Pages),
			strconv.Itoa(st.Benefits),
			strconv.Itoa(st.Drawbacks),
			strconv.Itoa(st.Documents),
		})
	}
	rows = append(rows, []string{"TOTAL", "", strconv.Itoa(s.TotalBenefits()), strconv.Itoa(s.TotalDrawbacks()), ""})

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	writeRow := func(cells []string) {
		sb.WriteString(" ")
		for i, cell := range cells {
			sb.WriteString(" ")
			if i == 0 {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
			} else {
				sb.WriteString(runewidth.FillLeft(cell, widths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDetails(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("DETAILS\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	if s.Mission != "" {
		fmt.Fprintf(sb, "  Mission: %s\n", truncateString(strings.ReplaceAll(s.Mission, "\n", " "), 200))
	}
	fmt.Fprintf(sb, "  Duration: %s\n", s.Duration.Round(1e6))
	for _, stage := range s.CachedStages {
		fmt.Fprintf(sb, "  [cached] %s\n", stage)
	}
	for _, file := range s.ReportFiles {
		fmt.Fprintf(sb, "  [+] %s\n", file)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by siteaudit\n")
	sb.WriteString("https://github.com/nao1215/siteaudit\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

// truncateString shortens s to at most maxWidth display cells, ending with
// an ellipsis when something was cut.
func truncateString(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
