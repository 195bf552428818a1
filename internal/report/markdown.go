package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/siteaudit/internal/llm"
	"github.com/nao1215/siteaudit/internal/model"
)

// MarkdownWriter outputs summary.md: run information, a table of findings
// per stakeholder and a mermaid pie chart of their distribution.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary of run in Markdown format.
func (w *MarkdownWriter) Write(run *model.AuditRun) (int, error) {
	return w.WriteSummary(NewSummary(run))
}

// WriteSummary outputs summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStakeholders(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1(s.Organization + " Site Audit")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + s.BaseURL + "`"},
			{"Audit Date", s.DateAudited.Format("2006-01-02 15:04:05 MST")},
			{"Pages Crawled", strconv.Itoa(s.PagesCrawled)},
			{"Images Captioned", strconv.Itoa(s.ImagesCaptioned)},
			{"Status", w.statusText(s)},
		},
	})
	md.PlainText("")

	if s.Mission != "" {
		md.H2("Mission")
		md.PlainText("")
		md.PlainText(strings.TrimSpace(s.Mission))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) statusText(s *Summary) string {
	switch {
	case s.Cancelled:
		return "⚠️ Cancelled (partial results)"
	case s.Error != "":
		return "❌ Error - " + s.Error
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeStakeholders(md *markdown.Markdown, s *Summary) {
	md.H2("Stakeholders")
	md.PlainText("")

	if len(s.Stakeholders) == 0 {
		md.PlainText("No stakeholders audited.")
		md.PlainText("")
		w.writeAlert(md, s)
		return
	}

	rows := make([][]string, 0, len(s.Stakeholders)+1)
	for _, st := range s.Stakeholders {
		rows = append(rows, []string{
			st.Name,
			strconv.Itoa(st.Pages),
			strconv.Itoa(st.Benefits),
			strconv.Itoa(st.Drawbacks),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		"",
		"**" + strconv.Itoa(s.TotalBenefits()) + "**",
		"**" + strconv.Itoa(s.TotalDrawbacks()) + "**",
	})

	md.Table(markdown.TableSet{
		Header: []string{"Stakeholder", "Pages", "Benefits", "Drawbacks"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.HasFindings() {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart charts benefits plus drawbacks per stakeholder.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Findings per Stakeholder"),
		piechart.WithShowData(true),
	)
	for _, st := range s.Stakeholders {
		if n := st.Benefits + st.Drawbacks; n > 0 {
			chart.LabelAndIntValue(st.Name, uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Error != "":
		md.Cautionf("The audit stopped early: %s", s.Error)
	case s.Cancelled:
		md.Warningf("The audit was cancelled. Results are partial.")
	case !s.HasFindings():
		md.Note("No benefits or drawbacks were recorded for any stakeholder.")
	default:
		md.Tip(fmt.Sprintf("%d benefit(s) and %d drawback(s) recorded across %d stakeholder(s).",
			s.TotalBenefits(), s.TotalDrawbacks(), len(s.Stakeholders)))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [siteaudit](https://github.com/nao1215/siteaudit)*")
}

// StakeholderMarkdown builds the Markdown document for one stakeholder from
// its report documents. Code fences the model wraps documents in are removed.
func StakeholderMarkdown(name string, docs model.StakeholderReport) (string, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1(cases.Title(language.English).String(name) + " Report")
	for _, doc := range docs {
		body := strings.TrimSpace(llm.StripFence(doc))
		if body == "" {
			continue
		}
		md.PlainText("")
		md.PlainText(body)
	}
	if err := md.Build(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
