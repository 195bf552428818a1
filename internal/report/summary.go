package report

import (
	"time"

	"github.com/nao1215/siteaudit/internal/model"
)

// StakeholderSummary counts what the audit found for one stakeholder.
type StakeholderSummary struct {
	Name      string `json:"name"`
	Pages     int    `json:"pages"`
	Benefits  int    `json:"benefits"`
	Drawbacks int    `json:"drawbacks"`
	Documents int    `json:"documents"`
}

// Summary is the condensed view of an audit run that writers print.
type Summary struct {
	Organization    string               `json:"organization"`
	BaseURL         string               `json:"base_url"`
	Mission         string               `json:"mission,omitempty"`
	DateAudited     time.Time            `json:"date_audited"`
	Duration        time.Duration        `json:"duration"`
	PagesCrawled    int                  `json:"pages_crawled"`
	ImagesFound     int                  `json:"images_found"`
	ImagesCaptioned int                  `json:"images_captioned"`
	Stakeholders    []StakeholderSummary `json:"stakeholders"`
	CachedStages    []string             `json:"cached_stages,omitempty"`
	ReportFiles     []string             `json:"report_files,omitempty"`
	Error           string               `json:"error,omitempty"`
	Cancelled       bool                 `json:"cancelled,omitempty"`
}

// NewSummary condenses run. Stakeholders keep the run's order.
func NewSummary(run *model.AuditRun) *Summary {
	s := &Summary{
		Organization:    run.Organization,
		BaseURL:         run.BaseURL,
		Mission:         run.Mission,
		DateAudited:     run.StartedAt,
		Duration:        run.Duration(),
		ImagesFound:     len(run.ImageURLs),
		ImagesCaptioned: len(run.Captions),
		Stakeholders:    make([]StakeholderSummary, 0, len(run.Stakeholders)),
		CachedStages:    run.CachedStages,
		ReportFiles:     run.ReportFiles,
		Error:           run.ErrorMessage,
		Cancelled:       run.Cancelled,
	}
	if s.Error == "" && run.Error != nil {
		s.Error = run.Error.Error()
	}
	if run.ContentMap != nil {
		s.PagesCrawled = run.ContentMap.Len()
	}

	for _, st := range run.Stakeholders {
		pages, benefits, drawbacks := run.Findings.Totals(st.Name)
		s.Stakeholders = append(s.Stakeholders, StakeholderSummary{
			Name:      st.Name,
			Pages:     pages,
			Benefits:  benefits,
			Drawbacks: drawbacks,
			Documents: len(run.Reports[st.Name]),
		})
	}
	return s
}

// TotalBenefits sums benefits over all stakeholders.
func (s *Summary) TotalBenefits() int {
	n := 0
	for _, st := range s.Stakeholders {
		n += st.Benefits
	}
	return n
}

// TotalDrawbacks sums drawbacks over all stakeholders.
func (s *Summary) TotalDrawbacks() int {
	n := 0
	for _, st := range s.Stakeholders {
		n += st.Drawbacks
	}
	return n
}

// HasFindings reports whether any stakeholder has a benefit or drawback.
func (s *Summary) HasFindings() bool {
	return s.TotalBenefits()+s.TotalDrawbacks() > 0
}

// Status is a one-word description of how the run ended.
func (s *Summary) Status() string {
	switch {
	case s.Cancelled:
		return "Cancelled"
	case s.Error != "":
		return "Error"
	default:
		return "Complete"
	}
}
