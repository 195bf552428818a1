package model

import (
	"encoding/json"
	"slices"
)

// Finding is the structured benefit/drawback assessment of one page for one stakeholder.
type Finding struct {
	Benefits  []string `json:"benefits"`
	Drawbacks []string `json:"drawbacks"`
}

// MarshalJSON always emits arrays, never null.
func (f Finding) MarshalJSON() ([]byte, error) {
	type alias Finding
	out := alias(f)
	if out.Benefits == nil {
		out.Benefits = []string{}
	}
	if out.Drawbacks == nil {
		out.Drawbacks = []string{}
	}
	return json.Marshal(out)
}

// Append concatenates other's lists onto f in order. Duplicates are kept.
func (f *Finding) Append(other Finding) {
	f.Benefits = append(f.Benefits, other.Benefits...)
	f.Drawbacks = append(f.Drawbacks, other.Drawbacks...)
}

// Items returns benefits followed by drawbacks.
func (f Finding) Items() []string {
	items := make([]string, 0, len(f.Benefits)+len(f.Drawbacks))
	items = append(items, f.Benefits...)
	return append(items, f.Drawbacks...)
}

// Findings maps page URL -> stakeholder name -> Finding.
type Findings map[string]map[string]Finding

// Set stores a finding, creating the inner map on demand.
func (f Findings) Set(url, stakeholder string, finding Finding) {
	inner, ok := f[url]
	if !ok {
		inner = make(map[string]Finding)
		f[url] = inner
	}
	inner[stakeholder] = finding
}

// Get returns the finding for (url, stakeholder); absent entries are empty.
func (f Findings) Get(url, stakeholder string) Finding {
	return f[url][stakeholder]
}

// URLs returns the page URLs in sorted order.
func (f Findings) URLs() []string {
	urls := make([]string, 0, len(f))
	for u := range f {
		urls = append(urls, u)
	}
	slices.Sort(urls)
	return urls
}

// Count returns the number of (page, stakeholder) findings.
func (f Findings) Count() int {
	n := 0
	for _, inner := range f {
		n += len(inner)
	}
	return n
}

// Totals sums benefits and drawbacks recorded for a stakeholder across pages.
func (f Findings) Totals(stakeholder string) (pages, benefits, drawbacks int) {
	for _, inner := range f {
		finding, ok := inner[stakeholder]
		if !ok {
			continue
		}
		pages++
		benefits += len(finding.Benefits)
		drawbacks += len(finding.Drawbacks)
	}
	return pages, benefits, drawbacks
}

// StakeholderReport is the ordered list of long-form documents for one stakeholder,
// one per corpus chunk.
type StakeholderReport []string

// Reports maps stakeholder name to its report documents.
type Reports map[string]StakeholderReport
