package model

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
)

// PageRecord holds what the crawler extracted from a single page.
// A record is created once per URL and never modified afterwards.
type PageRecord struct {
	// Text is the visible text of the page with runs of blank lines collapsed.
	Text string `json:"text"`

	// Links are same-origin outbound links in order of first appearance.
	// Duplicates within one page are removed.
	Links []string `json:"links"`
}

// ContentMap maps canonical page URLs to their PageRecord.
//
// The map only grows. Membership doubles as the crawler's visited set, so
// InsertIfAbsent is the single write path and the first writer for a URL wins.
// ContentMap is safe for concurrent use.
type ContentMap struct {
	mu    sync.RWMutex
	pages map[string]PageRecord
}

// NewContentMap returns an empty ContentMap.
func NewContentMap() *ContentMap {
	return &ContentMap{pages: make(map[string]PageRecord)}
}

// InsertIfAbsent stores rec under url unless url is already present.
// It reports whether the record was stored.
func (m *ContentMap) InsertIfAbsent(url string, rec PageRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[url]; ok {
		return false
	}
	if rec.Links == nil {
		rec.Links = []string{}
	}
	m.pages[url] = rec
	return true
}

// Has reports whether url is a key of the map.
func (m *ContentMap) Has(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pages[url]
	return ok
}

// Get returns the record stored for url.
func (m *ContentMap) Get(url string) (PageRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.pages[url]
	return rec, ok
}

// Len returns the number of pages in the map.
func (m *ContentMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}

// URLs returns the keys in sorted order.
// Every downstream stage iterates pages in this order.
func (m *ContentMap) URLs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	urls := make([]string, 0, len(m.pages))
	for u := range m.pages {
		urls = append(urls, u)
	}
	slices.Sort(urls)
	return urls
}

// HasPrefix reports whether every key starts with prefix.
func (m *ContentMap) HasPrefix(prefix string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for u := range m.pages {
		if !strings.HasPrefix(u, prefix) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the map as a JSON object of url -> {text, links}.
func (m *ContentMap) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(m.pages)
}

// UnmarshalJSON decodes a snapshot produced by MarshalJSON.
func (m *ContentMap) UnmarshalJSON(data []byte) error {
	pages := make(map[string]PageRecord)
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	for u, rec := range pages {
		if rec.Links == nil {
			rec.Links = []string{}
			pages[u] = rec
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = pages
	return nil
}
