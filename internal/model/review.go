package model

import (
	"encoding/json"
	"slices"
	"sync"
)

// PageReviews holds free-form model output keyed by page URL and stakeholder name.
// The website audit and the image audit each produce one.
// PageReviews is safe for concurrent use.
type PageReviews struct {
	mu      sync.RWMutex
	reviews map[string]map[string]string
}

// NewPageReviews returns an empty PageReviews.
func NewPageReviews() *PageReviews {
	return &PageReviews{reviews: make(map[string]map[string]string)}
}

// Set stores text for (url, stakeholder), replacing any previous value.
func (r *PageReviews) Set(url, stakeholder, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byStakeholder, ok := r.reviews[url]
	if !ok {
		byStakeholder = make(map[string]string)
		r.reviews[url] = byStakeholder
	}
	byStakeholder[stakeholder] = text
}

// Get returns the text for (url, stakeholder). A missing entry is the empty string.
func (r *PageReviews) Get(url, stakeholder string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reviews[url][stakeholder]
}

// Lookup is Get that also reports whether the entry exists.
func (r *PageReviews) Lookup(url, stakeholder string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.reviews[url][stakeholder]
	return text, ok
}

// URLs returns the reviewed page URLs in sorted order.
func (r *PageReviews) URLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	urls := make([]string, 0, len(r.reviews))
	for u := range r.reviews {
		urls = append(urls, u)
	}
	slices.Sort(urls)
	return urls
}

// Len returns the number of pages with at least one review.
func (r *PageReviews) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reviews)
}

// MarshalJSON encodes the reviews as url -> stakeholder -> text.
func (r *PageReviews) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal(r.reviews)
}

// UnmarshalJSON decodes a snapshot produced by MarshalJSON.
func (r *PageReviews) UnmarshalJSON(data []byte) error {
	reviews := make(map[string]map[string]string)
	if err := json.Unmarshal(data, &reviews); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews = reviews
	return nil
}

// Captions maps image URLs to a caption produced by the vision model.
type Captions map[string]string
