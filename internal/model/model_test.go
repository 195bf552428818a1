package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
)

func TestContentMap(t *testing.T) {
	t.Parallel()

	t.Run("first writer wins", func(t *testing.T) {
		t.Parallel()

		m := NewContentMap()
		if !m.InsertIfAbsent("https://example.org/a", PageRecord{Text: "first"}) {
			t.Fatal("expected first insert to succeed")
		}
		if m.InsertIfAbsent("https://example.org/a", PageRecord{Text: "second"}) {
			t.Fatal("expected second insert to be rejected")
		}

		rec, ok := m.Get("https://example.org/a")
		if !ok {
			t.Fatal("expected record to exist")
		}
		if rec.Text != "first" {
			t.Errorf("expected text 'first', got %q", rec.Text)
		}
		if rec.Links == nil {
			t.Error("expected links to be an empty slice, not nil")
		}
	})

	t.Run("concurrent inserts keep one record per url", func(t *testing.T) {
		t.Parallel()

		m := NewContentMap()
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				url := fmt.Sprintf("https://example.org/%d", i%5)
				if m.InsertIfAbsent(url, PageRecord{Text: url}) {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if m.Len() != 5 {
			t.Errorf("expected 5 pages, got %d", m.Len())
		}
		if wins != 5 {
			t.Errorf("expected 5 successful inserts, got %d", wins)
		}
	})

	t.Run("urls are sorted", func(t *testing.T) {
		t.Parallel()

		m := NewContentMap()
		m.InsertIfAbsent("https://example.org/c", PageRecord{})
		m.InsertIfAbsent("https://example.org/a", PageRecord{})
		m.InsertIfAbsent("https://example.org/b", PageRecord{})

		want := []string{"https://example.org/a", "https://example.org/b", "https://example.org/c"}
		if got := m.URLs(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		t.Parallel()

		m := NewContentMap()
		m.InsertIfAbsent("https://example.org/", PageRecord{})
		m.InsertIfAbsent("https://example.org/about", PageRecord{})
		if !m.HasPrefix("https://example.org/") {
			t.Error("expected all keys to share the base prefix")
		}
		m.InsertIfAbsent("https://other.org/", PageRecord{})
		if m.HasPrefix("https://example.org/") {
			t.Error("expected prefix check to fail for a foreign key")
		}
	})

	t.Run("json layout", func(t *testing.T) {
		t.Parallel()

		m := NewContentMap()
		m.InsertIfAbsent("https://example.org/", PageRecord{
			Text:  "Home",
			Links: []string{"https://example.org/about"},
		})

		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		want := `{"https://example.org/":{"text":"Home","links":["https://example.org/about"]}}`
		if string(data) != want {
			t.Errorf("expected %s, got %s", want, data)
		}

		decoded := NewContentMap()
		if err := json.Unmarshal([]byte(`{"https://example.org/x":{"text":"X"}}`), decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		rec, _ := decoded.Get("https://example.org/x")
		if rec.Links == nil {
			t.Error("expected decoded links to be non-nil")
		}
	})
}

func TestPageReviews(t *testing.T) {
	t.Parallel()

	r := NewPageReviews()
	r.Set("https://example.org/", "Staff", "good")

	if got := r.Get("https://example.org/", "Staff"); got != "good" {
		t.Errorf("expected 'good', got %q", got)
	}
	if got := r.Get("https://example.org/missing", "Staff"); got != "" {
		t.Errorf("expected empty string for missing page, got %q", got)
	}
	if _, ok := r.Lookup("https://example.org/", "Donors"); ok {
		t.Error("expected missing stakeholder lookup to report false")
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"Staff":"good"`) {
		t.Errorf("unexpected json: %s", data)
	}
}

func TestFinding(t *testing.T) {
	t.Parallel()

	t.Run("empty lists marshal as arrays", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(Finding{})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(data) != `{"benefits":[],"drawbacks":[]}` {
			t.Errorf("unexpected json: %s", data)
		}
	})

	t.Run("append keeps order and duplicates", func(t *testing.T) {
		t.Parallel()

		f := Finding{Benefits: []string{"a"}}
		f.Append(Finding{Benefits: []string{"a", "b"}, Drawbacks: []string{"x"}})

		if !slices.Equal(f.Benefits, []string{"a", "a", "b"}) {
			t.Errorf("unexpected benefits: %v", f.Benefits)
		}
		if !slices.Equal(f.Items(), []string{"a", "a", "b", "x"}) {
			t.Errorf("unexpected items: %v", f.Items())
		}
	})

	t.Run("totals per stakeholder", func(t *testing.T) {
		t.Parallel()

		fs := make(Findings)
		fs.Set("u1", "Staff", Finding{Benefits: []string{"a", "b"}, Drawbacks: []string{"c"}})
		fs.Set("u2", "Staff", Finding{Drawbacks: []string{"d"}})
		fs.Set("u2", "Donors", Finding{Benefits: []string{"e"}})

		pages, benefits, drawbacks := fs.Totals("Staff")
		if pages != 2 || benefits != 2 || drawbacks != 2 {
			t.Errorf("unexpected totals: pages=%d benefits=%d drawbacks=%d", pages, benefits, drawbacks)
		}
		if fs.Count() != 3 {
			t.Errorf("expected 3 findings, got %d", fs.Count())
		}
	})
}

func TestStakeholders(t *testing.T) {
	t.Parallel()

	defaults := DefaultStakeholders()
	if len(defaults) != 10 {
		t.Fatalf("expected 10 default stakeholders, got %d", len(defaults))
	}
	if defaults[0].Name != "Board of Directors" {
		t.Errorf("expected first stakeholder to be Board of Directors, got %q", defaults[0].Name)
	}
	if _, ok := defaults.Find("Donors"); !ok {
		t.Error("expected to find Donors")
	}
	if _, ok := defaults.Find("Nobody"); ok {
		t.Error("did not expect to find Nobody")
	}
}

func TestNewAuditRun(t *testing.T) {
	t.Parallel()

	a := NewAuditRun("acme", "https://acme.org/", DefaultStakeholders())
	b := NewAuditRun("acme", "https://acme.org/", DefaultStakeholders())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique run IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Failed() {
		t.Error("new run should not be failed")
	}
	a.MarkCached("website_map.json")
	if !slices.Contains(a.CachedStages, "website_map.json") {
		t.Error("expected cached stage to be recorded")
	}
}
