package search_test

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/krakend/docsite-search/internal/indexing"
	"github.com/krakend/docsite-search/internal/search"
	"github.com/krakend/docsite-search/internal/searchsvc"
)

func hit(id, url, title, content, section, sectionID string) searchsvc.Hit {
	return searchsvc.Hit{IndexRecord: indexing.IndexRecord{
		ID: id, URL: url, PageID: url, Title: title, Content: content, Section: section, SectionID: sectionID,
	}}
}

func TestGroupResults_DuplicateHit(t *testing.T) {
	hits := []searchsvc.Hit{
		hit("a-0", "/p", "P", "P desc", "", ""),
		hit("a-1", "/p", "P", "Setup", "Setup", "h1"),
		hit("a-1", "/p", "P", "Setup", "Setup", "h1"),
	}

	got := search.GroupResults(hits)
	want := []search.GroupedResult{
		{ID: "a-0", Type: search.KindPage, URL: "/p", Content: "P"},
		{ID: "a-1-h1", Type: search.KindHeading, URL: "/p#h1", Content: "Setup"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupResults() = %+v, want %+v", got, want)
	}
}

func TestGroupResults(t *testing.T) {
	tests := []struct {
		name string
		hits []searchsvc.Hit
		want []search.GroupedResult
	}{
		{
			name: "empty input",
			hits: nil,
			want: []search.GroupedResult{},
		},
		{
			name: "fragment stands in for its page",
			hits: []searchsvc.Hit{
				hit("b-2", "/b", "Bee", "Run the installer.", "Install", "install"),
			},
			want: []search.GroupedResult{
				{ID: "b-2", Type: search.KindPage, URL: "/b", Content: "Bee"},
				{ID: "b-2-install", Type: search.KindText, URL: "/b#install", Content: "Run the installer."},
			},
		},
		{
			name: "one page entry per url",
			hits: []searchsvc.Hit{
				hit("a-1", "/a", "A", "Setup", "Setup", "setup"),
				hit("b-0", "/b", "B", "B desc", "", ""),
				hit("a-2", "/a", "A", "Configure it", "Setup", "setup"),
			},
			want: []search.GroupedResult{
				{ID: "a-1", Type: search.KindPage, URL: "/a", Content: "A"},
				{ID: "a-1-setup", Type: search.KindHeading, URL: "/a#setup", Content: "Setup"},
				{ID: "b-0", Type: search.KindPage, URL: "/b", Content: "B"},
				{ID: "a-2-setup", Type: search.KindText, URL: "/a#setup", Content: "Configure it"},
			},
		},
		{
			name: "section-less body record after page entry",
			hits: []searchsvc.Hit{
				hit("c-0", "/c", "C", "C desc", "", ""),
				hit("c-1", "/c", "C", "Loose paragraph", "", ""),
			},
			want: []search.GroupedResult{
				{ID: "c-0", Type: search.KindPage, URL: "/c", Content: "C"},
				{ID: "c-1", Type: search.KindText, URL: "/c", Content: "Loose paragraph"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := search.GroupResults(tt.hits)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GroupResults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// randomHits builds hit sequences with many repeated ids, urls and sections
func randomHits(r *rand.Rand, n int) []searchsvc.Hit {
	hits := make([]searchsvc.Hit, n)
	for i := range hits {
		page := r.Intn(3)
		url := fmt.Sprintf("/p%d", page)
		id := fmt.Sprintf("p%d-%d", page, r.Intn(4))
		section, sectionID := "", ""
		if r.Intn(2) == 0 {
			sectionID = fmt.Sprintf("s%d", r.Intn(2))
			section = "Section " + sectionID
		}
		content := "text " + id
		if r.Intn(3) == 0 {
			content = section
		}
		hits[i] = hit(id, url, "Page", content, section, sectionID)
	}
	return hits
}

func TestGroupResults_Invariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		hits := randomHits(r, r.Intn(12))
		got := search.GroupResults(hits)

		pageURLs := make(map[string]bool)
		fragments := make(map[string]bool)
		for _, res := range got {
			if res.Type == search.KindPage {
				if pageURLs[res.URL] {
					t.Fatalf("round %d: duplicate page entry %s in %+v", round, res.URL, got)
				}
				pageURLs[res.URL] = true
				continue
			}
			if fragments[res.ID] {
				t.Fatalf("round %d: duplicate fragment %s in %+v", round, res.ID, got)
			}
			fragments[res.ID] = true
		}

		// each result comes from a hit at or after the previous result's hit
		pos := 0
		for _, res := range got {
			found := false
			for ; pos < len(hits); pos++ {
				h := hits[pos]
				if (res.Type == search.KindPage && h.ID == res.ID) ||
					(res.Type != search.KindPage && search.SectionKey(h) == res.ID) {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("round %d: result %+v out of input order", round, res)
			}
		}
	}
}

func TestGroupResults_Pure(t *testing.T) {
	hits := randomHits(rand.New(rand.NewSource(7)), 10)
	first := search.GroupResults(hits)
	second := search.GroupResults(hits)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("GroupResults() not deterministic: %+v vs %+v", first, second)
	}
}
