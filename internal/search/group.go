// Package search turns ranked hits from the search service into grouped,
// de-duplicated results for the search box and the AI tools.
package search

import (
	"github.com/krakend/docsite-search/internal/searchsvc"
)

// Kind classifies a grouped result
type Kind string

const (
	KindPage    Kind = "page"
	KindHeading Kind = "heading"
	KindText    Kind = "text"
)

// GroupedResult is one renderable entry of a result list
type GroupedResult struct {
	ID      string `json:"id"`
	Type    Kind   `json:"type"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SectionKey identifies the fragment a hit stands for
func SectionKey(hit searchsvc.Hit) string {
	if hit.SectionID != "" {
		return hit.ID + "-" + hit.SectionID
	}
	return hit.ID
}

// GroupResults reduces ranked hits to at most one page entry per URL followed
// by at most one entry per fragment. Output order follows input order.
func GroupResults(hits []searchsvc.Hit) []GroupedResult {
	results := make([]GroupedResult, 0, len(hits))
	scannedURLs := make(map[string]bool)
	scannedIDs := make(map[string]bool)
	seenHits := make(map[string]bool)

	for _, hit := range hits {
		if scannedIDs[hit.ID] || seenHits[hit.ID] {
			continue
		}
		seenHits[hit.ID] = true

		if !scannedURLs[hit.URL] {
			scannedURLs[hit.URL] = true
			scannedIDs[hit.ID] = true
			results = append(results, GroupedResult{
				ID:      hit.ID,
				Type:    KindPage,
				URL:     hit.URL,
				Content: hit.Title,
			})
		}

		key := SectionKey(hit)
		if scannedIDs[key] {
			continue
		}
		scannedIDs[key] = true

		kind := KindText
		if hit.Content == hit.Section {
			kind = KindHeading
		}
		url := hit.URL
		if hit.SectionID != "" {
			url += "#" + hit.SectionID
		}
		results = append(results, GroupedResult{
			ID:      key,
			Type:    kind,
			URL:     url,
			Content: hit.Content,
		})
	}
	return results
}
