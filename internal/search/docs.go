package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/krakend/docsite-search/internal/searchsvc"
)

const (
	// BrowsePageSize is the number of pages listed for an empty query
	BrowsePageSize = 8

	// QueryPageSize is the number of hits requested for a text query
	QueryPageSize = 10
)

// QueryFields are the fields a text query is matched against
var QueryFields = []string{"title", "section", "content"}

// Searcher runs queries against a collection
type Searcher interface {
	Search(ctx context.Context, collection string, q searchsvc.Query) (*searchsvc.Result, error)
}

// BuildQuery returns the service query for a user query and optional tag
func BuildQuery(query, tag string) searchsvc.Query {
	var q searchsvc.Query
	if strings.TrimSpace(query) == "" {
		q = searchsvc.Query{
			Text:       searchsvc.MatchAll,
			GroupBy:    "page_id",
			GroupLimit: 1,
			PerPage:    BrowsePageSize,
		}
	} else {
		q = searchsvc.Query{
			Text:    query,
			QueryBy: QueryFields,
			SortBy:  searchsvc.SortByTextMatch,
			PerPage: QueryPageSize,
		}
	}
	if tag != "" {
		q.Filters = map[string]string{"tag": tag}
	}
	return q
}

// SearchDocs queries collection and groups the hits.
// An empty query lists one page entry per distinct page.
func SearchDocs(ctx context.Context, s Searcher, collection, query, tag string) ([]GroupedResult, error) {
	q := BuildQuery(query, tag)
	result, err := s.Search(ctx, collection, q)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	grouped := GroupResults(result.Hits)
	if q.GroupBy == "" {
		return grouped, nil
	}

	pages := make([]GroupedResult, 0, len(grouped))
	for _, r := range grouped {
		if r.Type == KindPage {
			pages = append(pages, r)
		}
	}
	return pages, nil
}
