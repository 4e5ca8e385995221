package searchsvc

import (
	"fmt"

	"github.com/krakend/docsite-search/internal/indexing"
)

// groupScanSize is the page size used when grouping client-side.
// Pages are read until the groups are complete or hits run out.
const groupScanSize = 250

// defaultPerPage applies when a query leaves PerPage unset
const defaultPerPage = 10

// fieldValue returns a record field by its wire name
func fieldValue(rec indexing.IndexRecord, name string) string {
	switch name {
	case "id":
		return rec.ID
	case "title":
		return rec.Title
	case "description":
		return rec.Description
	case "url":
		return rec.URL
	case "page_id":
		return rec.PageID
	case "tag":
		return rec.Tag
	case "section":
		return rec.Section
	case "section_id":
		return rec.SectionID
	case "content":
		return rec.Content
	}
	return ""
}

// recordFromFields rebuilds a record from stored document fields
func recordFromFields(id string, fields map[string]interface{}) indexing.IndexRecord {
	return indexing.IndexRecord{
		ID:          id,
		Title:       getStringField(fields, "title"),
		Description: getStringField(fields, "description"),
		URL:         getStringField(fields, "url"),
		PageID:      getStringField(fields, "page_id"),
		Tag:         getStringField(fields, "tag"),
		Section:     getStringField(fields, "section"),
		SectionID:   getStringField(fields, "section_id"),
		Content:     getStringField(fields, "content"),
	}
}

func getStringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// groupCollector keeps the first limit hits of each group, for at most
// perPage groups. Hits must arrive best first; groups are ordered by their best hit.
type groupCollector struct {
	field   string
	limit   int
	perPage int
	counts  map[string]int
	order   []string
	grouped map[string][]Hit
}

func newGroupCollector(field string, limit, perPage int) *groupCollector {
	if limit <= 0 {
		limit = 1
	}
	return &groupCollector{
		field:   field,
		limit:   limit,
		perPage: perPage,
		counts:  make(map[string]int),
		order:   make([]string, 0),
		grouped: make(map[string][]Hit),
	}
}

func (g *groupCollector) add(hit Hit) {
	key := fieldValue(hit.IndexRecord, g.field)
	if _, seen := g.counts[key]; !seen {
		if len(g.order) >= g.perPage {
			return
		}
		g.order = append(g.order, key)
	}
	if g.counts[key] >= g.limit {
		return
	}
	g.counts[key]++
	g.grouped[key] = append(g.grouped[key], hit)
}

// full reports that no later hit can change the result
func (g *groupCollector) full() bool {
	if len(g.order) < g.perPage {
		return false
	}
	for _, key := range g.order {
		if g.counts[key] < g.limit {
			return false
		}
	}
	return true
}

func (g *groupCollector) hits() []Hit {
	out := make([]Hit, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.grouped[key]...)
	}
	return out
}

// groupHits groups an already ranked hit list
func groupHits(hits []Hit, field string, limit, perPage int) []Hit {
	g := newGroupCollector(field, limit, perPage)
	for _, hit := range hits {
		g.add(hit)
	}
	return g.hits()
}

// validateQuery checks the parts of a query every backend relies on
func validateQuery(q Query) error {
	if q.SortBy != "" && q.SortBy != SortByTextMatch {
		return fmt.Errorf("%w: unsupported sort %q", ErrInvalidQuery, q.SortBy)
	}
	if q.GroupBy != "" && !knownField(q.GroupBy) {
		return fmt.Errorf("%w: unsupported group_by field %q", ErrInvalidQuery, q.GroupBy)
	}
	for name := range q.Filters {
		if !knownField(name) {
			return fmt.Errorf("%w: unsupported filter field %q", ErrInvalidQuery, name)
		}
	}
	for _, name := range q.QueryBy {
		if !knownField(name) {
			return fmt.Errorf("%w: unsupported query_by field %q", ErrInvalidQuery, name)
		}
	}
	return nil
}

func knownField(name string) bool {
	if name == "id" {
		return true
	}
	_, ok := indexing.DocsSchema("").Field(name)
	return ok
}

func perPageOrDefault(q Query) int {
	if q.PerPage <= 0 {
		return defaultPerPage
	}
	return q.PerPage
}
