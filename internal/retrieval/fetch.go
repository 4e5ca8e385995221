// Package retrieval finds the pages most relevant to a question and returns
// their full text with citations, for use as LLM context.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/krakend/docsite-search/internal/content"
	"github.com/krakend/docsite-search/internal/search"
)

// Messages returned in place of context when nothing can be provided
const (
	NoResultsMessage   = "No relevant documentation found for this query."
	FetchFailedMessage = "Could not fetch documentation content."
	ErrorMessage       = "An error occurred while searching the documentation."
)

const (
	DefaultLimit       = 3
	defaultConcurrency = 4
)

// PageResolver maps result URLs back to pages and renders their text
type PageResolver interface {
	Lookup(url string) (*content.Page, bool)
	Text(ctx context.Context, page *content.Page) (string, error)
}

// Citation points at one page included in the context
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Label string `json:"label"`
}

// Result is the concatenated page text plus one citation per page
type Result struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Fetcher runs search-and-fetch against one collection
type Fetcher struct {
	Searcher    search.Searcher
	Collection  string
	Pages       PageResolver
	Concurrency int // Parallel page fetches, defaults to 4
}

// bareURL drops the anchor from a result URL
func bareURL(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}

// distinctPages returns up to limit page URLs in ranked order
func distinctPages(results []search.GroupedResult, limit int) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, r := range results {
		u := bareURL(r.URL)
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
		if len(urls) == limit {
			break
		}
	}
	return urls
}

type fetched struct {
	page *content.Page
	text string
}

// SearchAndFetch searches for query and returns the full text of up to limit
// distinct matching pages. It never fails: problems are reported through the
// sentinel messages and an empty citation list.
func (f *Fetcher) SearchAndFetch(ctx context.Context, query string, limit int) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: search and fetch for %q panicked: %v", query, r)
			res = Result{Text: ErrorMessage, Citations: []Citation{}}
		}
	}()

	if limit <= 0 {
		limit = DefaultLimit
	}

	results, err := search.SearchDocs(ctx, f.Searcher, f.Collection, query, "")
	if err != nil {
		log.Printf("Warning: documentation search failed: %v", err)
		return Result{Text: ErrorMessage, Citations: []Citation{}}
	}
	urls := distinctPages(results, limit)
	if len(urls) == 0 {
		return Result{Text: NoResultsMessage, Citations: []Citation{}}
	}

	pages := f.fetchAll(ctx, urls)

	var b strings.Builder
	citations := make([]Citation, 0, len(pages))
	for _, p := range pages {
		if p == nil {
			continue
		}
		label := strconv.Itoa(len(citations) + 1)
		fmt.Fprintf(&b, "%s\n\n[%s]\n\n---\n\n", p.text, label)
		citations = append(citations, Citation{URL: p.page.URL, Title: p.page.Title, Label: label})
	}
	if len(citations) == 0 {
		return Result{Text: FetchFailedMessage, Citations: citations}
	}
	return Result{Text: b.String(), Citations: citations}
}

// fetchAll resolves and renders each URL concurrently. Slots of failed pages stay nil.
func (f *Fetcher) fetchAll(ctx context.Context, urls []string) []*fetched {
	out := make([]*fetched, len(urls))

	concurrency := f.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, u := range urls {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Warning: fetching %s panicked: %v", u, r)
				}
			}()

			page, ok := f.Pages.Lookup(u)
			if !ok {
				log.Printf("Warning: no content source for %s, skipping", u)
				return nil
			}
			text, err := f.Pages.Text(ctx, page)
			if err != nil {
				log.Printf("Warning: failed to fetch %s: %v", u, err)
				return nil
			}
			out[i] = &fetched{page: page, text: text}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
