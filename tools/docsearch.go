package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/krakend/docsite-search/internal/content"
	"github.com/krakend/docsite-search/internal/indexing"
	"github.com/krakend/docsite-search/internal/retrieval"
	"github.com/krakend/docsite-search/internal/search"
	"github.com/krakend/docsite-search/internal/searchsvc"
)

const (
	refreshTTL    = 24 * time.Hour
	maxFetchLimit = 10
)

// SearchDocumentationInput defines input for search_documentation tool
type SearchDocumentationInput struct {
	Query  string `json:"query" jsonschema:"Search query for documentation (empty lists pages)"`
	Tag    string `json:"tag,omitempty" jsonschema:"Restrict results to pages with this tag (optional)"`
	Locale string `json:"locale,omitempty" jsonschema:"Locale of the caller (optional)"`
}

// SearchDocumentationOutput defines output for search_documentation tool
type SearchDocumentationOutput struct {
	Query   string                 `json:"query"`
	Results []search.GroupedResult `json:"results"`
}

// FetchDocumentationInput defines input for fetch_documentation tool
type FetchDocumentationInput struct {
	Query string `json:"query" jsonschema:"Question to find documentation for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of pages to include (optional, defaults to 3)"`
}

// FetchDocumentationOutput defines output for fetch_documentation tool
type FetchDocumentationOutput struct {
	Text      string               `json:"text"`
	Citations []retrieval.Citation `json:"citations"`
}

// RefreshDocumentationIndexInput defines input for refresh_documentation_index tool
type RefreshDocumentationIndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Rebuild even if the index was synced recently (optional, defaults to false)"`
}

// RefreshDocumentationIndexOutput defines output for refresh_documentation_index tool
type RefreshDocumentationIndexOutput struct {
	Updated        bool      `json:"updated"`
	LastUpdate     time.Time `json:"last_update"`
	RecordsIndexed int       `json:"records_indexed"`
	Message        string    `json:"message"`
}

// DocSearch serves the documentation tools over one search service and a
// content tree. The page registry is swapped atomically on refresh so
// searches never wait for a rebuild.
type DocSearch struct {
	service    searchsvc.Service
	collection string
	contentFS  fs.FS
	sections   []content.Section
	batchSize  int

	registry atomic.Pointer[content.Registry]
	client   atomic.Pointer[search.Client]

	// refreshMu serializes rebuilds; searches do not take it
	refreshMu  sync.Mutex
	lastUpdate time.Time
	now        func() time.Time
}

// NewDocSearch loads the content tree and returns the tool set.
// The collection is not rebuilt; call Refresh for that.
func NewDocSearch(service searchsvc.Service, collection string, contentFS fs.FS, sections []content.Section) (*DocSearch, error) {
	d := &DocSearch{
		service:    service,
		collection: collection,
		contentFS:  contentFS,
		sections:   sections,
		batchSize:  indexing.DefaultBatchSize,
		now:        time.Now,
	}
	reg, err := content.LoadRegistry(contentFS, sections)
	if err != nil {
		return nil, fmt.Errorf("failed to load documentation content: %w", err)
	}
	d.registry.Store(reg)
	d.client.Store(search.NewClient(service, collection))
	return d, nil
}

// Lookup resolves a result URL against the current registry
func (d *DocSearch) Lookup(url string) (*content.Page, bool) {
	return d.registry.Load().Lookup(url)
}

// Text renders a page with the current registry
func (d *DocSearch) Text(ctx context.Context, page *content.Page) (string, error) {
	return d.registry.Load().Text(ctx, page)
}

func (d *DocSearch) fetcher() *retrieval.Fetcher {
	return &retrieval.Fetcher{
		Searcher:   d.service,
		Collection: d.collection,
		Pages:      d,
	}
}

// Refresh reloads content and rebuilds the collection. Unless forced, it is
// a no-op when the last rebuild is younger than refreshTTL.
func (d *DocSearch) Refresh(ctx context.Context, force bool) (*indexing.SyncResult, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	if !force && !d.lastUpdate.IsZero() && d.now().Sub(d.lastUpdate) < refreshTTL {
		log.Printf("Documentation index is fresh, skipping refresh")
		return nil, nil
	}

	log.Printf("Starting documentation refresh (force=%v)...", force)
	reg, err := content.LoadRegistry(d.contentFS, d.sections)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	records, err := indexing.FlattenPages(reg.SourcePages())
	if err != nil {
		return nil, fmt.Errorf("flatten pages: %w", err)
	}

	result, err := indexing.Sync(ctx, d.service, indexing.SyncOptions{
		Collection: d.collection,
		Records:    records,
		BatchSize:  d.batchSize,
	})
	var partial *indexing.PartialSyncError
	if err != nil && !errors.As(err, &partial) {
		return result, fmt.Errorf("sync failed: %w", err)
	}

	// The collection was recreated, so the new pages are what it now serves
	d.registry.Store(reg)
	d.client.Store(search.NewClient(d.service, d.collection))
	d.lastUpdate = d.now()
	if partial != nil {
		return result, err
	}
	log.Printf("✓ Documentation refresh completed in %v", result.Duration.Round(time.Millisecond))
	return result, nil
}

// SearchDocumentation runs the site search query reducer. Results are cached
// per query, locale and tag until the next refresh. Tool calls are independent
// requests, so a newer call never cancels an older one.
func (d *DocSearch) SearchDocumentation(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentationInput) (*mcp.CallToolResult, SearchDocumentationOutput, error) {
	key := search.Key{Query: input.Query, Locale: input.Locale, Tag: input.Tag}

	results, err := d.client.Load().Get(ctx, key)
	if err != nil {
		return nil, SearchDocumentationOutput{}, fmt.Errorf("search failed: %w", err)
	}
	return nil, SearchDocumentationOutput{Query: input.Query, Results: results}, nil
}

// FetchDocumentation returns the full text of the most relevant pages with citations
func (d *DocSearch) FetchDocumentation(ctx context.Context, req *mcp.CallToolRequest, input FetchDocumentationInput) (*mcp.CallToolResult, FetchDocumentationOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = retrieval.DefaultLimit
	}
	limit = min(limit, maxFetchLimit)

	res := d.fetcher().SearchAndFetch(ctx, input.Query, limit)
	return nil, FetchDocumentationOutput{Text: res.Text, Citations: res.Citations}, nil
}

// RefreshDocumentationIndex rebuilds the collection from the content tree
func (d *DocSearch) RefreshDocumentationIndex(ctx context.Context, req *mcp.CallToolRequest, input RefreshDocumentationIndexInput) (*mcp.CallToolResult, RefreshDocumentationIndexOutput, error) {
	result, err := d.Refresh(ctx, input.Force)

	d.refreshMu.Lock()
	output := RefreshDocumentationIndexOutput{LastUpdate: d.lastUpdate}
	d.refreshMu.Unlock()

	if result == nil && err == nil {
		output.Message = fmt.Sprintf("Index is fresh (last updated: %s)", output.LastUpdate.Format(time.RFC3339))
		return nil, output, nil
	}

	var partial *indexing.PartialSyncError
	switch {
	case errors.As(err, &partial):
		output.Updated = true
		output.RecordsIndexed = result.Published
		output.Message = fmt.Sprintf("Documentation refreshed with %d failed batch(es), %d of %d records indexed",
			len(partial.Failed), result.Published, result.Records)
		return nil, output, nil
	case err != nil:
		return nil, output, fmt.Errorf("refresh failed: %w", err)
	}

	output.Updated = true
	output.RecordsIndexed = result.Published
	output.Message = fmt.Sprintf("Documentation refreshed successfully, %d records indexed", result.Published)
	return nil, output, nil
}

// RegisterDocSearchTools registers documentation search tools
func RegisterDocSearchTools(server *mcp.Server, d *DocSearch) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_documentation",
			Description: "Search the documentation site. Returns page, heading and text results grouped by page; an empty query lists pages.",
		},
		d.SearchDocumentation,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "fetch_documentation",
			Description: "Find the documentation pages most relevant to a question and return their full text with numbered citations.",
		},
		d.FetchDocumentation,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "refresh_documentation_index",
			Description: "Rebuild the documentation search index from the content tree (skipped if refreshed in the last 24h unless forced)",
		},
		d.RefreshDocumentationIndex,
	)
}

// Close closes the search service
func (d *DocSearch) Close() error {
	if err := d.service.Close(); err != nil {
		log.Printf("Error closing search service: %v", err)
		return err
	}
	log.Printf("✓ Search service closed successfully")
	return nil
}
