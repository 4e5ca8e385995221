package search

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Client.Search when a newer search started
// before this one finished
var ErrSuperseded = errors.New("search superseded by a newer query")

// Key identifies a cached search
type Key struct {
	Query  string
	Locale string
	Tag    string
}

// Client serves one browsing session. Results are cached per Key for the
// lifetime of the Client and only the most recent search delivers its result.
type Client struct {
	searcher   Searcher
	collection string

	mu         sync.Mutex
	cache      map[Key][]GroupedResult
	generation uint64
}

// NewClient creates a session client for collection
func NewClient(s Searcher, collection string) *Client {
	return &Client{
		searcher:   s,
		collection: collection,
		cache:      make(map[Key][]GroupedResult),
	}
}

// Search returns the grouped results for key. Locale only partitions the cache.
// Errors are not cached.
func (c *Client) Search(ctx context.Context, key Key) ([]GroupedResult, error) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	results, err := SearchDocs(ctx, c.searcher, c.collection, key.Query, key.Tag)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.cache[key] = results
	}
	if gen != c.generation {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Get returns the grouped results for key from the cache or the service.
// Unlike Search it neither supersedes nor is superseded by other calls, for
// callers whose requests are independent of each other.
func (c *Client) Get(ctx context.Context, key Key) ([]GroupedResult, error) {
	if cached, ok := c.Cached(key); ok {
		return cached, nil
	}
	results, err := SearchDocs(ctx, c.searcher, c.collection, key.Query, key.Tag)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[key] = results
	c.mu.Unlock()
	return results, nil
}

// Cached reports the cached results for key
func (c *Client) Cached(key Key) ([]GroupedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.cache[key]
	return r, ok
}
