// Package searchsvc defines the contract with the full-text search service
// and provides bleve, sqlite and elasticsearch implementations of it.
package searchsvc

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/krakend/docsite-search/internal/indexing"
)

// Match-all query text
const MatchAll = "*"

// Sort directive for relevance ordering
const SortByTextMatch = "_text_match:desc"

var (
	// ErrCollectionNotFound is returned when a collection does not exist
	ErrCollectionNotFound = indexing.ErrCollectionNotFound

	// ErrCollectionExists is returned when creating a collection that already exists
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidCollection is returned for collection names a backend cannot store
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidQuery is returned for queries a backend cannot run
	ErrInvalidQuery = errors.New("invalid query")

	// ErrSchemaMismatch is returned when a stored collection was built with another schema version
	ErrSchemaMismatch = errors.New("collection schema version mismatch")
)

// Service is a search service holding collections of index records
type Service interface {
	CreateCollection(ctx context.Context, schema indexing.Schema) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, records []indexing.IndexRecord) error
	Search(ctx context.Context, collection string, q Query) (*Result, error)
	Close() error
}

// Query is a ranked search request
type Query struct {
	Text       string            // MatchAll for every document
	QueryBy    []string          // Fields the text is matched against
	SortBy     string            // Only SortByTextMatch is supported
	PerPage    int               // Hits, or groups when GroupBy is set
	Filters    map[string]string // Exact-match field filters
	GroupBy    string            // Field to group hits by
	GroupLimit int               // Hits kept per group
}

// Hit is a ranked index record
type Hit struct {
	indexing.IndexRecord
	Score float64 `json:"score"`
}

// Result holds ranked hits, best first. Grouped results are flattened in group order.
type Result struct {
	Hits  []Hit `json:"hits"`
	Found int   `json:"found"`
}

// Backend selects a Service implementation
type Backend string

const (
	BackendBleve         Backend = "bleve"
	BackendSQLite        Backend = "sqlite"
	BackendElasticsearch Backend = "elasticsearch"
)

// Options configures Open
type Options struct {
	Backend Backend
	DataDir string // bleve and sqlite

	ElasticsearchURL    string
	ElasticsearchAPIKey string
}

// Open creates the Service selected by opts.Backend
func Open(opts Options) (Service, error) {
	switch opts.Backend {
	case BackendBleve, "":
		return NewBleve(opts.DataDir)
	case BackendSQLite:
		return NewSQLite(opts.DataDir)
	case BackendElasticsearch:
		return NewElasticsearch(opts.ElasticsearchURL, opts.ElasticsearchAPIKey)
	default:
		return nil, fmt.Errorf("unknown search backend %q", opts.Backend)
	}
}

var collectionNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// validateCollection rejects names unsafe as directory, table or index names
func validateCollection(name string) error {
	if !collectionNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}
