package searchsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/krakend/docsite-search/internal/indexing"
)

// storedSchema is written next to each bleve collection
type storedSchema struct {
	Version int             `json:"version"`
	Schema  indexing.Schema `json:"schema"`
}

// bleveCollection is one open index plus the searches running on it
type bleveCollection struct {
	index bleve.Index
	wg    sync.WaitGroup
}

// Bleve stores each collection as an on-disk bleve index under a data directory
type Bleve struct {
	root string
	lock *writeLock

	mu          sync.Mutex
	collections map[string]*bleveCollection
}

// NewBleve opens (creating if needed) a bleve data directory
func NewBleve(dataDir string) (*Bleve, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("bleve data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Bleve{
		root:        dataDir,
		lock:        newWriteLock(filepath.Join(dataDir, lockFileName)),
		collections: make(map[string]*bleveCollection),
	}, nil
}

func (b *Bleve) indexPath(name string) string {
	return filepath.Join(b.root, name)
}

func (b *Bleve) schemaPath(name string) string {
	return filepath.Join(b.root, name+".schema.json")
}

// buildIndexMapping maps exact fields to the keyword analyzer and everything else to text
func buildIndexMapping(schema indexing.Schema) mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	for _, field := range schema.Fields {
		if field.Exact || field.Facet {
			docMapping.AddFieldMappingsAt(field.Name, bleve.NewKeywordFieldMapping())
			continue
		}
		docMapping.AddFieldMappingsAt(field.Name, bleve.NewTextFieldMapping())
	}
	docMapping.AddFieldMappingsAt("id", bleve.NewKeywordFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// CreateCollection creates a new empty index for schema
func (b *Bleve) CreateCollection(ctx context.Context, schema indexing.Schema) error {
	if err := validateCollection(schema.Name); err != nil {
		return err
	}
	if err := b.lock.acquire(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.indexPath(schema.Name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("create %s: %w", schema.Name, ErrCollectionExists)
	}

	if stale, ok := b.collections[schema.Name]; ok {
		delete(b.collections, schema.Name)
		stale.wg.Wait()
		if err := stale.index.Close(); err != nil {
			log.Printf("Warning: Error closing stale index %s: %v", schema.Name, err)
		}
	}

	index, err := bleve.New(path, buildIndexMapping(schema))
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", schema.Name, err)
	}

	meta, err := json.Marshal(storedSchema{Version: indexing.IndexSchemaVersion, Schema: schema})
	if err == nil {
		err = os.WriteFile(b.schemaPath(schema.Name), meta, 0644)
	}
	if err != nil {
		index.Close()
		os.RemoveAll(path)
		return fmt.Errorf("failed to write schema for %s: %w", schema.Name, err)
	}

	b.collections[schema.Name] = &bleveCollection{index: index}
	log.Printf("✓ Created bleve collection %s", schema.Name)
	return nil
}

// DeleteCollection closes the index once in-flight searches finish, then removes it.
// b.mu is held until the files are gone so no search reopens a half-deleted index.
func (b *Bleve) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollection(name); err != nil {
		return err
	}
	if err := b.lock.acquire(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.collections[name]
	delete(b.collections, name)
	if c != nil {
		c.wg.Wait()
		if err := c.index.Close(); err != nil {
			log.Printf("Warning: Error closing index %s: %v", name, err)
		}
	}

	path := b.indexPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, ErrCollectionNotFound)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove index %s: %w", name, err)
	}
	if err := os.Remove(b.schemaPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove schema for %s: %w", name, err)
	}
	return nil
}

// collection returns the open collection, opening it from disk on first use.
// Must be called with b.mu held.
func (b *Bleve) collection(name string) (*bleveCollection, error) {
	if c, ok := b.collections[name]; ok {
		return c, nil
	}

	path := b.indexPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("open %s: %w", name, ErrCollectionNotFound)
	}

	var meta storedSchema
	data, err := os.ReadFile(b.schemaPath(name))
	if err == nil {
		err = json.Unmarshal(data, &meta)
	}
	if err != nil || meta.Version != indexing.IndexSchemaVersion {
		return nil, fmt.Errorf("open %s (have v%d, want v%d): %w",
			name, meta.Version, indexing.IndexSchemaVersion, ErrSchemaMismatch)
	}

	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", name, err)
	}
	c := &bleveCollection{index: index}
	b.collections[name] = c
	return c, nil
}

// Upsert indexes records in a single bleve batch
func (b *Bleve) Upsert(ctx context.Context, collection string, records []indexing.IndexRecord) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if err := b.lock.acquire(); err != nil {
		return err
	}

	b.mu.Lock()
	c, err := b.collection(collection)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	c.wg.Add(1)
	b.mu.Unlock()
	defer c.wg.Done()

	batch := c.index.NewBatch()
	for _, rec := range records {
		if err := batch.Index(rec.ID, rec); err != nil {
			return fmt.Errorf("failed to add record %s to batch: %w", rec.ID, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// buildBleveQuery matches the text against each QueryBy field and requires every filter
func buildBleveQuery(q Query) query.Query {
	var text query.Query
	switch {
	case q.Text == "" || q.Text == MatchAll:
		text = bleve.NewMatchAllQuery()
	case len(q.QueryBy) == 0:
		text = bleve.NewMatchQuery(q.Text)
	default:
		disjunction := bleve.NewDisjunctionQuery()
		for _, field := range q.QueryBy {
			match := bleve.NewMatchQuery(q.Text)
			match.SetField(field)
			disjunction.AddQuery(match)
		}
		text = disjunction
	}

	if len(q.Filters) == 0 {
		return text
	}

	names := make([]string, 0, len(q.Filters))
	for name := range q.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	conjunction := bleve.NewConjunctionQuery(text)
	for _, name := range names {
		term := bleve.NewTermQuery(q.Filters[name])
		term.SetField(name)
		conjunction.AddQuery(term)
	}
	return conjunction
}

// Search runs q against the collection
func (b *Bleve) Search(ctx context.Context, collection string, q Query) (*Result, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	b.mu.Lock()
	c, err := b.collection(collection)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	c.wg.Add(1)
	b.mu.Unlock()
	defer c.wg.Done()

	perPage := perPageOrDefault(q)
	req := bleve.NewSearchRequest(buildBleveQuery(q))
	req.Size = perPage
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", "_id"})

	if q.GroupBy == "" {
		searchResults, err := c.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		hits := make([]Hit, 0, len(searchResults.Hits))
		for _, hit := range searchResults.Hits {
			hits = append(hits, bleveHit(hit))
		}
		return &Result{Hits: hits, Found: int(searchResults.Total)}, nil
	}

	// Grouping reads ranked pages until every group is complete
	groups := newGroupCollector(q.GroupBy, q.GroupLimit, perPage)
	req.Size = groupScanSize
	var total uint64
	for {
		searchResults, err := c.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		total = searchResults.Total
		for _, hit := range searchResults.Hits {
			groups.add(bleveHit(hit))
		}
		req.From += len(searchResults.Hits)
		if groups.full() || len(searchResults.Hits) < groupScanSize || uint64(req.From) >= total {
			break
		}
	}

	return &Result{Hits: groups.hits(), Found: int(total)}, nil
}

func bleveHit(hit *search.DocumentMatch) Hit {
	return Hit{
		IndexRecord: recordFromFields(hit.ID, hit.Fields),
		Score:       hit.Score,
	}
}

// Close closes every open index and releases the write lock
func (b *Bleve) Close() error {
	b.mu.Lock()
	collections := b.collections
	b.collections = make(map[string]*bleveCollection)
	b.mu.Unlock()

	var closeErr error
	for name, c := range collections {
		c.wg.Wait()
		if err := c.index.Close(); err != nil {
			log.Printf("Error closing index %s: %v", name, err)
			if closeErr == nil {
				closeErr = err
			}
		}
	}

	if err := b.lock.release(); err != nil {
		log.Printf("Error releasing lock: %v", err)
		if closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}
