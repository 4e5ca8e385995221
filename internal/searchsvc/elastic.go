package searchsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/krakend/docsite-search/internal/indexing"
)

// Elasticsearch maps collections to elasticsearch indices
type Elasticsearch struct {
	es *elasticsearch.Client

	mu       sync.Mutex
	verified map[string]bool // indices whose mapping version was checked
}

// NewElasticsearch connects to the cluster at address
func NewElasticsearch(address, apiKey string) (*Elasticsearch, error) {
	if address == "" {
		return nil, fmt.Errorf("elasticsearch address is required")
	}
	cfg := elasticsearch.Config{
		Addresses: []string{address},
		APIKey:    apiKey,
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Elasticsearch{es: es, verified: make(map[string]bool)}, nil
}

// indexMapping builds the create-index body for schema
func indexMapping(schema indexing.Schema) map[string]interface{} {
	properties := map[string]interface{}{
		"id": map[string]string{"type": "keyword"},
	}
	for _, field := range schema.Fields {
		if field.Exact || field.Facet {
			properties[field.Name] = map[string]string{"type": "keyword"}
			continue
		}
		properties[field.Name] = map[string]string{"type": "text"}
	}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"_meta":      map[string]int{"version": indexing.IndexSchemaVersion},
			"properties": properties,
		},
	}
}

func responseError(op string, res *esapi.Response) error {
	switch res.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrCollectionNotFound)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidQuery, res.String())
	}
	return fmt.Errorf("%s: %s", op, res.String())
}

type mappingResponse map[string]struct {
	Mappings struct {
		Meta struct {
			Version int `json:"version"`
		} `json:"_meta"`
	} `json:"mappings"`
}

// checkVersion compares the schema version in the index mapping with
// IndexSchemaVersion. The result is remembered until the index is deleted.
func (e *Elasticsearch) checkVersion(ctx context.Context, name string) error {
	e.mu.Lock()
	ok := e.verified[name]
	e.mu.Unlock()
	if ok {
		return nil
	}

	res, err := esapi.IndicesGetMappingRequest{Index: []string{name}}.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("get mapping %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("get mapping "+name, res)
	}

	var parsed mappingResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode mapping %s: %w", name, err)
	}
	version := parsed[name].Mappings.Meta.Version
	if version != indexing.IndexSchemaVersion {
		return fmt.Errorf("open %s (have v%d, want v%d): %w",
			name, version, indexing.IndexSchemaVersion, ErrSchemaMismatch)
	}

	e.mu.Lock()
	e.verified[name] = true
	e.mu.Unlock()
	return nil
}

func (e *Elasticsearch) forget(name string) {
	e.mu.Lock()
	delete(e.verified, name)
	e.mu.Unlock()
}

func (e *Elasticsearch) exists(ctx context.Context, name string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, e.es)
	if err != nil {
		return false, fmt.Errorf("index exists %s: %w", name, err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("index exists %s: %s", name, res.String())
}

// CreateCollection creates an index with keyword mappings for exact fields
func (e *Elasticsearch) CreateCollection(ctx context.Context, schema indexing.Schema) error {
	if err := validateCollection(schema.Name); err != nil {
		return err
	}
	ok, err := e.exists(ctx, schema.Name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("create %s: %w", schema.Name, ErrCollectionExists)
	}

	req := esapi.IndicesCreateRequest{
		Index: schema.Name,
		Body:  esutil.NewJSONReader(indexMapping(schema)),
	}
	res, err := req.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("create index %s: %w", schema.Name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}
	return nil
}

// DeleteCollection deletes the index
func (e *Elasticsearch) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollection(name); err != nil {
		return err
	}
	e.forget(name)
	res, err := esapi.IndicesDeleteRequest{Index: []string{name}}.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("delete "+name, res)
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Upsert sends records as one bulk request and refreshes the index
func (e *Elasticsearch) Upsert(ctx context.Context, collection string, records []indexing.IndexRecord) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	// Bulk would auto-create a missing index with dynamic mappings
	if err := e.checkVersion(ctx, collection); err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	if len(records) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, rec := range records {
		action := map[string]map[string]string{"index": {"_id": rec.ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode action %s: %w", rec.ID, err)
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
	}

	req := esapi.BulkRequest{
		Index:   collection,
		Body:    &body,
		Refresh: "true",
	}
	res, err := req.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("bulk "+collection, res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range parsed.Items {
		for _, r := range item {
			if r.Error == nil {
				continue
			}
			if failed == 0 {
				first = fmt.Sprintf("%s: %s: %s", r.ID, r.Error.Type, r.Error.Reason)
			}
			failed++
		}
	}
	return fmt.Errorf("bulk %s: %d of %d records failed (first %s)", collection, failed, len(records), first)
}

// searchBody builds the query DSL for q
func searchBody(q Query) map[string]interface{} {
	var must interface{}
	if q.Text == "" || q.Text == MatchAll {
		must = map[string]interface{}{"match_all": map[string]interface{}{}}
	} else {
		multi := map[string]interface{}{"query": q.Text}
		if len(q.QueryBy) > 0 {
			multi["fields"] = q.QueryBy
		}
		must = map[string]interface{}{"multi_match": multi}
	}

	names := make([]string, 0, len(q.Filters))
	for name := range q.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	filters := make([]interface{}, 0, len(names))
	for _, name := range names {
		filters = append(filters, map[string]interface{}{
			"term": map[string]string{name: q.Filters[name]},
		})
	}

	perPage := perPageOrDefault(q)
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filters,
			},
		},
		"sort": []interface{}{
			map[string]string{"_score": "desc"},
			map[string]string{"id": "asc"},
		},
		"size": perPage,
	}
	if q.GroupBy != "" {
		if q.GroupLimit <= 1 {
			body["collapse"] = map[string]string{"field": q.GroupBy}
		} else {
			body["size"] = groupScanSize
		}
	}
	return body
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string               `json:"_id"`
			Score  *float64             `json:"_score"`
			Source indexing.IndexRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// maxResultWindow is the default index.max_result_window of elasticsearch
const maxResultWindow = 10000

// Search runs q; single-hit grouping uses field collapsing, larger groups
// are collected from ranked pages
func (e *Elasticsearch) Search(ctx context.Context, collection string, q Query) (*Result, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if err := e.checkVersion(ctx, collection); err != nil {
		return nil, err
	}

	body := searchBody(q)
	if q.GroupBy == "" || q.GroupLimit <= 1 {
		hits, total, err := e.searchPage(ctx, collection, body)
		if err != nil {
			return nil, err
		}
		return &Result{Hits: hits, Found: total}, nil
	}

	groups := newGroupCollector(q.GroupBy, q.GroupLimit, perPageOrDefault(q))
	var total int
	for from := 0; from+groupScanSize <= maxResultWindow; from += groupScanSize {
		body["from"] = from
		hits, found, err := e.searchPage(ctx, collection, body)
		if err != nil {
			return nil, err
		}
		total = found
		for _, hit := range hits {
			groups.add(hit)
		}
		if groups.full() || len(hits) < groupScanSize || from+len(hits) >= total {
			break
		}
	}
	return &Result{Hits: groups.hits(), Found: total}, nil
}

// searchPage runs one search request and returns its hits and total
func (e *Elasticsearch) searchPage(ctx context.Context, collection string, body map[string]interface{}) ([]Hit, int, error) {
	req := esapi.SearchRequest{
		Index: []string{collection},
		Body:  esutil.NewJSONReader(body),
	}
	res, err := req.Do(ctx, e.es)
	if err != nil {
		return nil, 0, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, responseError("search "+collection, res)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read search response: %w", err)
	}
	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		rec := h.Source
		if rec.ID == "" {
			rec.ID = h.ID
		}
		hit := Hit{IndexRecord: rec}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		hits = append(hits, hit)
	}
	return hits, parsed.Hits.Total.Value, nil
}

// Close is a no-op; the client holds no resources
func (e *Elasticsearch) Close() error {
	return nil
}
