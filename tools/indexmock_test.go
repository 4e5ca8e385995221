package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/krakend/docsite-search/internal/indexing"
	"github.com/krakend/docsite-search/internal/searchsvc"
)

// mockService is a simple in-memory mock of searchsvc.Service for testing
type mockService struct {
	mu          sync.Mutex
	collections map[string][]indexing.IndexRecord
	hits        []searchsvc.Hit
	searchError error
	failBatch   int // Upsert call number (from 1) that fails, 0 for none
	upserts     int
	syncs       int
	closed      bool
}

func newMockService() *mockService {
	return &mockService{collections: make(map[string][]indexing.IndexRecord)}
}

func (m *mockService) CreateCollection(ctx context.Context, schema indexing.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[schema.Name]; ok {
		return searchsvc.ErrCollectionExists
	}
	m.collections[schema.Name] = nil
	m.syncs++
	return nil
}

func (m *mockService) DeleteCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return searchsvc.ErrCollectionNotFound
	}
	delete(m.collections, name)
	return nil
}

func (m *mockService) Upsert(ctx context.Context, collection string, records []indexing.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upserts == m.failBatch {
		return fmt.Errorf("upsert rejected")
	}
	m.collections[collection] = append(m.collections[collection], records...)
	return nil
}

func (m *mockService) Search(ctx context.Context, collection string, q searchsvc.Query) (*searchsvc.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("service closed")
	}
	if m.searchError != nil {
		return nil, m.searchError
	}
	return &searchsvc.Result{Hits: m.hits, Found: len(m.hits)}, nil
}

func (m *mockService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("already closed")
	}
	m.closed = true
	return nil
}

func (m *mockService) records(collection string) []indexing.IndexRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collections[collection]
}
