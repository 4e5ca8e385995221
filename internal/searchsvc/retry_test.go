package searchsvc_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/krakend/docsite-search/internal/indexing"
	"github.com/krakend/docsite-search/internal/searchsvc"
)

// flakyService fails the first failures calls to Upsert and Search
type flakyService struct {
	searchsvc.Service
	failures int
	err      error
	calls    int
}

func (f *flakyService) Upsert(ctx context.Context, collection string, records []indexing.IndexRecord) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyService) Search(ctx context.Context, collection string, q searchsvc.Query) (*searchsvc.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &searchsvc.Result{Hits: []searchsvc.Hit{}, Found: 7}, nil
}

var fastPolicy = searchsvc.RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func TestRetrying(t *testing.T) {
	transient := errors.New("connection reset")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "succeeds first try", failures: 0, err: transient, wantCalls: 1},
		{name: "recovers from transient errors", failures: 2, err: transient, wantCalls: 3},
		{name: "gives up after max retries", failures: 10, err: transient, wantCalls: 4, wantErr: true},
		{name: "missing collection is permanent", failures: 10, err: fmt.Errorf("search: %w", searchsvc.ErrCollectionNotFound), wantCalls: 1, wantErr: true},
		{name: "invalid collection is permanent", failures: 10, err: searchsvc.ErrInvalidCollection, wantCalls: 1, wantErr: true},
		{name: "invalid query is permanent", failures: 10, err: fmt.Errorf("%w: unsupported sort", searchsvc.ErrInvalidQuery), wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaky := &flakyService{failures: tt.failures, err: tt.err}
			svc := searchsvc.NewRetrying(flaky, fastPolicy)

			result, err := svc.Search(context.Background(), "docs", searchsvc.Query{Text: "x"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Search() error = %v, wantErr %v", err, tt.wantErr)
			}
			if flaky.calls != tt.wantCalls {
				t.Errorf("Search() calls = %d, want %d", flaky.calls, tt.wantCalls)
			}
			if !tt.wantErr && result.Found != 7 {
				t.Errorf("Search() result not passed through: %+v", result)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("Search() error = %v, want wrapping %v", err, tt.err)
			}
		})
	}
}

func TestRetryingUpsert(t *testing.T) {
	flaky := &flakyService{failures: 1, err: errors.New("timeout")}
	svc := searchsvc.NewRetrying(flaky, fastPolicy)

	if err := svc.Upsert(context.Background(), "docs", nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if flaky.calls != 2 {
		t.Errorf("Upsert() calls = %d, want 2", flaky.calls)
	}
}

func TestRetryingDoesNotRetryRejectedQueries(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			svc := searchsvc.NewRetrying(seeded(t, factory), searchsvc.RetryPolicy{
				MaxRetries:      3,
				InitialInterval: time.Second,
				MaxInterval:     time.Second,
			})

			start := time.Now()
			_, err := svc.Search(context.Background(), "docs", searchsvc.Query{Text: "x", SortBy: "title:asc"})
			if !errors.Is(err, searchsvc.ErrInvalidQuery) {
				t.Fatalf("Search() error = %v, want ErrInvalidQuery", err)
			}
			if elapsed := time.Since(start); elapsed >= time.Second {
				t.Errorf("Search() took %v, rejected query was retried", elapsed)
			}
		})
	}
}

func TestRetryingDisabled(t *testing.T) {
	flaky := &flakyService{failures: 1, err: errors.New("timeout")}
	svc := searchsvc.NewRetrying(flaky, searchsvc.RetryPolicy{})

	if err := svc.Upsert(context.Background(), "docs", nil); err == nil {
		t.Fatal("Upsert() should fail without retries")
	}
	if flaky.calls != 1 {
		t.Errorf("Upsert() calls = %d, want 1", flaky.calls)
	}
}
