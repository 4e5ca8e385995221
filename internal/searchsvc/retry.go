package searchsvc

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/krakend/docsite-search/internal/indexing"
)

// RetryPolicy bounds retries of transient service errors
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used by the indexer and servers
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// Retrying retries Upsert and Search on a wrapped Service with exponential backoff.
// Collection lifecycle calls are passed through once.
type Retrying struct {
	Service
	policy RetryPolicy
}

// NewRetrying wraps svc. A zero MaxRetries disables retries.
func NewRetrying(svc Service, policy RetryPolicy) *Retrying {
	return &Retrying{Service: svc, policy: policy}
}

// permanent reports errors a retry cannot fix
func permanent(err error) bool {
	return errors.Is(err, ErrCollectionNotFound) ||
		errors.Is(err, ErrInvalidCollection) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.policy.MaxRetries), ctx),
		func(err error, wait time.Duration) {
			log.Printf("Warning: %s attempt %d failed: %v (retrying in %v)", op, attempt, err, wait)
		})
}

// Upsert retries the wrapped Upsert
func (r *Retrying) Upsert(ctx context.Context, collection string, records []indexing.IndexRecord) error {
	return r.do(ctx, "upsert", func() error {
		return r.Service.Upsert(ctx, collection, records)
	})
}

// Search retries the wrapped Search
func (r *Retrying) Search(ctx context.Context, collection string, q Query) (*Result, error) {
	var result *Result
	err := r.do(ctx, "search", func() error {
		var err error
		result, err = r.Service.Search(ctx, collection, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
