package indexing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrCollectionNotFound is returned by a Publisher deleting a collection that does not exist
var ErrCollectionNotFound = errors.New("collection not found")

// Publisher is the write side of a search service
type Publisher interface {
	DeleteCollection(ctx context.Context, name string) error
	CreateCollection(ctx context.Context, schema Schema) error
	Upsert(ctx context.Context, collection string, records []IndexRecord) error
}

// SyncOptions configures a full collection replacement
type SyncOptions struct {
	Collection string
	Records    []IndexRecord
	BatchSize  int // Defaults to DefaultBatchSize
}

// BatchError records one failed upsert batch; records [Start, End) were not published
type BatchError struct {
	Batch int
	Start int
	End   int
	Err   error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("batch %d (records %d-%d): %v", e.Batch, e.Start, e.End-1, e.Err)
}

func (e BatchError) Unwrap() error {
	return e.Err
}

// PartialSyncError is returned when the collection was recreated but some batches failed.
// Batches not listed were published; re-running the whole sync is always safe.
type PartialSyncError struct {
	Collection string
	Failed     []BatchError
}

func (e *PartialSyncError) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, b := range e.Failed {
		msgs = append(msgs, b.Error())
	}
	return fmt.Sprintf("sync %s: %d batch(es) failed: %s", e.Collection, len(e.Failed), strings.Join(msgs, "; "))
}

func (e *PartialSyncError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, b := range e.Failed {
		errs = append(errs, b)
	}
	return errs
}

// SyncResult summarizes a sync run
type SyncResult struct {
	Collection string
	Records    int
	Batches    int
	Published  int
	Failed     []BatchError
	Duration   time.Duration
}

// Sync drops and recreates the collection with DocsSchema, then upserts all
// records in sequential batches. Collection errors abort the run; batch
// errors are collected and returned as a *PartialSyncError.
func Sync(ctx context.Context, pub Publisher, opts SyncOptions) (*SyncResult, error) {
	startTime := time.Now()

	if opts.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if err := pub.DeleteCollection(ctx, opts.Collection); err != nil && !errors.Is(err, ErrCollectionNotFound) {
		return nil, fmt.Errorf("failed to delete collection %s: %w", opts.Collection, err)
	}
	if err := pub.CreateCollection(ctx, DocsSchema(opts.Collection)); err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", opts.Collection, err)
	}
	log.Printf("✓ Collection %s recreated", opts.Collection)

	result := &SyncResult{
		Collection: opts.Collection,
		Records:    len(opts.Records),
	}

	for start := 0; start < len(opts.Records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("sync %s interrupted: %w", opts.Collection, err)
		}

		end := min(start+batchSize, len(opts.Records))
		batch := result.Batches
		result.Batches++

		if err := pub.Upsert(ctx, opts.Collection, opts.Records[start:end]); err != nil {
			log.Printf("Warning: batch %d failed: %v", batch, err)
			result.Failed = append(result.Failed, BatchError{Batch: batch, Start: start, End: end, Err: err})
			continue
		}
		result.Published += end - start
		log.Printf("  Published %d/%d records...", end, len(opts.Records))
	}

	result.Duration = time.Since(startTime)

	if len(result.Failed) > 0 {
		return result, &PartialSyncError{Collection: opts.Collection, Failed: result.Failed}
	}
	return result, nil
}
