package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krakend/docsite-search/internal/config"
	"github.com/krakend/docsite-search/internal/content"
	"github.com/krakend/docsite-search/internal/indexing"
	"github.com/krakend/docsite-search/internal/searchsvc"
)

const (
	exitFailure = 1
	exitPartial = 2
)

func main() {
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Configuration error: %v", err)
		os.Exit(exitFailure)
	}

	// Flags override the environment
	flag.StringVar(&cfg.ContentDir, "content", cfg.ContentDir, "content root holding one directory per section")
	flag.StringVar(&cfg.Collection, "collection", cfg.Collection, "collection to rebuild")
	backend := flag.String("backend", string(cfg.Backend), "search backend: bleve, sqlite or elasticsearch")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory for the bleve and sqlite backends")
	batchSize := flag.Int("batch-size", indexing.DefaultBatchSize, "records per upsert batch")
	flag.IntVar(&cfg.Retries, "retries", cfg.Retries, "retries per failed service call")
	flag.Parse()
	cfg.Backend = searchsvc.Backend(*backend)

	if err := cfg.Validate(); err != nil {
		log.Printf("Configuration error: %v", err)
		os.Exit(exitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, *batchSize))
}

func run(ctx context.Context, cfg *config.Config, batchSize int) int {
	log.Printf("Documentation Indexer (schema v%d)", indexing.IndexSchemaVersion)
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	// Step 1: Load content
	log.Printf("Loading content: %s", cfg.ContentDir)
	registry, err := content.LoadRegistry(os.DirFS(cfg.ContentDir), content.DefaultSections)
	if err != nil {
		log.Printf("Failed to load content: %v", err)
		return exitFailure
	}

	// Step 2: Flatten pages into records
	pages := registry.SourcePages()
	records, err := indexing.FlattenPages(pages)
	if err != nil {
		log.Printf("Failed to flatten pages: %v", err)
		return exitFailure
	}
	log.Printf("✓ Flattened %d pages into %d records", len(pages), len(records))

	// Step 3: Rebuild the collection
	service, err := cfg.OpenService()
	if err != nil {
		log.Printf("Failed to open %s search service: %v", cfg.Backend, err)
		return exitFailure
	}
	defer service.Close()

	result, err := indexing.Sync(ctx, service, indexing.SyncOptions{
		Collection: cfg.Collection,
		Records:    records,
		BatchSize:  batchSize,
	})
	var partial *indexing.PartialSyncError
	switch {
	case errors.As(err, &partial):
		log.Printf("Warning: %v", err)
		log.Printf("Published %d/%d records; re-run the indexer to retry", result.Published, result.Records)
		return exitPartial
	case err != nil:
		log.Printf("Sync failed: %v", err)
		return exitFailure
	}

	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("✓ Indexing complete!")
	log.Printf("")
	log.Printf("Index details:")
	log.Printf("  Backend:    %s", cfg.Backend)
	log.Printf("  Collection: %s", result.Collection)
	log.Printf("  Records:    %d in %d batches", result.Published, result.Batches)
	log.Printf("  Duration:   %v", result.Duration.Round(time.Millisecond))
	return 0
}
