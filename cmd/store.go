package cmd

import (
	"context"
	"fmt"

	"github.com/splashes/splashes/internal/store"
)

// openStore connects to the configured document store.
//
// A dry run keeps documents in memory and never contacts Elasticsearch.
// Otherwise the index is created when missing, and bulk wraps the store in a
// bulk indexer if the configuration enables it.
func openStore(ctx context.Context, dryRun, bulk bool) (store.Store, error) {
	if dryRun {
		logger.Info("dry run, documents are kept in memory")
		return store.NewMemory(), nil
	}

	client, err := store.NewClient(store.ClientConfig{
		URL:        cfg.Elasticsearch.URL,
		MaxRetries: cfg.Elasticsearch.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	es := store.NewElastic(client, cfg.Elasticsearch.Index, logger)
	created, err := es.EnsureIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot prepare index %s: %w", es.Index(), err)
	}
	if created {
		logger.Info("index created", "index", es.Index())
	}

	if !bulk || !cfg.Elasticsearch.Bulk {
		return es, nil
	}
	b, err := store.NewBulk(es, store.BulkConfig{
		FlushBytes:    cfg.Elasticsearch.FlushBytes,
		FlushInterval: cfg.Elasticsearch.FlushInterval,
		Workers:       cfg.Loader.Workers,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// closeStore flushes and releases s. It ignores the command context so that
// an interrupted run still flushes what it queued.
func closeStore(s store.Store) error {
	if err := s.Close(context.Background()); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
