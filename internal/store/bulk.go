// =============================================================================
// SIRENE Loader - Bulk Store
// =============================================================================
//
// Bulk routes writes through esutil.BulkIndexer, which batches them into
// _bulk requests flushed by size or interval. Reads go straight to the
// index through the embedded Elastic store and may not see unflushed writes.
//
// Per-item failures are logged as they come back and counted; Close flushes
// the indexer, logs the indexing rate and fails if any item was rejected.
//
// =============================================================================

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/splashes/splashes/internal/company"
)

// BulkConfig configures the bulk indexer.
type BulkConfig struct {
	// FlushBytes is the flush threshold in bytes.
	FlushBytes int

	// FlushInterval is the periodic flush interval.
	FlushInterval time.Duration

	// Workers is the number of indexer goroutines. Zero uses the CPU count.
	Workers int
}

// Bulk is a Store whose writes are batched.
type Bulk struct {
	*Elastic

	indexer esutil.BulkIndexer
	start   time.Time

	// missing counts deletions of documents that were not in the index.
	missing atomic.Uint64
}

// NewBulk wraps e with a bulk indexer writing to the same index.
func NewBulk(e *Elastic, cfg BulkConfig) (*Bulk, error) {
	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         e.index,
		Client:        e.client,
		NumWorkers:    cfg.Workers,
		FlushBytes:    cfg.FlushBytes,
		FlushInterval: cfg.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			e.log.Error("bulk request failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating the indexer: %w", err)
	}

	return &Bulk{
		Elastic: e,
		indexer: indexer,
		start:   time.Now(),
	}, nil
}

// Upsert queues an index action for rec.
func (b *Bulk) Upsert(ctx context.Context, id string, rec *company.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot encode company %s: %w", id, err)
	}

	return b.add(ctx, esutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: id,
		Body:       bytes.NewReader(data),
	})
}

// Delete queues a delete action. A missing document is not reported as an
// error since the outcome is only known after the flush.
func (b *Bulk) Delete(ctx context.Context, id string) error {
	return b.add(ctx, esutil.BulkIndexerItem{
		Action:     "delete",
		DocumentID: id,
	})
}

func (b *Bulk) add(ctx context.Context, item esutil.BulkIndexerItem) error {
	item.OnFailure = func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
		switch {
		case err != nil:
			b.log.Error("bulk item failed", "action", item.Action, "siret", item.DocumentID, "error", err)
		case item.Action == "delete" && res.Status == http.StatusNotFound:
			b.missing.Add(1)
			b.log.Debug("deleted document was not indexed", "siret", item.DocumentID)
		default:
			b.log.Error("bulk item failed", "action", item.Action, "siret", item.DocumentID,
				"type", res.Error.Type, "reason", res.Error.Reason)
		}
	}

	if err := b.indexer.Add(ctx, item); err != nil {
		return fmt.Errorf("queueing %s %s: %w", item.Action, item.DocumentID, err)
	}
	return nil
}

// Stats returns the indexer statistics.
func (b *Bulk) Stats() esutil.BulkIndexerStats {
	return b.indexer.Stats()
}

// Close flushes pending items and reports the results.
//
// RETURNS:
//   - An error if the flush fails or any item was rejected by the cluster.
func (b *Bulk) Close(ctx context.Context) error {
	if err := b.indexer.Close(ctx); err != nil {
		return fmt.Errorf("closing bulk indexer: %w", err)
	}

	stats := b.indexer.Stats()
	dur := time.Since(b.start)
	failed := int64(stats.NumFailed) - int64(b.missing.Load())

	attrs := []any{
		"flushed", humanize.Comma(int64(stats.NumFlushed)),
		"requests", humanize.Comma(int64(stats.NumRequests)),
		"duration", dur.Truncate(time.Millisecond),
		"rate", humanize.Comma(docsPerSecond(stats.NumFlushed, dur)) + " docs/sec",
	}
	if failed > 0 {
		b.log.Error("bulk indexing finished with errors", append(attrs, "failed", humanize.Comma(failed))...)
		return fmt.Errorf("%s documents failed to index", humanize.Comma(failed))
	}

	b.log.Info("bulk indexing finished", attrs...)
	return nil
}

func docsPerSecond(n uint64, dur time.Duration) int64 {
	if dur <= 0 {
		return 0
	}
	return int64(float64(n) / dur.Seconds())
}

var (
	_ Store = (*Elastic)(nil)
	_ Store = (*Bulk)(nil)
)
