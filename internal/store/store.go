// =============================================================================
// SIRENE Loader - Document Store
// =============================================================================
//
// This package hides the search engine behind a small interface so that the
// batch processor never talks to Elasticsearch directly.
//
// IMPLEMENTATIONS:
//   - Elastic: one request per operation, used by updates and the shell
//   - Bulk:    Elastic with writes funnelled through esutil.BulkIndexer
//   - Memory:  an in-process map, used by --dry-run and tests
//
// Every write is keyed by SIRET and replaces the whole document, so writes
// are idempotent and the last one observed by the store wins.
//
// =============================================================================

package store

import (
	"context"
	"errors"

	"github.com/splashes/splashes/internal/company"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is the document store used by the loader, the shell and denormalize.
type Store interface {
	// Upsert creates or replaces the document identified by id.
	Upsert(ctx context.Context, id string, rec *company.Record) error

	// Get returns the document identified by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*company.Record, error)

	// Search returns at most size documents matching a free-text query.
	// An empty query matches every document.
	Search(ctx context.Context, query string, size int) ([]company.Record, error)

	// Delete removes the document identified by id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// UpdateByQuery runs a denormalization pass over the whole index.
	UpdateByQuery(ctx context.Context, d Denormalization) (*UpdateByQueryResult, error)

	// Count returns the number of documents in the index.
	Count(ctx context.Context) (int64, error)

	// Close flushes pending writes and releases resources.
	Close(ctx context.Context) error
}

// =============================================================================
// DENORMALIZATION
// =============================================================================

// Denormalization rewrites Target from Source through a lookup table, e.g.
// filling ape_label from ape with the INSEE nomenclature.
type Denormalization struct {
	// Source is the top-level document field read as the lookup key.
	Source string

	// Target is the top-level document field written with the looked-up value.
	Target string

	// Lookup maps source values to target values. Documents whose source
	// value is absent from the table are left untouched.
	Lookup map[string]string

	// OnlyMissing restricts the pass to documents without a Target value.
	OnlyMissing bool
}

// Validate checks that the denormalization can run.
func (d Denormalization) Validate() error {
	if d.Source == "" || d.Target == "" {
		return errors.New("source and target fields are required")
	}
	if d.Source == d.Target {
		return errors.New("source and target fields must differ")
	}
	if len(d.Lookup) == 0 {
		return errors.New("lookup table is empty")
	}
	return nil
}

// Failure is a per-document failure reported by an update-by-query pass.
type Failure struct {
	ID     string
	Reason string
}

// UpdateByQueryResult summarizes an update-by-query pass.
type UpdateByQueryResult struct {
	// Total is the number of documents matched by the query.
	Total int64

	// Updated is the number of documents rewritten.
	Updated int64

	// Noops is the number of matched documents left untouched.
	Noops int64

	// Failures lists the documents that could not be rewritten.
	Failures []Failure
}
