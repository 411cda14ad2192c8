// =============================================================================
// SIRENE Loader - Batch Processor
// =============================================================================
//
// This module drives ingestion over one CSV file or a directory of them.
//
// PROCESSING PIPELINE (per file):
//   1. Stream rows with the variant picked by the caller (stock or geo)
//   2. Classify the row by its VMAJ code (update passes only)
//   3. Apply the per-kind transform (I rows get DATEMAJ minus one day)
//   4. Normalize the row into a company record
//   5. Hand the record to a persist worker (upsert, or delete for E rows
//      under the "delete" policy)
//
// CONCURRENCY:
//   Rows are read, classified and counted on the calling goroutine. Only the
//   persisted counter is updated by the workers, once the store accepted the
//   write. Persist calls fan out to an errgroup bounded by
//   Options.Workers. Writes are keyed by SIRET and replace the whole
//   document, so their order does not matter. The first store error cancels
//   the run.
//
// CANCELLATION:
//   Cancelling the context stops row iteration. The counters of the work
//   completed so far are logged and returned along with ctx.Err().
//
// =============================================================================

package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/splashes/splashes/internal/company"
	"github.com/splashes/splashes/internal/config"
	"github.com/splashes/splashes/internal/csvparser"
	"github.com/splashes/splashes/internal/store"
	"github.com/splashes/splashes/pkg/utils"
)

// =============================================================================
// OPTIONS AND RESULTS
// =============================================================================

// Options controls a load or update pass.
type Options struct {
	// Lines caps the rows read per file. Rows are numbered from 0 and reading
	// stops once the row number exceeds Lines, so Lines+1 rows are read.
	// 0 means no cap.
	Lines int

	// Progress logs an info line every Progress rows. 0 disables it.
	Progress int

	// Variant is the encoding/delimiter pair of the input files.
	Variant csvparser.Variant

	// Workers bounds the concurrent persist calls. Values below 1 mean 1.
	Workers int

	// Deletions is the deletion policy, config.DeletionsCount or
	// config.DeletionsDelete. Only update passes read it.
	Deletions string
}

// FileResult holds the outcome of one file.
type FileResult struct {
	Path     string
	Counters Counters
	Duration time.Duration
}

// Summary holds the outcome of a run.
type Summary struct {
	// RunID tags every log line of the run.
	RunID string

	// Files lists the processed files in processing order.
	Files []FileResult

	// Counters is the sum of the file counters.
	Counters Counters

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor loads SIRENE files into a Store.
type Processor struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

// New creates a processor writing to s. A nil now uses time.Now.
func New(s store.Store, logger *slog.Logger, now func() time.Time) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Processor{store: s, log: logger, now: now}
}

// LoadStock upserts every row of the stock file(s) at path.
//
// PARAMETERS:
//   - ctx: Cancels the run.
//   - path: A CSV file or a directory whose *.csv files are loaded in name order.
//   - opts: Row cap, progress interval, variant and worker count.
//
// RETURNS:
//   - The run summary, partial if an error occurred.
//   - An error if a file cannot be read, the store fails or ctx is cancelled.
func (p *Processor) LoadStock(ctx context.Context, path string, opts Options) (Summary, error) {
	return p.run(ctx, path, opts, false)
}

// ApplyUpdates classifies and persists every row of the daily update file(s)
// at path. See LoadStock for the parameters.
func (p *Processor) ApplyUpdates(ctx context.Context, path string, opts Options) (Summary, error) {
	return p.run(ctx, path, opts, true)
}

// run processes every file designated by path.
func (p *Processor) run(ctx context.Context, path string, opts Options, updates bool) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}

	mode := "load"
	if updates {
		mode = "update"
	}
	log := p.log.With("run", summary.RunID, "mode", mode)

	files, err := utils.ResolveInputFiles(path)
	if err != nil {
		return summary, err
	}
	log.Info("loading data", "path", path, "files", len(files))

	var runErr error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		result, err := p.processFile(ctx, log, file, opts, updates)
		summary.Files = append(summary.Files, result)
		summary.Counters.Merge(result.Counters)
		if err != nil {
			runErr = fmt.Errorf("%s: %w", filepath.Base(file), err)
			break
		}
	}

	summary.Duration = time.Since(start)
	attrs := append(summary.attrs(updates), "files", len(summary.Files), "duration", summary.Duration.Truncate(time.Millisecond))
	if runErr != nil {
		log.Warn("run interrupted", append(attrs, "error", runErr)...)
		return summary, runErr
	}
	log.Info("items loaded with success", attrs...)
	return summary, nil
}

func (s Summary) attrs(updates bool) []any {
	if updates {
		return s.Counters.updateAttrs()
	}
	return s.Counters.stockAttrs()
}

// =============================================================================
// FILE PROCESSING
// =============================================================================

// action is what a persist worker does with a record.
type action int

const (
	actionUpsert action = iota
	actionDelete
)

// processFile streams one file into the store.
func (p *Processor) processFile(ctx context.Context, log *slog.Logger, file string, opts Options, updates bool) (FileResult, error) {
	start := time.Now()
	result := FileResult{Path: file}
	log = log.With("file", filepath.Base(file))

	size, _ := utils.GetFileSize(file)
	log.Info("processing file", "variant", opts.Variant.Name, "size", humanize.Bytes(uint64(size)))

	parser, err := csvparser.Open(file, opts.Variant)
	if err != nil {
		return result, err
	}
	defer parser.Close()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	c := &result.Counters
	var persisted atomic.Int64
	for i := 0; parser.Next(); i++ {
		if opts.Lines > 0 && i > opts.Lines {
			break
		}
		if gctx.Err() != nil {
			break
		}
		if i > 0 && opts.Progress > 0 && i%opts.Progress == 0 {
			log.Info("lines loaded", "lines", humanize.Comma(int64(i)))
		}

		c.Total++
		row := company.Row(parser.Row())
		act := actionUpsert

		if updates {
			code := row[company.ColUpdate]
			kind := Classify(code)
			if kind == KindUnsupported {
				c.Skipped++
				log.Error("update type not supported", "code", code, "row", parser.RowNumber())
				continue
			}
			c.count(kind)

			switch kind {
			case KindPriorUpdate:
				// Keeps a synthetic prior-state timestamp for establishments
				// that were never loaded from a stock file.
				prior, err := company.PreviousDay(row[company.ColDateMaj])
				if err != nil {
					log.Warn("cannot shift update date", "value", row[company.ColDateMaj], "row", parser.RowNumber(), "error", err)
				} else {
					row[company.ColDateMaj] = prior
				}
			case KindDeletion:
				if opts.Deletions == config.DeletionsDelete {
					act = actionDelete
				}
			}
		}

		rec, err := company.Normalize(row, p.now(), log)
		if err != nil {
			c.Rejected++
			log.Error("row rejected", "row", parser.RowNumber(), "error", err)
			continue
		}

		g.Go(func() error {
			if err := p.persist(gctx, log, act, rec); err != nil {
				return err
			}
			persisted.Add(1)
			return nil
		})
	}

	err = g.Wait()
	c.Persisted = int(persisted.Load())
	if err == nil {
		err = parser.Err()
	}
	if err == nil {
		err = ctx.Err()
	}
	result.Duration = time.Since(start)

	attrs := append(result.attrs(updates), "duration", result.Duration.Truncate(time.Millisecond))
	if err != nil {
		log.Warn("file interrupted", append(attrs, "error", err)...)
		return result, err
	}
	log.Info("file summary", attrs...)
	return result, nil
}

func (r FileResult) attrs(updates bool) []any {
	if updates {
		return r.Counters.updateAttrs()
	}
	return r.Counters.stockAttrs()
}

// persist applies one action to the store.
func (p *Processor) persist(ctx context.Context, log *slog.Logger, act action, rec *company.Record) error {
	switch act {
	case actionDelete:
		err := p.store.Delete(ctx, rec.ID())
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("deleted establishment was not indexed", "siret", rec.ID())
			return nil
		}
		return err
	default:
		return p.store.Upsert(ctx, rec.ID(), rec)
	}
}
