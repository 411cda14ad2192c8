// =============================================================================
// SIRENE Loader - Load Command
// =============================================================================
//
// This file defines the 'load' command, which indexes a SIRENE stock file or
// every CSV file of a directory.
//
// COMMAND USAGE:
//   splashes load PATH [flags]
//
// FLAGS:
//   -l, --lines     : Stop after row N of each file (rows 0..N are read)
//   -p, --progress  : Log a progress line every N rows
//   -g, --geo       : Read the geocoded variant (UTF-8, ',')
//   -w, --workers   : Number of concurrent persist workers
//   --dry-run       : Keep documents in memory instead of Elasticsearch
//
// PROCESSING PIPELINE:
//   1. Connect to Elasticsearch and create the index when missing
//   2. Stream every row of every file
//   3. Normalize each row into a company document
//   4. Upsert the document, keyed by SIRET
//   5. Print the summary
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/splashes/splashes/internal/config"
	"github.com/splashes/splashes/internal/csvparser"
	"github.com/splashes/splashes/internal/loader"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// batchFlags holds the flags shared by 'load' and 'update'.
type batchFlags struct {
	lines     int
	progress  int
	workers   int
	geo       bool
	deletions string
	dryRun    bool
}

var loadFlags batchFlags

// =============================================================================
// LOAD COMMAND DEFINITION
// =============================================================================

// loadCmd represents the 'load' command.
var loadCmd = &cobra.Command{
	Use:   "load PATH",
	Short: "Load a SIRENE stock file or directory into the index",
	Long: `The load command reads a SIRENE CSV file, or every *.csv file of a directory
in name order, and upserts one document per establishment.

The stock files published by INSEE are Windows-1252 encoded and ';' separated.
Use --geo for the geocoded files, which are UTF-8 and ',' separated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args[0], &loadFlags, false)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the load command with the root command and sets up flags.
func init() {
	rootCmd.AddCommand(loadCmd)
	addBatchFlags(loadCmd, &loadFlags)

	loadCmd.Flags().BoolVarP(
		&loadFlags.geo,
		"geo",
		"g",
		false,
		"Read geocoded files (UTF-8, ',' separated)",
	)
}

// addBatchFlags declares the flags shared by 'load' and 'update'.
func addBatchFlags(cmd *cobra.Command, f *batchFlags) {
	cmd.Flags().IntVarP(&f.lines, "lines", "l", 0, "Stop after row N of each file (0 reads everything)")
	cmd.Flags().IntVarP(&f.progress, "progress", "p", 0, "Log a progress line every N rows (0 disables it)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Number of concurrent persist workers")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Keep documents in memory instead of Elasticsearch")
}

// =============================================================================
// BATCH EXECUTION
// =============================================================================

// options merges the command flags over the loader configuration.
func (f *batchFlags) options(cmd *cobra.Command) loader.Options {
	opts := loader.Options{
		Lines:     cfg.Loader.Lines,
		Progress:  cfg.Loader.Progress,
		Workers:   cfg.Loader.Workers,
		Deletions: cfg.Loader.Deletions,
		Variant:   csvparser.VariantFor(f.geo),
	}

	flags := cmd.Flags()
	if flags.Changed("lines") {
		opts.Lines = f.lines
	}
	if flags.Changed("progress") {
		opts.Progress = f.progress
	}
	if flags.Changed("workers") {
		opts.Workers = f.workers
	}
	if flags.Changed("deletions") {
		opts.Deletions = f.deletions
	}
	return opts
}

// runBatch runs a load or update pass over path.
//
// PARAMETERS:
//   - cmd: The running command, for its context, flags and output.
//   - path: A CSV file or a directory.
//   - f: The parsed command flags.
//   - updates: Classify rows by VMAJ code (update pass).
//
// RETURNS:
//   - An error if the run failed or was interrupted. The summary of the
//     work done is printed either way.
func runBatch(cmd *cobra.Command, path string, f *batchFlags, updates bool) error {
	ctx := cmd.Context()
	opts := f.options(cmd)

	if opts.Lines < 0 || opts.Progress < 0 {
		return fmt.Errorf("--lines and --progress must be >= 0")
	}
	switch opts.Deletions {
	case config.DeletionsCount, config.DeletionsDelete:
	default:
		return fmt.Errorf("--deletions must be %q or %q, got %q", config.DeletionsCount, config.DeletionsDelete, opts.Deletions)
	}

	s, err := openStore(ctx, f.dryRun, true)
	if err != nil {
		return err
	}

	p := loader.New(s, logger, nil)
	var summary loader.Summary
	if updates {
		summary, err = p.ApplyUpdates(ctx, path, opts)
	} else {
		summary, err = p.LoadStock(ctx, path, opts)
	}

	if closeErr := closeStore(s); err == nil {
		err = closeErr
	}

	printSummary(cmd.OutOrStdout(), summary, updates)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✔ Done")
	return nil
}

// printSummary writes the run summary to w.
func printSummary(w io.Writer, s loader.Summary, updates bool) {
	c := s.Counters
	line := func(label string, n int) {
		fmt.Fprintf(w, "%-16s %s\n", label+":", humanize.Comma(int64(n)))
	}

	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "%-16s %s\n", "Run:", s.RunID)
	line("Files", len(s.Files))
	line("Rows", c.Total)
	if updates {
		line("Creations", c.Creations)
		line("Modifications", c.Modifications)
		line("Deletions", c.Deletions)
		line("Commercial", c.Commercial)
		line("Not commercial", c.NotCommercial)
		line("Skipped", c.Skipped)
	}
	line("Persisted", c.Persisted)
	line("Rejected", c.Rejected)
	fmt.Fprintf(w, "%-16s %s\n", "Time elapsed:", s.Duration.Truncate(time.Millisecond))
}
