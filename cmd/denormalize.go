// =============================================================================
// SIRENE Loader - Denormalize Command
// =============================================================================
//
// This file defines the 'denormalize' command, which copies values looked up
// in a reference table into every indexed document.
//
// COMMAND USAGE:
//   splashes denormalize TABLE --source FIELD --target FIELD [flags]
//
// EXAMPLE:
//   Fill the APE label of every establishment from the INSEE nomenclature:
//     splashes denormalize naf_rev2.xlsx --source ape --target ape_label --only-missing
//
// FLAGS:
//   --source        : Document field holding the lookup key
//   --target        : Document field receiving the looked-up value
//   --only-missing  : Skip documents whose target is already set
//   --sheet         : XLSX sheet holding the table (default: first sheet)
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/splashes/splashes/internal/lookup"
	"github.com/splashes/splashes/internal/store"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	denormSource      string
	denormTarget      string
	denormOnlyMissing bool
	denormSheet       string
)

// denormalizeCmd represents the 'denormalize' command.
var denormalizeCmd = &cobra.Command{
	Use:   "denormalize TABLE",
	Short: "Fill a document field from a lookup table",
	Long: `The denormalize command reads a two-column lookup table (.xlsx, .yaml or
.csv) and rewrites the target field of every document from the value its
source field maps to. Documents whose source value is not in the table are
left unchanged.

Per-document failures are logged and make the command exit with an error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDenormalize(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(denormalizeCmd)

	denormalizeCmd.Flags().StringVar(&denormSource, "source", "", "Document field holding the lookup key")
	denormalizeCmd.Flags().StringVar(&denormTarget, "target", "", "Document field receiving the looked-up value")
	denormalizeCmd.Flags().BoolVar(&denormOnlyMissing, "only-missing", false, "Skip documents whose target field is set")
	denormalizeCmd.Flags().StringVar(&denormSheet, "sheet", "", "XLSX sheet holding the table")

	denormalizeCmd.MarkFlagRequired("source")
	denormalizeCmd.MarkFlagRequired("target")
}

// =============================================================================
// DENORMALIZATION
// =============================================================================

// runDenormalize loads the table and runs the update-by-query pass.
//
// PARAMETERS:
//   - cmd: The running command.
//   - tablePath: The lookup table file.
//
// RETURNS:
//   - An error if the table or the request is invalid, the store fails, or
//     any document could not be updated.
func runDenormalize(cmd *cobra.Command, tablePath string) error {
	ctx := cmd.Context()

	opts := lookup.DefaultOptions()
	opts.Sheet = denormSheet
	table, err := lookup.LoadWithOptions(tablePath, opts)
	if err != nil {
		return err
	}
	logger.Info("lookup table loaded", "path", tablePath, "entries", humanize.Comma(int64(len(table))))

	d := store.Denormalization{
		Source:      denormSource,
		Target:      denormTarget,
		Lookup:      table,
		OnlyMissing: denormOnlyMissing,
	}
	if err := d.Validate(); err != nil {
		return err
	}

	s, err := openStore(ctx, false, false)
	if err != nil {
		return err
	}
	defer closeStore(s)

	return denormalize(cmd, s, d)
}

// denormalize runs d against s and reports the outcome.
func denormalize(cmd *cobra.Command, s store.Store, d store.Denormalization) error {
	res, err := s.UpdateByQuery(cmd.Context(), d)
	if err != nil {
		return err
	}

	for _, f := range res.Failures {
		logger.Error("document not denormalized", "id", f.ID, "reason", f.Reason)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %s\n", "Matched:", humanize.Comma(res.Total))
	fmt.Fprintf(out, "%-10s %s\n", "Updated:", humanize.Comma(res.Updated))
	fmt.Fprintf(out, "%-10s %s\n", "Noops:", humanize.Comma(res.Noops))
	fmt.Fprintf(out, "%-10s %d\n", "Failures:", len(res.Failures))

	if len(res.Failures) > 0 {
		return fmt.Errorf("%d document(s) could not be denormalized", len(res.Failures))
	}
	return nil
}
