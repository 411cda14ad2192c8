// =============================================================================
// SIRENE Loader - Update Command
// =============================================================================
//
// This file defines the 'update' command, which applies the daily SIRENE
// update files to the index.
//
// COMMAND USAGE:
//   splashes update PATH [flags]
//
// UPDATE CODES (VMAJ column):
//   | Code | Meaning                               | Action                  |
//   |------|---------------------------------------|-------------------------|
//   | C    | Creation                              | upsert                  |
//   | I    | State before a modification           | upsert, DATEMAJ - 1 day |
//   | F    | State after a modification            | upsert                  |
//   | E    | Deletion                              | per --deletions         |
//   | D    | Became commercially diffusible        | upsert                  |
//   | O    | Stopped being commercially diffusible | upsert                  |
//   | *    | Anything else                         | skipped                 |
//
// DELETION POLICIES:
//   count  : Count the row and upsert it like any other (default)
//   delete : Remove the establishment from the index
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/splashes/splashes/internal/config"
)

var updateFlags batchFlags

// updateCmd represents the 'update' command.
var updateCmd = &cobra.Command{
	Use:   "update PATH",
	Short: "Apply a SIRENE daily update file or directory to the index",
	Long: `The update command reads SIRENE daily update files and classifies every row
by its VMAJ code before writing it to the index. Rows with an unknown code are
skipped and logged as errors.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args[0], &updateFlags, true)
	},
}

// init registers the update command with the root command and sets up flags.
func init() {
	rootCmd.AddCommand(updateCmd)
	addBatchFlags(updateCmd, &updateFlags)

	updateCmd.Flags().StringVar(
		&updateFlags.deletions,
		"deletions",
		config.DeletionsCount,
		"Deletion policy: count or delete",
	)
}
