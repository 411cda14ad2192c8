package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/splashes/splashes/internal/config"
)

// withStats adds the document count to the 'info' output.
var withStats bool

// infoCmd prints the effective configuration.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults, config file, environment and
flags have been applied. With --stats, also query the number of indexed
documents.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		printSettings(out, cfg)

		if !withStats {
			return nil
		}

		s, err := openStore(cmd.Context(), false, false)
		if err != nil {
			return err
		}
		defer closeStore(s)

		n, err := s.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-14s %s\n", "documents", humanize.Comma(n))
		return nil
	},
}

// printSettings writes one aligned line per setting.
func printSettings(w io.Writer, c *config.Config) {
	for _, kv := range c.Settings() {
		fmt.Fprintf(w, "%-14s %s\n", kv[0], kv[1])
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&withStats, "stats", false, "Also print the number of indexed documents")
}
