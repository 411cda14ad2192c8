// =============================================================================
// SIRENE Loader - Shell Command
// =============================================================================
//
// This file defines the 'shell' command, a small prompt for inspecting the
// index after a load.
//
// SHELL COMMANDS:
//   get SIRET     : Print the document of an establishment
//   search TEXT   : List the establishments matching TEXT
//   count         : Print the number of indexed documents
//   help          : List the commands
//   quit, exit    : Leave the shell
//
// =============================================================================

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/splashes/splashes/internal/store"
)

// searchSize bounds the results printed by 'search'.
var searchSize int

// shellCmd represents the 'shell' command.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Inspect the index interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context(), false, false)
		if err != nil {
			return err
		}
		defer closeStore(s)

		return runShell(cmd.Context(), s, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().IntVar(&searchSize, "size", 10, "Maximum number of search results")
}

const shellHelp = `Commands:
  get SIRET     print the document of an establishment
  search TEXT   list the establishments matching TEXT
  count         print the number of indexed documents
  help          print this message
  quit          leave the shell`

// runShell reads commands from in until quit, end of input or cancellation.
// Command errors are printed and the shell goes on; only I/O errors end it.
func runShell(ctx context.Context, s store.Store, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "splashes> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(name) {
		case "":
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(out, shellHelp)
		case "get":
			shellGet(ctx, s, out, arg)
		case "search":
			shellSearch(ctx, s, out, arg)
		case "count":
			n, err := s.Count(ctx)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%s documents\n", humanize.Comma(n))
		default:
			fmt.Fprintf(out, "unknown command %q, type help\n", name)
		}
	}
}

func shellGet(ctx context.Context, s store.Store, out io.Writer, siret string) {
	if siret == "" {
		fmt.Fprintln(out, "usage: get SIRET")
		return
	}

	rec, err := s.Get(ctx, siret)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(out, "%s: not found\n", siret)
		return
	}
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(data))
}

func shellSearch(ctx context.Context, s store.Store, out io.Writer, text string) {
	if text == "" {
		fmt.Fprintln(out, "usage: search TEXT")
		return
	}

	size := searchSize
	if size < 1 {
		size = 10
	}
	recs, err := s.Search(ctx, text, size)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}

	for _, rec := range recs {
		fmt.Fprintf(out, "%-14s  %-40s  %s %s\n", rec.Siret, rec.Name, rec.PostalCode, rec.City)
	}
	fmt.Fprintf(out, "%d result(s)\n", len(recs))
}
