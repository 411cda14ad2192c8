// =============================================================================
// SIRENE Loader - Version Command
// =============================================================================
//
// This file defines the 'version' command, which displays the application
// version and build information.
//
// COMMAND USAGE:
//   splashes version
//
// OUTPUT:
//   splashes 0.4.0
//   Commit:     3f9c2a1 (modified)
//   Build Date: 2026-10-01T08:12:44Z
//   Go Version: go1.24.11
//
// Release builds set Version and BuildDate with ldflags. Other builds fall
// back to the VCS stamps the Go toolchain embeds in the binary.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================
// Example release build:
//   go build -ldflags "-X 'github.com/splashes/splashes/cmd.Version=0.4.0' \
//                      -X 'github.com/splashes/splashes/cmd.BuildDate=2026-10-01'"

// Version is the application version.
var Version = "dev"

// BuildDate is the date the application was built.
var BuildDate = ""

// buildInfo is what the version command prints.
type buildInfo struct {
	Version   string
	Commit    string
	Modified  bool
	BuildDate string
	GoVersion string
}

// readBuildInfo merges the ldflags values with the embedded build info.
// Values set by ldflags win.
func readBuildInfo(read func() (*debug.BuildInfo, bool)) buildInfo {
	info := buildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}

	bi, ok := read()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 12 {
				info.Commit = info.Commit[:12]
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// print writes the version block to w.
func (b buildInfo) print(w io.Writer) {
	fmt.Fprintf(w, "splashes %s\n", b.Version)
	if b.Commit != "" {
		commit := b.Commit
		if b.Modified {
			commit += " (modified)"
		}
		fmt.Fprintf(w, "Commit:     %s\n", commit)
	}
	if b.BuildDate != "" {
		fmt.Fprintf(w, "Build Date: %s\n", b.BuildDate)
	}
	fmt.Fprintf(w, "Go Version: %s\n", b.GoVersion)
}

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, the commit and date it was built from, and the Go runtime version.`,

	// The version needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },

	Run: func(cmd *cobra.Command, args []string) {
		readBuildInfo(debug.ReadBuildInfo).print(cmd.OutOrStdout())
	},
}

// init registers the version command with the root command.
func init() {
	rootCmd.AddCommand(versionCmd)
}
