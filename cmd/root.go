// =============================================================================
// SIRENE Loader - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'load', 'update') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (splashes)
//   ├── loadCmd        (splashes load PATH)
//   ├── updateCmd      (splashes update PATH)
//   ├── denormalizeCmd (splashes denormalize TABLE)
//   ├── infoCmd        (splashes info)
//   ├── shellCmd       (splashes shell)
//   └── versionCmd     (splashes version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads a .env file into the environment when one exists
//   2. Reads config.yaml (optional unless --config is given)
//   3. Applies the global flags on top of it
//   4. Sets up logging on stderr
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/splashes/splashes/internal/config"
	"github.com/splashes/splashes/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose lowers the log level to info.
var verbose bool

// esURL and indexName override the Elasticsearch settings of the config file.
var (
	esURL     string
	indexName string
)

// cfg is the effective configuration, set by initConfig.
var cfg = config.Default()

// logger is the application logger, set by initConfig.
var logger = slog.Default()

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "splashes",
	Short: "Load the SIRENE company register into Elasticsearch",
	Long: `splashes loads the INSEE SIRENE establishment files into an Elasticsearch
index and keeps it current with the daily update files.

Key Features:
  - Stock loads from the Windows-1252 INSEE files or the geocoded UTF-8 files
  - Daily updates classified by their VMAJ code
  - Denormalization passes driven by XLSX or YAML lookup tables
  - Interactive inspection of the index

Example Usage:
  splashes load ./stock/                  # Load every CSV file of a directory
  splashes load -g -l 1000 geo_75.csv     # Load the first rows of a geocoded file
  splashes update -v sirc-daily.csv       # Apply a daily update file
  splashes denormalize ape.xlsx --source ape --target ape_label`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},

	// Without a subcommand, print the help message.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main(). An interrupt
// or SIGTERM cancels the running command, which stops after the rows already
// handed to the store.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// CONFIGURATION INITIALIZATION
// =============================================================================

// initConfig builds the effective configuration and the logger.
func initConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	// The default config file is optional, an explicit one is not.
	loaded, err := config.Load(cfgFile, !cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		loaded.Logging.Verbose = verbose
	}
	if flags.Changed("elasticsearch") {
		loaded.Elasticsearch.URL = esURL
	}
	if flags.Changed("index") {
		loaded.Elasticsearch.Index = indexName
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = loaded
	logger = logging.Setup(os.Stderr, cfg.EffectiveLevel(), cfg.Logging.Format)
	logger.Debug("configuration loaded", "file", cfgFile, "index", cfg.Elasticsearch.Index)
	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================
	// Persistent flags are available to this command and all subcommands.

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Log progress and summaries (info level)",
	)

	rootCmd.PersistentFlags().StringVarP(
		&esURL,
		"elasticsearch",
		"e",
		"",
		"Elasticsearch URL (overrides elasticsearch.url)",
	)

	rootCmd.PersistentFlags().StringVarP(
		&indexName,
		"index",
		"i",
		"",
		"Index name (overrides elasticsearch.index)",
	)
}
