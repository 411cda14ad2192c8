// =============================================================================
// SIRENE Loader - Main Entry Point
// =============================================================================
//
// This is the main entry point of splashes, the loader of the INSEE SIRENE
// company register into Elasticsearch. It delegates to the Cobra commands of
// the cmd package.
//
// USAGE:
//   splashes load PATH          - Load stock files into the index
//   splashes update PATH        - Apply daily update files
//   splashes denormalize TABLE  - Fill a field from a lookup table
//   splashes info               - Display the effective configuration
//   splashes shell              - Inspect the index interactively
//   splashes version            - Display the application version
//
// ARCHITECTURE:
//   - cmd/               : CLI command definitions (Cobra)
//   - internal/company   : Field mapping from CSV rows to company documents
//   - internal/loader    : Batch processing and update classification
//   - internal/store     : Elasticsearch, bulk and in-memory document stores
//   - internal/csvparser : Streaming CSV reader for the INSEE encodings
//   - internal/lookup    : XLSX, YAML and CSV lookup tables
//   - internal/config    : YAML configuration and environment overrides
//   - internal/logging   : Structured logging setup
//   - pkg/utils          : Input file discovery
//
// =============================================================================

package main

import (
	"github.com/splashes/splashes/cmd"
)

func main() {
	cmd.Execute()
}
