// =============================================================================
// SIRENE Loader - File Manager Utility
// =============================================================================
//
// This module resolves the PATH argument of load and update into the list of
// CSV files to process:
//   - A regular file is processed as is, whatever its extension
//   - A directory contributes its *.csv files, non-recursively, sorted by name
//
// Sorting makes runs reproducible: daily update files are named after their
// date, so the sorted order is also the chronological one.
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// CSVExtension is the extension matched when a directory is scanned.
const CSVExtension = ".csv"

// ResolveInputFiles returns the files designated by path.
//
// PARAMETERS:
//   - path: A CSV file or a directory holding CSV files.
//
// RETURNS:
//   - The files to process. An empty slice for a directory without CSV files.
//   - An error if path does not exist or cannot be read.
func ResolveInputFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access input: %w", err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	return DiscoverInputFiles(path, CSVExtension)
}

// DiscoverInputFiles lists the regular files of dir whose extension matches
// extension (case-insensitive). Subdirectories are not visited.
func DiscoverInputFiles(dir, extension string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), extension) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
