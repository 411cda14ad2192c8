// =============================================================================
// SIRENE Loader - Lookup Tables
// =============================================================================
//
// This module reads the value-to-value tables used by denormalization passes,
// for instance the INSEE APE nomenclature mapping "6201Z" to its label.
//
// SUPPORTED FORMATS:
//   | Extension   | Layout                                                 |
//   |-------------|--------------------------------------------------------|
//   | .xlsx       | key and value columns, header row skipped (excelize)   |
//   | .yaml, .yml | a flat key: value mapping                              |
//   | .csv        | UTF-8, ',' separated, first two columns, header row    |
//
// INSEE publishes its nomenclatures as XLSX workbooks, so that is the format
// most tables come in.
//
// TABLE STRUCTURE (XLSX):
//
//   | Column A | Column B                      |
//   |----------|-------------------------------|
//   | Code     | Libellé                       |
//   | 6201Z    | Programmation informatique    |
//   | 4711D    | Supermarchés                  |
//
// =============================================================================

package lookup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/splashes/splashes/internal/csvparser"
)

// =============================================================================
// TABLE LAYOUT
// =============================================================================

// Options selects where a table lives inside its file.
type Options struct {
	// Sheet is the XLSX sheet to read. Empty means the first sheet.
	Sheet string

	// KeyColumn is the 0-based column holding keys.
	// Default: 0 (Column A)
	KeyColumn int

	// ValueColumn is the 0-based column holding values.
	// Default: 1 (Column B)
	ValueColumn int

	// DataStartRow is the 0-based row where data begins.
	// Default: 1 (Row 2, after the header)
	DataStartRow int
}

// DefaultOptions returns the layout of INSEE nomenclature workbooks.
func DefaultOptions() Options {
	return Options{
		KeyColumn:    0, // Column A
		ValueColumn:  1, // Column B
		DataStartRow: 1, // Row 2
	}
}

// Table maps source values to target values.
type Table map[string]string

// =============================================================================
// LOADING
// =============================================================================

// Load reads the table at path with the default layout. The format is
// picked from the file extension.
func Load(path string) (Table, error) {
	return LoadWithOptions(path, DefaultOptions())
}

// LoadWithOptions reads the table at path.
//
// PARAMETERS:
//   - path: An .xlsx, .yaml/.yml or .csv file.
//   - opts: Sheet and columns to read. Only XLSX honours Sheet.
//
// RETURNS:
//   - The table. Rows with an empty key are skipped; a repeated key keeps
//     its last value.
//   - An error if the file cannot be read or holds no entry.
func LoadWithOptions(path string, opts Options) (Table, error) {
	var (
		table Table
		err   error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		table, err = loadXLSX(path, opts)
	case ".yaml", ".yml":
		table, err = loadYAML(path)
	case ".csv":
		table, err = loadCSV(path, opts)
	default:
		return nil, fmt.Errorf("unsupported lookup table format: %s", path)
	}
	if err != nil {
		return nil, err
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("lookup table %s is empty", path)
	}
	return table, nil
}

// loadXLSX reads a key/value sheet from a workbook.
func loadXLSX(path string, opts Options) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup workbook: %w", err)
	}
	defer f.Close()

	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheetName)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	table := make(Table)
	for i := opts.DataStartRow; i < len(rows); i++ {
		addRow(table, rows[i], opts)
	}
	return table, nil
}

// loadYAML reads a flat mapping.
func loadYAML(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup table: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lookup table: %w", err)
	}

	table := make(Table, len(raw))
	for k, v := range raw {
		if k = strings.TrimSpace(k); k != "" {
			table[k] = strings.TrimSpace(v)
		}
	}
	return table, nil
}

// loadCSV reads the key and value columns of a UTF-8 CSV file.
func loadCSV(path string, opts Options) (Table, error) {
	parser, err := csvparser.Open(path, csvparser.Geo)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	headers := parser.Headers()
	table := make(Table)
	for parser.Next() {
		row := parser.Row()
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = row[h]
		}
		addRow(table, cells, opts)
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// addRow records the key/value pair of row, if it has a key.
func addRow(table Table, row []string, opts Options) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	if key := cell(opts.KeyColumn); key != "" {
		table[key] = cell(opts.ValueColumn)
	}
}
