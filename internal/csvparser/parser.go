// =============================================================================
// SIRENE Loader - CSV Parser Module
// =============================================================================
//
// This module streams rows out of SIRENE CSV extracts. Files are never loaded
// in memory: a stock file holds roughly ten million establishments.
//
// VARIANTS:
//   The dataset ships in two flavours and the caller picks one explicitly,
//   the parser never sniffs the content:
//
//   | Variant | Encoding     | Delimiter | Files                              |
//   |---------|--------------|-----------|------------------------------------|
//   | stock   | Windows-1252 | ;         | INSEE stock and daily update files |
//   | geo     | UTF-8        | ,         | geocoded "geo-sirene" files        |
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// VARIANTS
// =============================================================================

// Variant describes how a family of CSV files is encoded.
type Variant struct {
	// Name identifies the variant in logs.
	Name string

	// Encoding is a WHATWG encoding label ("windows-1252", "utf-8", ...).
	Encoding string

	// Delimiter separates fields.
	Delimiter rune
}

var (
	// Stock is the INSEE stock/update layout.
	Stock = Variant{Name: "stock", Encoding: "windows-1252", Delimiter: ';'}

	// Geo is the geocoded layout.
	Geo = Variant{Name: "geo", Encoding: "utf-8", Delimiter: ','}
)

// VariantFor returns Geo when geo is set and Stock otherwise.
func VariantFor(geo bool) Variant {
	if geo {
		return Geo
	}
	return Stock
}

// decoder returns a reader decoding r from the variant encoding to UTF-8.
func (v Variant) decoder(r io.Reader) (io.Reader, error) {
	label := strings.ToLower(strings.TrimSpace(v.Encoding))
	if label == "" || label == "utf-8" || label == "utf8" {
		// Geo files produced on Windows sometimes carry a BOM.
		return transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder())), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", v.Encoding, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser reads one row at a time and exposes it as a map keyed by
// the header row.
//
// USAGE:
//   parser, err := csvparser.Open(path, csvparser.Stock)
//   if err != nil {
//       return err
//   }
//   defer parser.Close()
//
//   for parser.Next() {
//       row := parser.Row()
//       // Process the row...
//   }
//
//   if err := parser.Err(); err != nil {
//       return err
//   }
type StreamingParser struct {
	closer     io.Closer
	reader     *csv.Reader
	headers    []string
	currentRow map[string]string
	rowNumber  int
	err        error
}

// Open opens a CSV file and reads its header row.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - variant: The encoding/delimiter pair of the file.
//
// RETURNS:
//   - A parser positioned before the first data row. An empty file yields
//     a parser with no headers and no rows.
//   - An error if the file cannot be opened or its header is unreadable.
func Open(filePath string, variant Variant) (*StreamingParser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	parser, err := NewStreamingParser(file, variant)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	parser.closer = file

	return parser, nil
}

// NewStreamingParser builds a parser over r. The caller keeps ownership of r.
func NewStreamingParser(r io.Reader, variant Variant) (*StreamingParser, error) {
	decoded, err := variant.decoder(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	configureReader(reader, variant)

	parser := &StreamingParser{reader: reader}
	if err := parser.readHeaders(); err != nil {
		return nil, err
	}

	return parser, nil
}

// configureReader configures the CSV reader for a variant.
func configureReader(reader *csv.Reader, variant Variant) {
	reader.Comma = variant.Delimiter
	if reader.Comma == 0 {
		reader.Comma = ','
	}

	// Some INSEE rows are short by a trailing column; missing cells read as "".
	reader.FieldsPerRecord = -1

	// Company names contain stray quotes.
	reader.LazyQuotes = true

	reader.ReuseRecord = true
}

// readHeaders reads the single header row. An empty input has no header
// and no rows.
func (p *StreamingParser) readHeaders() error {
	row, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading header row: %w", err)
	}

	p.headers = cleanHeaders(row)
	p.rowNumber++
	return nil
}

// cleanHeaders trims header names. Empty names get a positional placeholder
// so that no two columns collapse onto the same key.
func cleanHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, header := range row {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = header
	}
	return headers
}

// Next advances to the next non-empty row. Returns false at end of file or
// on error; check Err to tell them apart.
func (p *StreamingParser) Next() bool {
	if p.err != nil {
		return false
	}

	for {
		row, err := p.reader.Read()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			p.err = fmt.Errorf("error reading row %d: %w", p.rowNumber+1, err)
			return false
		}

		p.rowNumber++

		if isRowEmpty(row) {
			continue
		}

		// A fresh map per row: rows are handed to concurrent workers.
		p.currentRow = make(map[string]string, len(p.headers))
		for i, header := range p.headers {
			if i < len(row) {
				p.currentRow[header] = strings.TrimSpace(row[i])
			} else {
				p.currentRow[header] = ""
			}
		}

		return true
	}
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Row returns the current row as a map.
func (p *StreamingParser) Row() map[string]string {
	return p.currentRow
}

// Headers returns the parsed headers.
func (p *StreamingParser) Headers() []string {
	return p.headers
}

// RowNumber returns the current physical row number (1-indexed, header included).
func (p *StreamingParser) RowNumber() int {
	return p.rowNumber
}

// Err returns any error that occurred during parsing.
func (p *StreamingParser) Err() error {
	return p.err
}

// Close closes the underlying file when the parser was built by Open.
func (p *StreamingParser) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
