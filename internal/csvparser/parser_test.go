package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStreamingParser_StockVariantDecodesWindows1252(t *testing.T) {
	// "SOCIÉTÉ" with É encoded as 0xC9 in Windows-1252.
	data := "SIREN;NIC;NOMEN_LONG\r\n005520135;00038;SOCI\xc9T\xc9 G\xc9N\xc9RALE\r\n"

	parser, err := NewStreamingParser(strings.NewReader(data), Stock)
	if err != nil {
		t.Fatalf("NewStreamingParser() error = %v", err)
	}

	if !parser.Next() {
		t.Fatalf("Next() = false, err = %v", parser.Err())
	}
	row := parser.Row()
	if got, want := row["NOMEN_LONG"], "SOCIÉTÉ GÉNÉRALE"; got != want {
		t.Errorf("NOMEN_LONG = %q, want %q", got, want)
	}
	if got := row["SIREN"]; got != "005520135" {
		t.Errorf("SIREN = %q, want %q", got, "005520135")
	}
	if parser.Next() {
		t.Error("Next() = true after last row")
	}
	if err := parser.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestStreamingParser_GeoVariant(t *testing.T) {
	data := "\ufeffSIREN,NIC,latitude,longitude\n005520135,00038,48.8566,2.3522\n"

	parser, err := NewStreamingParser(strings.NewReader(data), Geo)
	if err != nil {
		t.Fatalf("NewStreamingParser() error = %v", err)
	}

	if got := parser.Headers()[0]; got != "SIREN" {
		t.Errorf("first header = %q, want BOM stripped %q", got, "SIREN")
	}
	if !parser.Next() {
		t.Fatalf("Next() = false, err = %v", parser.Err())
	}
	if got := parser.Row()["longitude"]; got != "2.3522" {
		t.Errorf("longitude = %q, want %q", got, "2.3522")
	}
}

func TestStreamingParser_WrongVariantDoesNotSplit(t *testing.T) {
	data := "SIREN;NIC\n123456789;00011\n"

	parser, err := NewStreamingParser(strings.NewReader(data), Geo)
	if err != nil {
		t.Fatalf("NewStreamingParser() error = %v", err)
	}

	if len(parser.Headers()) != 1 {
		t.Errorf("headers = %v, want a single ';'-joined column", parser.Headers())
	}
}

func TestStreamingParser_ShortRowsAndBlankLines(t *testing.T) {
	data := "A;B;C\n1;2\n\n;;\n4;5;6\n"

	parser, err := NewStreamingParser(strings.NewReader(data), Stock)
	if err != nil {
		t.Fatalf("NewStreamingParser() error = %v", err)
	}

	var rows []map[string]string
	for parser.Next() {
		rows = append(rows, parser.Row())
	}
	if err := parser.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["C"] != "" {
		t.Errorf("missing cell = %q, want empty", rows[0]["C"])
	}
	if rows[1]["A"] != "4" {
		t.Errorf("second row A = %q, want %q", rows[1]["A"], "4")
	}
	// Rows must not share backing storage.
	if rows[0]["A"] != "1" {
		t.Errorf("first row mutated: A = %q", rows[0]["A"])
	}
}

func TestStreamingParser_HeaderOnly(t *testing.T) {
	parser, err := NewStreamingParser(strings.NewReader("SIREN;NIC\n"), Stock)
	if err != nil {
		t.Fatalf("NewStreamingParser() error = %v", err)
	}
	if parser.Next() {
		t.Error("Next() = true on a header-only file")
	}
	if parser.Err() != nil {
		t.Errorf("Err() = %v", parser.Err())
	}
}

func TestStreamingParser_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "\ufeff"} {
		parser, err := NewStreamingParser(strings.NewReader(input), Geo)
		if err != nil {
			t.Fatalf("NewStreamingParser(%q) error = %v", input, err)
		}
		if parser.Next() {
			t.Errorf("Next() = true on %q", input)
		}
		if err := parser.Err(); err != nil {
			t.Errorf("Err() = %v on %q", err, input)
		}
		if len(parser.Headers()) != 0 {
			t.Errorf("Headers() = %v on %q", parser.Headers(), input)
		}
	}
}

func TestStreamingParser_UnknownEncoding(t *testing.T) {
	v := Variant{Name: "odd", Encoding: "klingon", Delimiter: ';'}
	if _, err := NewStreamingParser(strings.NewReader("A\n"), v); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.csv")
	if err := os.WriteFile(path, []byte("SIREN;NIC\n123456789;00011\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	parser, err := Open(path, Stock)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer parser.Close()

	if !parser.Next() {
		t.Fatalf("Next() = false, err = %v", parser.Err())
	}
	if parser.RowNumber() != 2 {
		t.Errorf("RowNumber() = %d, want 2", parser.RowNumber())
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv"), Stock); err == nil {
		t.Error("Open() expected error for missing file")
	}
}

func TestVariantFor(t *testing.T) {
	if VariantFor(true) != Geo {
		t.Error("VariantFor(true) != Geo")
	}
	if VariantFor(false) != Stock {
		t.Error("VariantFor(false) != Stock")
	}
}
