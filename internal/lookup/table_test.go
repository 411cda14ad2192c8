package lookup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves a workbook holding one sheet per entry of sheets.
func writeWorkbook(t *testing.T, sheets map[string][][]string, order ...string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("SetSheetName() error = %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet() error = %v", err)
		}

		for r, row := range sheets[name] {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("CoordinatesToCellName() error = %v", err)
				}
				if err := f.SetCellValue(name, cell, value); err != nil {
					t.Fatalf("SetCellValue() error = %v", err)
				}
			}
		}
	}

	path := filepath.Join(t.TempDir(), "nomenclature.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_XLSX(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{
		"APE": {
			{"Code", "Libellé"},
			{"6201Z", "Programmation informatique"},
			{"", "orphan label"},
			{},
			{" 4711D ", " Supermarchés "},
		},
		"NJ": {
			{"Code", "Libellé"},
			{"5710", "SAS, société par actions simplifiée"},
		},
	}, "APE", "NJ")

	tests := []struct {
		name    string
		opts    Options
		want    Table
		wantErr bool
	}{
		{
			name: "first sheet by default",
			opts: DefaultOptions(),
			want: Table{"6201Z": "Programmation informatique", "4711D": "Supermarchés"},
		},
		{
			name: "named sheet",
			opts: Options{Sheet: "NJ", KeyColumn: 0, ValueColumn: 1, DataStartRow: 1},
			want: Table{"5710": "SAS, société par actions simplifiée"},
		},
		{
			name: "swapped columns",
			opts: Options{Sheet: "NJ", KeyColumn: 1, ValueColumn: 0, DataStartRow: 1},
			want: Table{"SAS, société par actions simplifiée": "5710"},
		},
		{
			name:    "unknown sheet",
			opts:    Options{Sheet: "Missing", KeyColumn: 0, ValueColumn: 1, DataStartRow: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadWithOptions(path, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadWithOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			assertTable(t, got, tt.want)
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "ape.yaml", `
6201Z: Programmation informatique
"4711D": "  Supermarchés  "
`)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertTable(t, got, Table{"6201Z": "Programmation informatique", "4711D": "Supermarchés"})
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "ape.csv", "code,label,extra\n6201Z,Programmation informatique,x\n,,\n4711D,Supermarchés,y\n")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertTable(t, got, Table{"6201Z": "Programmation informatique", "4711D": "Supermarchés"})
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"unsupported extension", writeFile(t, "ape.json", `{"6201Z": "x"}`)},
		{"missing file", filepath.Join(t.TempDir(), "missing.yaml")},
		{"malformed yaml", writeFile(t, "bad.yml", "6201Z: [unclosed")},
		{"empty table", writeFile(t, "empty.yaml", "{}\n")},
		{"header only", writeFile(t, "header.csv", "code,label\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); err == nil {
				t.Errorf("Load(%s) expected error", filepath.Base(tt.path))
			}
		})
	}
}

func assertTable(t *testing.T, got, want Table) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("table = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("table[%q] = %q, want %q", k, got[k], v)
		}
	}
}
