package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/splashes/splashes/internal/company"
	"github.com/splashes/splashes/internal/config"
	"github.com/splashes/splashes/internal/loader"
	"github.com/splashes/splashes/internal/logging"
	"github.com/splashes/splashes/internal/store"
)

// testCommand builds a command carrying the batch flags, a context and a
// captured output, and resets the package configuration to its defaults.
func testCommand(t *testing.T, f *batchFlags) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	cfg = config.Default()
	logger = logging.Discard()

	var out bytes.Buffer
	c := &cobra.Command{Use: "test"}
	addBatchFlags(c, f)
	c.Flags().StringVar(&f.deletions, "deletions", config.DeletionsCount, "")
	c.SetContext(context.Background())
	c.SetOut(&out)
	return c, &out
}

func writeUpdates(t *testing.T) string {
	t.Helper()

	content := "SIREN;NIC;NOMEN_LONG;DATEMAJ;VMAJ\n" +
		"000000001;00011;ALPHA;20170301;C\n" +
		"000000002;00011;BETA;20170301;F\n" +
		"000000003;00011;GAMMA;20170301;E\n" +
		"000000004;00011;DELTA;20170301;X\n"

	path := filepath.Join(t.TempDir(), "sirc-20170301.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// =============================================================================
// BATCH COMMANDS
// =============================================================================

func TestBatchFlags_Options(t *testing.T) {
	var f batchFlags
	c, _ := testCommand(t, &f)
	cfg.Loader.Lines = 50
	cfg.Loader.Workers = 3

	opts := f.options(c)
	if opts.Lines != 50 || opts.Workers != 3 || opts.Deletions != config.DeletionsCount {
		t.Errorf("options() without flags = %+v", opts)
	}
	if opts.Variant.Name != "stock" {
		t.Errorf("Variant = %q, want stock", opts.Variant.Name)
	}

	for name, value := range map[string]string{"lines": "7", "workers": "2", "deletions": "delete"} {
		if err := c.Flags().Set(name, value); err != nil {
			t.Fatal(err)
		}
	}
	f.geo = true

	opts = f.options(c)
	if opts.Lines != 7 || opts.Workers != 2 || opts.Deletions != config.DeletionsDelete {
		t.Errorf("options() with flags = %+v", opts)
	}
	if opts.Variant.Name != "geo" {
		t.Errorf("Variant = %q, want geo", opts.Variant.Name)
	}
}

func TestRunBatch_DryRunUpdate(t *testing.T) {
	f := batchFlags{dryRun: true}
	c, out := testCommand(t, &f)

	if err := runBatch(c, writeUpdates(t), &f, true); err != nil {
		t.Fatalf("runBatch() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"=== Summary ===",
		"Rows:            4",
		"Creations:       1",
		"Modifications:   1",
		"Deletions:       1",
		"Skipped:         1",
		"Persisted:       3",
		"✔ Done",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunBatch_Errors(t *testing.T) {
	tests := []struct {
		name  string
		path  func(t *testing.T) string
		flags map[string]string
	}{
		{
			name:  "invalid deletion policy",
			path:  writeUpdates,
			flags: map[string]string{"deletions": "purge"},
		},
		{
			name:  "negative lines",
			path:  writeUpdates,
			flags: map[string]string{"lines": "-1"},
		},
		{
			name: "missing input",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.csv") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := batchFlags{dryRun: true}
			c, out := testCommand(t, &f)
			for name, value := range tt.flags {
				if err := c.Flags().Set(name, value); err != nil {
					t.Fatal(err)
				}
			}

			if err := runBatch(c, tt.path(t), &f, true); err == nil {
				t.Fatal("runBatch() expected error")
			}
			if strings.Contains(out.String(), "✔ Done") {
				t.Errorf("failed run printed Done:\n%s", out.String())
			}
		})
	}
}

func TestPrintSummary_Stock(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, loader.Summary{
		RunID:    "run-1",
		Files:    make([]loader.FileResult, 2),
		Counters: loader.Counters{Total: 12345, Persisted: 12340, Rejected: 5},
		Duration: 1500 * time.Millisecond,
	}, false)

	got := out.String()
	for _, want := range []string{"Run:             run-1", "Files:           2", "Rows:            12,345", "Rejected:        5", "1.5s"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Creations") {
		t.Errorf("stock summary prints update counters:\n%s", got)
	}
}

// =============================================================================
// DENORMALIZE
// =============================================================================

func TestDenormalize(t *testing.T) {
	var f batchFlags
	c, out := testCommand(t, &f)
	ctx := context.Background()

	mem := store.NewMemory()
	for _, rec := range []*company.Record{
		{Siren: "000000001", Nic: "00011", Siret: "00000000100011", APE: "6201Z"},
		{Siren: "000000002", Nic: "00011", Siret: "00000000200011", APE: "4711D"},
		{Siren: "000000003", Nic: "00011", Siret: "00000000300011", APE: "9999Z"},
	} {
		if err := mem.Upsert(ctx, rec.ID(), rec); err != nil {
			t.Fatal(err)
		}
	}

	d := store.Denormalization{
		Source: "ape",
		Target: "ape_label",
		Lookup: map[string]string{"6201Z": "Programmation informatique", "4711D": "Supermarchés"},
	}
	if err := denormalize(c, mem, d); err != nil {
		t.Fatalf("denormalize() error = %v", err)
	}
	if !strings.Contains(out.String(), "Updated:   2") {
		t.Errorf("output:\n%s", out.String())
	}

	rec, err := mem.Get(ctx, "00000000100011")
	if err != nil {
		t.Fatal(err)
	}
	if rec.APELabel != "Programmation informatique" {
		t.Errorf("APELabel = %q", rec.APELabel)
	}

	// Writing a label into a numeric field fails for every matched document.
	d.Target = "workforce"
	if err := denormalize(c, mem, d); err == nil {
		t.Error("denormalize() expected an error on failures")
	}
}

// =============================================================================
// SHELL
// =============================================================================

func TestRunShell(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	rec := &company.Record{Siren: "732829320", Nic: "00074", Siret: "73282932000074", Name: "SPLASHES", City: "PARIS", PostalCode: "75002"}
	if err := mem.Upsert(ctx, rec.ID(), rec); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"get", "get 73282932000074\n", []string{`"name": "SPLASHES"`}},
		{"get missing", "get 00000000000000\n", []string{"not found"}},
		{"get usage", "get\n", []string{"usage: get SIRET"}},
		{"search", "search splash\n", []string{"73282932000074", "75002 PARIS", "1 result(s)"}},
		{"search nothing", "search nothing\n", []string{"0 result(s)"}},
		{"count", "count\n", []string{"1 documents"}},
		{"help", "help\n", []string{"search TEXT"}},
		{"unknown", "drop\n", []string{`unknown command "drop"`}},
		{"quit stops reading", "quit\ncount\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := runShell(ctx, mem, strings.NewReader(tt.input), &out); err != nil {
				t.Fatalf("runShell() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
			if tt.want == nil && strings.Contains(out.String(), "documents") {
				t.Errorf("shell kept reading after quit:\n%s", out.String())
			}
		})
	}
}

// =============================================================================
// VERSION
// =============================================================================

func TestReadBuildInfo(t *testing.T) {
	stamped := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v0.5.1"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "3f9c2a1b7d4e5f60718293a4b5c6d7e8f9012345"},
				{Key: "vcs.time", Value: "2026-10-01T08:12:44Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		}, true
	}
	missing := func() (*debug.BuildInfo, bool) { return nil, false }

	tests := []struct {
		name      string
		version   string
		buildDate string
		read      func() (*debug.BuildInfo, bool)
		want      []string
	}{
		{
			name:    "embedded stamps",
			version: "dev",
			read:    stamped,
			want:    []string{"splashes v0.5.1", "Commit:     3f9c2a1b7d4e (modified)", "Build Date: 2026-10-01T08:12:44Z", "Go Version: go"},
		},
		{
			name:      "ldflags win",
			version:   "0.4.0",
			buildDate: "2026-09-30",
			read:      stamped,
			want:      []string{"splashes 0.4.0", "Build Date: 2026-09-30"},
		},
		{
			name:    "no build info",
			version: "dev",
			read:    missing,
			want:    []string{"splashes dev", "Go Version: go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldDate := Version, BuildDate
			defer func() { Version, BuildDate = oldVersion, oldDate }()
			Version, BuildDate = tt.version, tt.buildDate

			var out bytes.Buffer
			readBuildInfo(tt.read).print(&out)
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}
