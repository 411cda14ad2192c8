package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_WarnLevelHidesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")

	logger.Info("progress", "rows", 10)
	logger.Warn("invalid date", "field", "activity_start")

	out := buf.String()
	if strings.Contains(out, "progress") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "invalid date") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Info("file loaded", "rows", 15)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "file loaded" {
		t.Errorf("msg = %v, want %q", entry["msg"], "file loaded")
	}
	if entry["rows"] != float64(15) {
		t.Errorf("rows = %v, want 15", entry["rows"])
	}
}
