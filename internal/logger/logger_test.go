package logger

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
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWriterText(t *testing.T) {
	t.Setenv("GRAVTREE_ENV", "")
	var buf bytes.Buffer
	InitWriter(&buf, "warn")

	WithComponent("tree").Info("hidden")
	WithComponent("tree").Warn("shown", "n", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "component=tree") || !strings.Contains(out, "n=3") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInitWriterJSON(t *testing.T) {
	t.Setenv("GRAVTREE_ENV", "production")
	var buf bytes.Buffer
	InitWriter(&buf, "info")

	Get().Info("built", "bodies", 10)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "built" || rec["bodies"] != float64(10) {
		t.Errorf("unexpected record %v", rec)
	}
}
