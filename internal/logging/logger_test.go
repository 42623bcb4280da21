package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewRunLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	rl := NewRunLogger(dir, "info")

	// At info level, run logger should be nil
	if rl != nil {
		t.Error("expected nil RunLogger at info level")
	}

	// Nil logger should still be safe to use
	rl.Detection("cycle-1", 0, "CLEAN")

	path := filepath.Join(dir, "trace.jsonl")
	if _, err := os.Stat(path); err == nil {
		t.Error("trace.jsonl should not exist at info level")
	}
}

func TestRunLogger_Adjustment(t *testing.T) {
	dir := t.TempDir()
	rl := NewRunLogger(dir, "debug")
	defer rl.Close()

	rl.Adjustment("cycle-1", 2, "phase_timing", "model-1", "TG", 0.45, false)

	path := filepath.Join(dir, "trace.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}

	if entry["event"] != "adjustment" {
		t.Errorf("event = %v, want adjustment", entry["event"])
	}
	if entry["rule"] != "phase_timing" {
		t.Errorf("rule = %v, want phase_timing", entry["rule"])
	}
	if entry["entity"] != "model-1" {
		t.Errorf("entity = %v, want model-1", entry["entity"])
	}
	if entry["delta"] != 0.45 {
		t.Errorf("delta = %v, want 0.45", entry["delta"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in trace entry")
	}
	// Unclipped adjustments omit the clipped marker.
	if _, ok := entry["clipped"]; ok {
		t.Error("clipped field should be omitted when false")
	}
}

func TestRunLogger_ClippedAdjustment(t *testing.T) {
	dir := t.TempDir()
	rl := NewRunLogger(dir, "debug")
	defer rl.Close()

	rl.Adjustment("cycle-1", 1, "moat_challenge", "model-2", "MA", 0, true)

	data, err := os.ReadFile(filepath.Join(dir, "trace.jsonl"))
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry["clipped"] != true {
		t.Errorf("clipped = %v, want true", entry["clipped"])
	}
	if entry["delta"] != float64(0) {
		t.Errorf("delta = %v, want 0", entry["delta"])
	}
}

func TestRunLogger_CycleEvents(t *testing.T) {
	dir := t.TempDir()
	rl := NewRunLogger(dir, "debug")
	defer rl.Close()

	rl.CycleStart("cycle-1", 3, 2, 1)
	rl.Detection("cycle-1", 5, "CLEAN")
	rl.Requirements("cycle-1", 5, 4)
	rl.Audit("cycle-1", 6, 0)
	rl.CycleComplete("cycle-1", 5, 4, 2, 0)

	data, err := os.ReadFile(filepath.Join(dir, "trace.jsonl"))
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), string(data))
	}

	wantEvents := []string{"cycle_start", "detect", "requirements", "audit", "cycle_complete"}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d not valid JSON: %v", i, err)
		}
		if entry["event"] != wantEvents[i] {
			t.Errorf("line %d event = %v, want %q", i, entry["event"], wantEvents[i])
		}
		if entry["cycle_id"] != "cycle-1" {
			t.Errorf("line %d cycle_id = %v, want cycle-1", i, entry["cycle_id"])
		}
	}
}

func TestRunLogger_NilSafety(t *testing.T) {
	// nil RunLogger should not panic
	var rl *RunLogger
	rl.CycleStart("cycle-1", 0, 0, 0)
	rl.Adjustment("cycle-1", 1, "rule", "entity", "TG", 0.1, false)
	rl.Close()
}

func TestRunLogger_WriteAfterClose(t *testing.T) {
	dir := t.TempDir()
	rl := NewRunLogger(dir, "debug")

	rl.Detection("cycle-1", 1, "CLEAN")
	rl.Close()

	// Should be a no-op, not panic or error
	rl.Detection("cycle-1", 2, "CLEAN")
}

func TestNewRunLogger_CreatesDir(t *testing.T) {
	base := t.TempDir()
	nestedDir := filepath.Join(base, "sub", "dir")

	rl := NewRunLogger(nestedDir, "debug")
	if rl == nil {
		t.Fatal("expected non-nil RunLogger when dir needs creation")
	}
	defer rl.Close()

	rl.Detection("cycle-1", 0, "CLEAN")

	path := filepath.Join(nestedDir, "trace.jsonl")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("trace.jsonl should exist after dir creation: %v", err)
	}
}
