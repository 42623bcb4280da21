package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/driftlab/driftline/internal/config"
	"github.com/driftlab/driftline/internal/corpus"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "driftline",
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("corpus", ".driftline", "Corpus directory")
	rootCmd.PersistentFlags().String("store", "", "Store backend")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity")
	return rootCmd
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}

func TestNewInitCmd(t *testing.T) {
	cmd := newInitCmd()
	if cmd.Use != "init" {
		t.Errorf("Use = %q, want %q", cmd.Use, "init")
	}
}

func TestNewDetectCmd(t *testing.T) {
	cmd := newDetectCmd()
	if cmd.Use != "detect" {
		t.Errorf("Use = %q, want %q", cmd.Use, "detect")
	}
	if cmd.Flags().Lookup("cycle") == nil {
		t.Error("missing --cycle flag")
	}
}

func TestNewPropagateCmd(t *testing.T) {
	cmd := newPropagateCmd()
	if cmd.Use != "propagate" {
		t.Errorf("Use = %q, want %q", cmd.Use, "propagate")
	}
	if cmd.Flags().Lookup("dry-run") == nil {
		t.Error("missing --dry-run flag")
	}
	if cmd.Flags().Lookup("cycle") == nil {
		t.Error("missing --cycle flag")
	}
}

func TestNewRunCmd(t *testing.T) {
	cmd := newRunCmd()
	if cmd.Use != "run" {
		t.Errorf("Use = %q, want %q", cmd.Use, "run")
	}
	if cmd.Flags().Lookup("dry-run") == nil {
		t.Error("missing --dry-run flag")
	}
}

func TestNewBackupCmd(t *testing.T) {
	cmd := newBackupCmd()
	if cmd.Use != "backup" {
		t.Errorf("Use = %q, want %q", cmd.Use, "backup")
	}
	if cmd.Flags().Lookup("keep") == nil {
		t.Error("missing --keep flag")
	}

	subs := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subs[strings.Fields(sub.Use)[0]] = true
	}
	if !subs["list"] {
		t.Error("missing list subcommand")
	}
	if !subs["restore"] {
		t.Error("missing restore subcommand")
	}
	if !subs["verify"] {
		t.Error("missing verify subcommand")
	}
}

func TestBuildRetentionPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RetentionConfig
		want    string
		wantErr bool
	}{
		{"empty defaults to count", config.RetentionConfig{}, "*backup.CountPolicy", false},
		{"count only", config.RetentionConfig{MaxCount: 5}, "*backup.CountPolicy", false},
		{"age only", config.RetentionConfig{MaxAge: "30d"}, "*backup.AgePolicy", false},
		{"size only", config.RetentionConfig{MaxTotalSize: "500MB"}, "*backup.SizePolicy", false},
		{"count and age combine", config.RetentionConfig{MaxCount: 5, MaxAge: "2w"}, "*backup.CompositePolicy", false},
		{"bad age", config.RetentionConfig{MaxAge: "5y"}, "", true},
		{"bad size", config.RetentionConfig{MaxTotalSize: "10TB"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := buildRetentionPolicy(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := fmt.Sprintf("%T", policy); got != tt.want {
				t.Errorf("policy type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBackupVerifyCmd(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "corpus")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--corpus", tmpDir})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	rootCmd2 := newTestRootCmd()
	rootCmd2.AddCommand(newBackupCmd())
	rootCmd2.SetArgs([]string{"backup", "--corpus", tmpDir})
	rootCmd2.SetOut(&bytes.Buffer{})
	if err := rootCmd2.Execute(); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	archives, err := filepath.Glob(filepath.Join(tmpDir, "backups", "corpus-*.snap"))
	if err != nil || len(archives) != 1 {
		t.Fatalf("expected 1 archive, got %d (err %v)", len(archives), err)
	}

	// Intact archive verifies.
	rootCmd3 := newTestRootCmd()
	rootCmd3.AddCommand(newBackupCmd())
	rootCmd3.SetArgs([]string{"backup", "verify", archives[0], "--corpus", tmpDir})
	rootCmd3.SetOut(&bytes.Buffer{})
	if err := rootCmd3.Execute(); err != nil {
		t.Fatalf("verify failed on intact archive: %v", err)
	}

	// Flip the last payload byte and verification must fail.
	data, err := os.ReadFile(archives[0])
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(archives[0], data, 0o644); err != nil {
		t.Fatalf("writing tampered archive: %v", err)
	}

	rootCmd4 := newTestRootCmd()
	rootCmd4.AddCommand(newBackupCmd())
	rootCmd4.SetArgs([]string{"backup", "verify", archives[0], "--corpus", tmpDir})
	rootCmd4.SetOut(&bytes.Buffer{})
	rootCmd4.SetErr(&bytes.Buffer{})
	if err := rootCmd4.Execute(); err == nil {
		t.Fatal("expected error for tampered archive")
	}
}

func TestInitCmdCreatesCorpus(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "corpus")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--corpus", tmpDir})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	for _, name := range []string{"manifest.yaml", "models.json", "narratives.json", "collisions.json"} {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	if info, err := os.Stat(filepath.Join(tmpDir, "reports")); err != nil || !info.IsDir() {
		t.Error("reports directory not created")
	}
}

func TestInitCmdSqlite(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "corpus")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--corpus", tmpDir, "--store", "sqlite"})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init --store sqlite failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "corpus.db")); err != nil {
		t.Errorf("corpus.db not created: %v", err)
	}

	// The backend choice must be recorded so later commands pick it up.
	data, err := os.ReadFile(filepath.Join(tmpDir, "driftline.yaml"))
	if err != nil {
		t.Fatalf("driftline.yaml not written: %v", err)
	}
	if !strings.Contains(string(data), "store: sqlite") {
		t.Errorf("driftline.yaml missing sqlite backend, got: %s", data)
	}
}

func TestInitCmdRejectsUnknownStore(t *testing.T) {
	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--corpus", t.TempDir(), "--store", "postgres"})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown store backend")
	}
	if !strings.Contains(err.Error(), "invalid store") {
		t.Errorf("expected 'invalid store' error, got: %v", err)
	}
}

func TestDetectCmdRequiresInit(t *testing.T) {
	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newDetectCmd())
	rootCmd.SetArgs([]string{"detect", "--corpus", filepath.Join(t.TempDir(), "missing")})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error when corpus not initialized")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected 'not initialized' error, got: %v", err)
	}
}

func TestRunCmdWritesAllReports(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "corpus")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--corpus", tmpDir})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	rootCmd2 := newTestRootCmd()
	rootCmd2.AddCommand(newRunCmd())
	rootCmd2.SetArgs([]string{"run", "--corpus", tmpDir, "--cycle", "test-cycle"})
	rootCmd2.SetOut(&bytes.Buffer{})
	if err := rootCmd2.Execute(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// One report per stage, all under the same cycle id.
	kinds := []string{
		corpus.ReportDetection,
		corpus.ReportRequirements,
		corpus.ReportPropagation,
		corpus.ReportAudit,
	}
	for _, kind := range kinds {
		path := filepath.Join(tmpDir, "reports", kind+"-test-cycle.json")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("%s report not written: %v", kind, err)
			continue
		}
		var report struct {
			Kind    string `json:"kind"`
			CycleID string `json:"cycle_id"`
		}
		if err := json.Unmarshal(data, &report); err != nil {
			t.Errorf("%s report not valid JSON: %v", kind, err)
			continue
		}
		if report.Kind != kind {
			t.Errorf("report kind = %q, want %q", report.Kind, kind)
		}
		if report.CycleID != "test-cycle" {
			t.Errorf("report cycle_id = %q, want %q", report.CycleID, "test-cycle")
		}
	}

	// A mutating run archives the corpus first.
	archives, err := filepath.Glob(filepath.Join(tmpDir, "backups", "corpus-*.snap"))
	if err != nil {
		t.Fatalf("globbing archives: %v", err)
	}
	if len(archives) != 1 {
		t.Errorf("expected 1 pre-run archive, got %d", len(archives))
	}
}

func TestRunCmdDryRunSkipsArchive(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "corpus")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--corpus", tmpDir})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	rootCmd2 := newTestRootCmd()
	rootCmd2.AddCommand(newRunCmd())
	rootCmd2.SetArgs([]string{"run", "--corpus", tmpDir, "--dry-run", "--cycle", "dry-cycle"})
	rootCmd2.SetOut(&bytes.Buffer{})
	if err := rootCmd2.Execute(); err != nil {
		t.Fatalf("run --dry-run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "backups")); !os.IsNotExist(err) {
		t.Error("dry run should not create archives")
	}

	// The propagation log is still persisted even without mutation.
	if _, err := os.Stat(filepath.Join(tmpDir, "reports", corpus.ReportPropagation+"-dry-cycle.json")); err != nil {
		t.Errorf("propagation report not written on dry run: %v", err)
	}
}

func TestBackupCmdCreatesArchive(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "corpus")

	rootCmd := newTestRootCmd()
	rootCmd.AddCommand(newInitCmd())
	rootCmd.SetArgs([]string{"init", "--corpus", tmpDir})
	rootCmd.SetOut(&bytes.Buffer{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	rootCmd2 := newTestRootCmd()
	rootCmd2.AddCommand(newBackupCmd())
	rootCmd2.SetArgs([]string{"backup", "--corpus", tmpDir})
	rootCmd2.SetOut(&bytes.Buffer{})
	if err := rootCmd2.Execute(); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	archives, err := filepath.Glob(filepath.Join(tmpDir, "backups", "corpus-*.snap"))
	if err != nil {
		t.Fatalf("globbing archives: %v", err)
	}
	if len(archives) != 1 {
		t.Errorf("expected 1 archive, got %d", len(archives))
	}
}
