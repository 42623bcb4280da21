package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
)

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	m := &models.Model{
		ID:           "m1",
		Name:         "m1",
		Architecture: "agent",
		Sector:       "software",
		Transformation: models.TransformationScores{SN: 5, FA: 5, EC: 5, TG: 5, CE: 5},
		Opportunity:    models.OpportunityScores{MO: 5, MA: 5, VD: 5, DV: 5},
		Return:         models.ReturnScores{MKT: 5, CAP: 5, ECO: 5, VEL: 5, MOA: 5},
		Provenance:     models.ProvenanceHeuristic,
		Narratives:     []models.NarrativeLink{{NarrativeID: "n1", Role: models.RoleWhatWorks}},
	}
	m.Recompute()
	n := &models.Narrative{
		ID:         "n1",
		Name:       "n1",
		Scores:     models.NarrativeScores{EM: 6, FC: 6, ES: 6, TC: 6, IR: 6},
		Phase:      models.PhaseAccelerating,
		Provenance: models.ProvenanceHeuristic,
	}
	n.Scores.Recompute()
	col := &models.Collision{
		ID:     "c1",
		Name:   "c1",
		Forces: [2]models.Force{"ai", "capital"},
		Type:   models.CollisionAmplifying,
	}
	return corpus.New([]*models.Model{m}, []*models.Narrative{n}, []*models.Collision{col})
}

func TestBackupRestoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus-20260101-000000.snap")

	c := testCorpus(t)
	header, err := Backup(c, "cycle-1", path)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if header.Models != 1 || header.Narratives != 1 || header.Collisions != 1 {
		t.Errorf("header counts = %+v", header)
	}
	if header.CycleID != "cycle-1" {
		t.Errorf("cycle id = %q", header.CycleID)
	}

	restored, err := Restore(path)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Model("m1") == nil || restored.Narrative("n1") == nil || restored.Collision("c1") == nil {
		t.Error("restored corpus missing entities")
	}
	if got := restored.Model("m1").Transformation.Composite; got != c.Model("m1").Transformation.Composite {
		t.Errorf("composite changed through roundtrip: %v", got)
	}
}

func TestReadHeaderWithoutDecompressing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus-20260101-000000.snap")

	if _, err := Backup(testCorpus(t), "", path); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	header, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.Version != FormatVersion {
		t.Errorf("version = %d", header.Version)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("checksum = %q", header.Checksum)
	}
}

func TestRestoreDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus-20260101-000000.snap")

	if _, err := Backup(testCorpus(t), "", path); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	// Flip a byte in the compressed payload.
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing tampered archive: %v", err)
	}

	if _, err := Restore(path); err == nil {
		t.Error("expected checksum error for tampered archive")
	}
	if err := VerifyChecksum(path); err == nil {
		t.Error("expected VerifyChecksum to fail for tampered archive")
	}
}

func TestVerifyChecksumIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus-20260101-000000.snap")

	if _, err := Backup(testCorpus(t), "", path); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := VerifyChecksum(path); err != nil {
		t.Errorf("VerifyChecksum: %v", err)
	}
}

func TestArchivePathNaming(t *testing.T) {
	p := ArchivePath("/tmp/backups")
	base := filepath.Base(p)
	if !strings.HasPrefix(base, "corpus-") || !strings.HasSuffix(base, ".snap") {
		t.Errorf("unexpected archive name %q", base)
	}
}
