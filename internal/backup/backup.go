// Package backup archives corpus snapshots before mutating runs.
// An archive is a single file: a plain-text JSON header line followed
// by a gzip-compressed JSON payload, checksummed so a truncated or
// corrupted archive is detected before restore.
package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/driftlab/driftline/internal/corpus"
	"github.com/driftlab/driftline/internal/models"
)

// FormatVersion is the current archive format version.
const FormatVersion = 1

// MaxDecompressedSize caps the decompressed payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text first line of an archive file. It can be
// read without decompressing the payload.
type Header struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	CycleID    string    `json:"cycle_id,omitempty"`
	Checksum   string    `json:"checksum"`
	Models     int       `json:"models"`
	Narratives int       `json:"narratives"`
	Collisions int       `json:"collisions"`
}

// payload is the compressed archive body.
type payload struct {
	Models     []*models.Model     `json:"models"`
	Narratives []*models.Narrative `json:"narratives"`
	Collisions []*models.Collision `json:"collisions"`
}

// ArchivePath returns a timestamped archive filename in dir.
func ArchivePath(dir string) string {
	ts := time.Now().UTC().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("corpus-%s.snap", ts))
}

// Backup writes the corpus to path as a checksummed archive.
func Backup(c *corpus.Corpus, cycleID, path string) (*Header, error) {
	body, err := json.Marshal(payload{
		Models:     c.Models,
		Narratives: c.Narratives,
		Collisions: c.Collisions,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(body); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	hash := sha256.Sum256(compressed.Bytes())
	header := Header{
		Version:    FormatVersion,
		CreatedAt:  time.Now().UTC(),
		CycleID:    cycleID,
		Checksum:   "sha256:" + hex.EncodeToString(hash[:]),
		Models:     len(c.Models),
		Narratives: len(c.Narratives),
		Collisions: len(c.Collisions),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing payload: %w", err)
	}
	return &header, nil
}

// ReadHeader reads only the header line of an archive.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	headerLine, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}
	return &header, nil
}

// Restore reads an archive, verifies its checksum, and rebuilds a
// validated corpus.
func Restore(path string) (*corpus.Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	hash := sha256.Sum256(compressed)
	if got := "sha256:" + hex.EncodeToString(hash[:]); got != header.Checksum {
		return nil, fmt.Errorf("checksum mismatch: archive has %s, content is %s", header.Checksum, got)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("opening gzip reader: %w", err)
	}
	defer gzr.Close()

	body, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(body)) > MaxDecompressedSize {
		return nil, fmt.Errorf("payload exceeds %d bytes", int64(MaxDecompressedSize))
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}

	c := corpus.New(p.Models, p.Narratives, p.Collisions)
	if err := corpus.Validate(c); err != nil {
		return nil, fmt.Errorf("restored corpus invalid: %w", err)
	}
	return c, nil
}

// VerifyChecksum checks archive integrity without rebuilding the corpus.
func VerifyChecksum(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return fmt.Errorf("parsing header: %w", err)
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	hash := sha256.Sum256(compressed)
	if got := "sha256:" + hex.EncodeToString(hash[:]); got != header.Checksum {
		return fmt.Errorf("checksum mismatch: archive has %s, content is %s", header.Checksum, got)
	}
	return nil
}
