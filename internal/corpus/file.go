package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftlab/driftline/internal/models"
)

// FileStore persists the corpus as whole-document JSON snapshots in a
// directory: models.json, narratives.json, collisions.json, plus a
// reports/ subdirectory holding one document per run. Writes go
// through a temp file and rename so a crash never leaves a torn
// snapshot.
type FileStore struct {
	dir string
}

// manifest is the yaml sidecar written by Init.
type manifest struct {
	Version string `yaml:"version"`
	Created string `yaml:"created"`
}

// NewFileStore opens a file store rooted at dir. The directory must
// have been initialized (see Init).
func NewFileStore(dir string) (*FileStore, error) {
	if _, err := os.Stat(filepath.Join(dir, "manifest.yaml")); err != nil {
		return nil, fmt.Errorf("corpus dir %s not initialized: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Init creates an empty corpus directory: manifest, empty snapshots,
// and the reports subdirectory. Existing files are left alone.
func Init(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "reports"), 0o755); err != nil {
		return fmt.Errorf("creating corpus dir: %w", err)
	}
	manifestPath := filepath.Join(dir, "manifest.yaml")
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		data, err := yaml.Marshal(manifest{
			Version: "1",
			Created: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("encoding manifest: %w", err)
		}
		if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
	}
	for _, name := range []string{"models.json", "narratives.json", "collisions.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", name, err)
			}
		}
	}
	return nil
}

// Load reads all three snapshots and validates entity shape. A shape
// violation is fatal here; it is the only hard error in the pipeline.
func (s *FileStore) Load(ctx context.Context) (*Corpus, error) {
	var ms []*models.Model
	if err := s.readSnapshot("models.json", &ms); err != nil {
		return nil, err
	}
	var ns []*models.Narrative
	if err := s.readSnapshot("narratives.json", &ns); err != nil {
		return nil, err
	}
	var cs []*models.Collision
	if err := s.readSnapshot("collisions.json", &cs); err != nil {
		return nil, err
	}

	c := New(ms, ns, cs)
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Save rewrites every snapshot atomically.
func (s *FileStore) Save(ctx context.Context, c *Corpus) error {
	if err := s.writeSnapshot("models.json", c.Models); err != nil {
		return err
	}
	if err := s.writeSnapshot("narratives.json", c.Narratives); err != nil {
		return err
	}
	return s.writeSnapshot("collisions.json", c.Collisions)
}

// SaveReport writes one run document under reports/, named by kind and
// cycle id.
func (s *FileStore) SaveReport(ctx context.Context, r Report) error {
	name := fmt.Sprintf("%s-%s.json", r.Kind, r.CycleID)
	return atomicWriteJSON(filepath.Join(s.dir, "reports", name), r)
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) readSnapshot(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) writeSnapshot(name string, v any) error {
	return atomicWriteJSON(filepath.Join(s.dir, name), v)
}

// atomicWriteJSON writes v to path via a temp file and rename.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
