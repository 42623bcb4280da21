package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/driftlab/driftline/internal/models"
)

// SQLiteStore persists the corpus in a SQLite database, one row per
// entity holding the whole JSON document. Save replaces the full
// entity tables in one transaction, preserving the snapshot semantics
// of the file store; reports accumulate across runs.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS models (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS narratives (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS collisions (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reports (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	cycle_id   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	doc        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_cycle ON reports(cycle_id);
`

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single writer; the corpus is exclusively owned by one run.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every entity document and validates shape.
func (s *SQLiteStore) Load(ctx context.Context) (*Corpus, error) {
	var ms []*models.Model
	if err := loadDocs(ctx, s.db, "models", &ms); err != nil {
		return nil, err
	}
	var ns []*models.Narrative
	if err := loadDocs(ctx, s.db, "narratives", &ns); err != nil {
		return nil, err
	}
	var cs []*models.Collision
	if err := loadDocs(ctx, s.db, "collisions", &cs); err != nil {
		return nil, err
	}

	c := New(ms, ns, cs)
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// loadDocs scans a whole entity table into a slice of *T.
func loadDocs[T any](ctx context.Context, db *sql.DB, table string, out *[]*T) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY id`, table))
	if err != nil {
		return fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scanning %s row: %w", table, err)
		}
		v := new(T)
		if err := json.Unmarshal([]byte(doc), v); err != nil {
			return fmt.Errorf("parsing %s document: %w", table, err)
		}
		*out = append(*out, v)
	}
	return rows.Err()
}

// Save replaces all three entity tables in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, c *Corpus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceDocs(ctx, tx, "models", c.Models, func(m *models.Model) string { return m.ID }); err != nil {
		return err
	}
	if err := replaceDocs(ctx, tx, "narratives", c.Narratives, func(n *models.Narrative) string { return n.ID }); err != nil {
		return err
	}
	if err := replaceDocs(ctx, tx, "collisions", c.Collisions, func(col *models.Collision) string { return col.ID }); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceDocs[T any](ctx context.Context, tx *sql.Tx, table string, entities []*T, id func(*T) string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, table))
	if err != nil {
		return fmt.Errorf("preparing %s insert: %w", table, err)
	}
	defer stmt.Close()

	for _, e := range entities {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding %s document: %w", table, err)
		}
		if _, err := stmt.ExecContext(ctx, id(e), string(doc)); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}
	return nil
}

// SaveReport appends one run document to the reports table.
func (s *SQLiteStore) SaveReport(ctx context.Context, r Report) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (kind, cycle_id, created_at, doc) VALUES (?, ?, ?, ?)`,
		r.Kind, r.CycleID, r.CreatedAt.UTC().Format(time.RFC3339Nano), string(doc))
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
