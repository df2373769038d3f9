package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// CatalogFileName is the SQLite catalog inside a storage root.
const CatalogFileName = "catalog.db"

// ErrNotInCatalog is returned by Catalog.Get for unknown documents.
var ErrNotInCatalog = errors.New("document not in catalog")

// CatalogEntry describes one ingested document.
type CatalogEntry struct {
	ID         string
	Source     string
	Model      string
	Sentences  int
	Dimensions int
	TextBytes  int
	Skipped    int
	Truncated  bool
	RunID      string
	IngestedAt time.Time
}

// Run is one ingestion invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Ingested   int
	Skipped    int
	Failed     int
}

// Catalog records ingestion bookkeeping next to the document folders. The
// folders stay the source of truth; the catalog answers status queries
// without decoding every data.bin.
type Catalog struct {
	db   *sql.DB
	path string
}

// OpenCatalog opens or creates the catalog under root.
func OpenCatalog(root string) (*Catalog, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	path := filepath.Join(root, CatalogFileName)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	c := &Catalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER,
		ingested    INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		model       TEXT NOT NULL,
		sentences   INTEGER NOT NULL,
		dimensions  INTEGER NOT NULL,
		text_bytes  INTEGER NOT NULL,
		skipped     INTEGER NOT NULL DEFAULT 0,
		truncated   INTEGER NOT NULL DEFAULT 0,
		run_id      TEXT,
		ingested_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Path returns the catalog file path.
func (c *Catalog) Path() string { return c.path }

// BeginRun records the start of an ingestion run and returns its id.
func (c *Catalog) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`, id, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome counts of a run.
func (c *Catalog) FinishRun(ctx context.Context, runID string, ingested, skipped, failed int) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, ingested = ?, skipped = ?, failed = ? WHERE id = ?`,
		time.Now().UnixMilli(), ingested, skipped, failed, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil if none exists.
func (c *Catalog) LastRun(ctx context.Context) (*Run, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, 0), ingested, skipped, failed
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)

	var r Run
	var started, finished int64
	if err := row.Scan(&r.ID, &started, &finished, &r.Ingested, &r.Skipped, &r.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last run: %w", err)
	}
	r.StartedAt = time.UnixMilli(started)
	if finished > 0 {
		r.FinishedAt = time.UnixMilli(finished)
	}
	return &r, nil
}

// Upsert inserts or replaces a document entry.
func (c *Catalog) Upsert(ctx context.Context, e CatalogEntry) error {
	if e.IngestedAt.IsZero() {
		e.IngestedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (id, source, model, sentences, dimensions, text_bytes, skipped, truncated, run_id, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			model = excluded.model,
			sentences = excluded.sentences,
			dimensions = excluded.dimensions,
			text_bytes = excluded.text_bytes,
			skipped = excluded.skipped,
			truncated = excluded.truncated,
			run_id = excluded.run_id,
			ingested_at = excluded.ingested_at`,
		e.ID, e.Source, e.Model, e.Sentences, e.Dimensions, e.TextBytes, e.Skipped, boolToInt(e.Truncated),
		e.RunID, e.IngestedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.ID, err)
	}
	return nil
}

// Get returns the entry of a document or ErrNotInCatalog.
func (c *Catalog) Get(ctx context.Context, id string) (*CatalogEntry, error) {
	row := c.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInCatalog
	}
	return e, err
}

// List returns all entries ordered by id.
func (c *Catalog) List(ctx context.Context) ([]CatalogEntry, error) {
	rows, err := c.db.QueryContext(ctx, selectEntry+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Delete removes a document entry. Unknown ids are ignored.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// Close checkpoints the WAL and closes the database.
func (c *Catalog) Close() error {
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

const selectEntry = `SELECT id, source, model, sentences, dimensions, text_bytes, skipped, truncated,
	COALESCE(run_id, ''), ingested_at FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*CatalogEntry, error) {
	var e CatalogEntry
	var truncated int
	var ingested int64
	if err := row.Scan(&e.ID, &e.Source, &e.Model, &e.Sentences, &e.Dimensions, &e.TextBytes,
		&e.Skipped, &truncated, &e.RunID, &ingested); err != nil {
		return nil, err
	}
	e.Truncated = truncated != 0
	e.IngestedAt = time.UnixMilli(ingested)
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
