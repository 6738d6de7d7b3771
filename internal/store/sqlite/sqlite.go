// Package sqlite implements the model registry on an embedded SQLite database.
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/chriscorrea/civil/internal/store"
)

// timeLayout has fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements store.Store using SQLite
type sqliteStore struct {
	db *sql.DB

	mu      sync.Mutex // guards entropy
	entropy *ulid.MonotonicEntropy
}

// Open opens (or creates) the registry at path with WAL mode enabled.
// Parent directories are created as needed; ":memory:" opens a private
// in-memory registry.
func Open(ctx context.Context, path string) (store.Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create registry directory: %w", err)
			}
		}
	}

	dsn := path
	if path != ":memory:" {
		// applied to every pooled connection, unlike a one-off PRAGMA
		dsn = "file:" + filepath.ToSlash(path) + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("Model registry opened", "path", path)
	return &sqliteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS models (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	stemmer TEXT NOT NULL,
	examples INTEGER NOT NULL DEFAULT 0,
	accuracy REAL NOT NULL DEFAULT 0,
	f1 REAL NOT NULL DEFAULT 0,
	artifact BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_models_created ON models(created_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *sqliteStore) Save(ctx context.Context, rec *store.Record) error {
	if len(rec.Artifact) == 0 {
		return fmt.Errorf("refusing to save model without artifact")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.ID == "" {
		rec.ID = s.newID(rec.CreatedAt)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO models (id, name, created_at, fingerprint, stemmer, examples, accuracy, f1, artifact)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.CreatedAt.UTC().Format(timeLayout), rec.Fingerprint, rec.Stemmer,
		rec.Examples, rec.Accuracy, rec.F1, rec.Artifact)
	if err != nil {
		return fmt.Errorf("failed to save model %s: %w", rec.ID, err)
	}

	slog.Debug("Model saved", "id", rec.ID, "bytes", len(rec.Artifact))
	return nil
}

const selectColumns = `id, name, created_at, fingerprint, stemmer, examples, accuracy, f1`

func (s *sqliteStore) Get(ctx context.Context, id string) (store.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+`, artifact FROM models WHERE id = ?`, id)
	rec, err := scanRecord(row, true)
	if err != nil {
		return store.Record{}, fmt.Errorf("model %s: %w", id, err)
	}
	return rec, nil
}

func (s *sqliteStore) Latest(ctx context.Context) (store.Record, error) {
	// ULIDs sort by creation time, so id breaks timestamp ties
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+`, artifact FROM models ORDER BY created_at DESC, id DESC LIMIT 1`)
	rec, err := scanRecord(row, true)
	if err != nil {
		return store.Record{}, fmt.Errorf("latest model: %w", err)
	}
	return rec, nil
}

func (s *sqliteStore) List(ctx context.Context, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM models ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("model %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, withArtifact bool) (store.Record, error) {
	var rec store.Record
	var createdAt string
	dest := []any{&rec.ID, &rec.Name, &createdAt, &rec.Fingerprint, &rec.Stemmer,
		&rec.Examples, &rec.Accuracy, &rec.F1}
	if withArtifact {
		dest = append(dest, &rec.Artifact)
	}

	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, err
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return store.Record{}, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = t
	return rec, nil
}
