// Package catalog tracks the annotation documents known to this
// installation in a SQLite database, so tooling can list and reopen
// scorings without rescanning the filesystem.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one cataloged annotation document.
type Entry struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	Rater         string    `json:"rater"`
	EpochCount    int       `json:"epoch_count"`
	ScoredSeconds int       `json:"scored_seconds"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SQLiteCatalog implements the catalog on SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		rater TEXT NOT NULL,
		epoch_count INTEGER NOT NULL,
		scored_seconds INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_rater ON documents(rater);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert records entry keyed by path: a new path is inserted with a fresh
// id, a known path has its rater/epoch columns refreshed. entry.ID,
// CreatedAt and UpdatedAt are filled in either way.
func (c *SQLiteCatalog) Upsert(ctx context.Context, entry *Entry) error {
	var id string
	var createdAt time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM documents WHERE path = ?`, entry.Path,
	).Scan(&id, &createdAt)

	entry.UpdatedAt = time.Now()
	switch {
	case err == sql.ErrNoRows:
		entry.ID = uuid.New().String()
		entry.CreatedAt = entry.UpdatedAt
		_, err = c.db.ExecContext(ctx,
			`INSERT INTO documents (id, path, rater, epoch_count, scored_seconds, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.Path, entry.Rater, entry.EpochCount, entry.ScoredSeconds, entry.CreatedAt, entry.UpdatedAt,
		)
		return err
	case err != nil:
		return err
	default:
		entry.ID = id
		entry.CreatedAt = createdAt
		_, err = c.db.ExecContext(ctx,
			`UPDATE documents SET rater = ?, epoch_count = ?, scored_seconds = ?, updated_at = ?
			 WHERE path = ?`,
			entry.Rater, entry.EpochCount, entry.ScoredSeconds, entry.UpdatedAt, entry.Path,
		)
		return err
	}
}

// GetByPath returns the entry for path.
func (c *SQLiteCatalog) GetByPath(ctx context.Context, path string) (*Entry, error) {
	var e Entry
	err := c.db.QueryRowContext(ctx,
		`SELECT id, path, rater, epoch_count, scored_seconds, created_at, updated_at
		 FROM documents WHERE path = ?`, path,
	).Scan(&e.ID, &e.Path, &e.Rater, &e.EpochCount, &e.ScoredSeconds, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not cataloged: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns all entries, most recently updated first.
func (c *SQLiteCatalog) List(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, path, rater, epoch_count, scored_seconds, created_at, updated_at
		 FROM documents ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Path, &e.Rater, &e.EpochCount, &e.ScoredSeconds, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Remove drops the entry for path. Removing an unknown path is not an error.
func (c *SQLiteCatalog) Remove(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	return err
}

// Count returns the number of cataloged documents.
func (c *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
