// Package cache persists a content fingerprint per output filename
// across runs and decides whether a render needs to be written, keeping
// repeated runs idempotent and filesystem-stable.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/daverre/graphpress/internal/apperr"
	"github.com/daverre/graphpress/internal/fingerprint"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	filename    TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	edited_at   DATETIME NOT NULL
);
`

// Decision is the outcome of a cache lookup.
type Decision int

const (
	// Skip means the stored fingerprint matches; nothing to write.
	Skip Decision = iota
	// Write means the content is new or changed and must be written.
	Write
)

// Record is one persisted cache row.
type Record struct {
	Filename    string
	Fingerprint string
	CreatedAt   time.Time
	EditedAt    time.Time
}

// Store wraps the SQLite cache database. The shared *sql.DB handle is
// the concurrency boundary; decisions for distinct filenames may run
// from any number of workers.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the cache database and applies the schema.
// Any failure here is fatal for the run.
func Open(dsn string) (*Store, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w: %w", apperr.ErrCacheUnavailable, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w: %w", apperr.ErrCacheUnavailable, err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w: %w", apperr.ErrCacheUnavailable, err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Decide computes the fingerprint of rendered and compares it with the
// stored record for filename. An identical fingerprint yields Skip and
// leaves timestamps untouched; otherwise the record is upserted
// (created_at preserved on update) and the caller must write.
func (s *Store) Decide(filename string, rendered []byte) (Decision, error) {
	fp := fingerprint.Of(rendered)

	var stored string
	err := s.conn.QueryRow(`SELECT fingerprint FROM pages WHERE filename = ?`, filename).Scan(&stored)
	switch {
	case err == nil:
		if stored == fp {
			return Skip, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		// fall through to upsert
	default:
		return Skip, fmt.Errorf("cache: lookup %s: %w: %w", filename, apperr.ErrCacheUnavailable, err)
	}

	now := time.Now().UTC()
	_, err = s.conn.Exec(`
		INSERT INTO pages (filename, fingerprint, created_at, edited_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			edited_at   = excluded.edited_at
	`, filename, fp, now, now)
	if err != nil {
		return Skip, fmt.Errorf("cache: upsert %s: %w: %w", filename, apperr.ErrCacheUnavailable, err)
	}
	return Write, nil
}

// Get returns the stored record for filename, or apperr.ErrNotFound.
func (s *Store) Get(filename string) (*Record, error) {
	var rec Record
	err := s.conn.QueryRow(`
		SELECT filename, fingerprint, created_at, edited_at
		FROM pages WHERE filename = ?`, filename).
		Scan(&rec.Filename, &rec.Fingerprint, &rec.CreatedAt, &rec.EditedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache: %s: %w", filename, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w: %w", filename, apperr.ErrCacheUnavailable, err)
	}
	return &rec, nil
}
