// Package store persists CrawledRecords to SQLite via dbopen's
// pragma-applying Open, mirroring the teacher's dbopen.WithSchema/
// WithMkdirAll usage for its own service-local tables.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/reader/dbopen"
)

const schema = `
CREATE TABLE IF NOT EXISTS crawled_records (
	id            TEXT PRIMARY KEY,
	created_at    INTEGER NOT NULL,
	snapshot_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crawled_records_created_at ON crawled_records(created_at);
`

// CrawledRecord is the read-only-from-C7 index row spec.md §3 describes.
type CrawledRecord struct {
	ID           string
	CreatedAt    time.Time
	SnapshotPath string
}

// Store wraps a SQLite-backed crawled_records table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store's database at path using the raw sqlite
// driver.
func Open(path string) (*Store, error) {
	return open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
}

// OpenTraced is identical to Open but routes every query through trace's
// "sqlite-trace" driver, so crawled_records reads and writes show up in the
// trace store alongside every other SQL call in the process. The trace
// package must already be blank-imported and have a store installed via
// trace.SetStore before this is called.
func OpenTraced(path string) (*Store, error) {
	return open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema), dbopen.WithDriver("sqlite-trace"))
}

func open(path string, opts ...dbopen.Option) (*Store, error) {
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert records one crawl result. Used by the crawl-serving path after a
// successful scrape, prior to C7 ever seeing the record.
func (s *Store) Insert(ctx context.Context, r CrawledRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawled_records (id, created_at, snapshot_path) VALUES (?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Unix(), r.SnapshotPath,
	)
	if err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

// RecordsInRange returns records with createdAt in [from, to), ordered
// ascending, for the given offset/limit page — C7's per-batch query.
func (s *Store) RecordsInRange(ctx context.Context, from, to time.Time, offset, limit int) ([]CrawledRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, snapshot_path FROM crawled_records
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC
		 LIMIT ? OFFSET ?`,
		from.UTC().Unix(), to.UTC().Unix(), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query range: %w", err)
	}
	defer rows.Close()

	var out []CrawledRecord
	for rows.Next() {
		var r CrawledRecord
		var createdAt int64
		if err := rows.Scan(&r.ID, &createdAt, &r.SnapshotPath); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
