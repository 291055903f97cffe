// Package index provides the sqlite-backed search index for scanvault.
// It holds the structured files table and the FTS5 search_index table and
// enforces the atomic commit contract between them.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned by Commit when a record for the same original
// path already exists. Two workers racing on the same source path resolve
// here rather than corrupting the index.
var ErrDuplicate = errors.New("file already indexed")

// busyRetries bounds the retry loop around transient sqlite lock
// contention. The busy timeout on the connection handles short waits; the
// loop covers the SQLITE_BUSY returns that still escape it under high
// worker counts.
const busyRetries = 5

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	original_path TEXT UNIQUE,
	processed_path TEXT,
	page_count INTEGER,
	processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
	file_id UNINDEXED,
	page_num UNINDEXED,
	content,
	bbox_json UNINDEXED,
	width UNINDEXED,
	height UNINDEXED
);
`

// Store wraps the sqlite database holding the search index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the index database at path and ensures
// the schema exists. The parent directory is created on demand.
func Open(path string, busyTimeoutMS int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL",
		path, busyTimeoutMS)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize index schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether a file record for originalPath has been committed.
// This is the dedup guard consulted before a task enters the pipeline.
func (s *Store) Exists(ctx context.Context, originalPath string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM files WHERE original_path = ?`, originalPath).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query file record: %w", err)
	}
	return true, nil
}

// Commit inserts the file record and all of its page entries in a single
// transaction. Either everything becomes visible or nothing does; a reader
// never observes a file record with a partial set of pages. Transient lock
// contention is retried; a unique-constraint violation on original_path
// surfaces as ErrDuplicate.
func (s *Store) Commit(ctx context.Context, rec *FileRecord, pages []PageEntry) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = s.commitOnce(ctx, rec, pages)
		if err == nil || !isBusy(err) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return err
}

func (s *Store) commitOnce(ctx context.Context, rec *FileRecord, pages []PageEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO files (original_path, processed_path, page_count) VALUES (?, ?, ?)`,
		rec.OriginalPath, rec.ProcessedPath, rec.PageCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert file record: %w", err)
	}

	fileID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read file record id: %w", err)
	}
	rec.ID = fileID

	for _, page := range pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_index (file_id, page_num, content, bbox_json, width, height)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			fileID, page.PageNum, page.Content, page.BBoxJSON, page.Width, page.Height,
		); err != nil {
			return fmt.Errorf("insert page %d: %w", page.PageNum, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index transaction: %w", err)
	}
	return nil
}

// Stats returns the committed file and page counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files`).Scan(&st.Files); err != nil {
		return Stats{}, fmt.Errorf("count files: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_index`).Scan(&st.Pages); err != nil {
		return Stats{}, fmt.Errorf("count pages: %w", err)
	}
	return st, nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}
