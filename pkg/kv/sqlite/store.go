// Package sqlite provides a persistent kv.Store backed by SQLite.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/inserter/pkg/kv"
)

// Store is a flat key-value table in a SQLite database.
type Store struct {
	db       *sql.DB
	maxBytes int64
}

const createKVTable = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// connParams makes writers wait for the lock instead of failing with
// SQLITE_BUSY, and takes the write lock at BEGIN so the quota read and the
// write happen under it.
const connParams = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// New opens (or creates) the database at dbPath. maxBytes above zero caps the
// summed byte size of all keys and values; writes past it fail with
// kv.ErrQuotaExceeded.
func New(dbPath string, maxBytes int64) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open kv db: %w", err)
	}

	if _, err := db.Exec(createKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate kv db: %w", err)
	}

	return &Store{db: db, maxBytes: maxBytes}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + connParams
}

// Get implements kv.Store.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get: %w", err)
	}
	return value, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(key, value string) error {
	if s.maxBytes <= 0 {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO kv_entries (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return fmt.Errorf("kv set: %w", err)
		}
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var others int64
	err = tx.QueryRow(
		`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(CAST(value AS BLOB))), 0)
		 FROM kv_entries WHERE key <> ?`,
		key,
	).Scan(&others)
	if err != nil {
		return fmt.Errorf("kv size: %w", err)
	}
	if others+int64(len(key)+len(value)) > s.maxBytes {
		return kv.ErrQuotaExceeded
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO kv_entries (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kv commit: %w", err)
	}
	return nil
}

// Remove implements kv.Store.
func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv remove: %w", err)
	}
	return nil
}

// ListKeysWithPrefix implements kv.Store. The prefix is matched literally;
// LIKE wildcards in it have no special meaning.
func (s *Store) ListKeysWithPrefix(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT key FROM kv_entries WHERE substr(key, 1, length(?)) = ?`,
		prefix, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("kv list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("kv list scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ kv.Store = (*Store)(nil)
