// Package storage persists application state as last-write-wins JSON blobs
// in a local SQLite database, one blob per well-known key.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Well-known blob keys.
const (
	KeySessions = "chat_sessions"
	KeyConfig   = "app_config"
)

// Store is a key-value blob store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the blob store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createKVTable := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);`

	if _, err := db.Exec(createKVTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the blob stored under key. The second return is false when no
// value has been stored yet.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

// Put overwrites the blob stored under key. The write is durable before Put
// returns, so a Get in the same process always observes it.
func (s *Store) Put(key string, value []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
