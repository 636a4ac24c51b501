// Package sqlite provides the embedded sqlite key-value backend, the
// default native store for desktop deployments.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"printstack/internal/kv"
)

// Compile-time contract assertion.
var _ kv.Backend = (*Store)(nil)

// Store persists keys to a single sqlite table.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if necessary) a sqlite-backed store at path.
// An empty path defaults to printstack.db in the working directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "printstack.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", kv.ErrUnavailable, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("%w: create state table: %v", kv.ErrUnavailable, err)
	}
	return &Store{db: db, path: path}, nil
}

// Get returns the payload stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM state WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, true, nil
}

// Set upserts the payload under key.
func (s *Store) Set(key, value string) error {
	if _, err := s.db.Exec(
		`INSERT INTO state(key,payload) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`,
		key, value,
	); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear drops every stored item.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM state`); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}

// Keys returns all stored keys in lexical order.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM state ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
