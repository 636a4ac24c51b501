// Package postgres provides a PostgreSQL key-value backend for shared
// deployments where several machines read the same dataset.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"printstack/internal/kv"
)

// Compile-time contract assertion.
var _ kv.Backend = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/printstack?sslmode=disable"
)

// Store persists keys to a single postgres table.
type Store struct {
	db *sql.DB
}

// NewStore opens a postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the state table exists.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", kv.ErrUnavailable, err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping postgres: %v", kv.ErrUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("%w: create state table: %v", kv.ErrUnavailable, err)
	}
	return &Store{db: db}, nil
}

// Get returns the payload stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM state WHERE key = $1`, key).Scan(&payload)
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
		`INSERT INTO state(key,payload) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`,
		key, value,
	); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM state WHERE key = $1`, key); err != nil {
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
