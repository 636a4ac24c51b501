// Package kv defines the raw key-value persistence surface consumed by the
// safe storage layer. Values are opaque strings; serialization belongs to
// the caller.
package kv

import "errors"

// Driver identifies a concrete key-value backend implementation.
type Driver string

const (
	// DriverMemory is the in-memory backend (fallback and tests).
	DriverMemory Driver = "memory"
	// DriverSQLite is the embedded sqlite file backend (default).
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is the PostgreSQL server backend.
	DriverPostgres Driver = "postgres"
)

// Sentinel errors backends use to make failures distinguishable. The safe
// store classifies on these with errors.Is.
var (
	// ErrQuotaExceeded reports a write rejected for capacity reasons.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
	// ErrAccessDenied reports a read or write the backend refused.
	ErrAccessDenied = errors.New("kv: access denied")
	// ErrUnavailable reports a backend that cannot be reached at all.
	ErrUnavailable = errors.New("kv: store unavailable")
)

// Backend is the minimal store contract: get, set, remove, clear, plus key
// enumeration for diagnostics and migration.
type Backend interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Clear() error
	Keys() ([]string, error)
}
