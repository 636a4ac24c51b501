package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Location tags where an operation ultimately read or wrote its value.
type Location string

// Storage locations reported in operation results.
const (
	LocationNative Location = "native"
	LocationMemory Location = "memory"
	LocationCache  Location = "cache"
	LocationNone   Location = "none"
)

// OperationResult describes the outcome of one safe-store operation.
type OperationResult struct {
	Success bool `json:"success"`
	// Key is the fully namespaced key the operation acted on.
	Key      string   `json:"key"`
	Location Location `json:"location"`
	// Exists is false when a read found nothing and returned a default.
	Exists bool `json:"exists"`
	// Raw carries the deserialized payload of a read (envelope stripped).
	Raw json.RawMessage `json:"raw,omitempty"`
	// IsFallback marks a read satisfied by schema-default data.
	IsFallback bool `json:"is_fallback,omitempty"`
	// IsRecovery marks a write that succeeded only after failing over to
	// the in-memory store.
	IsRecovery bool          `json:"is_recovery,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Timestamp  time.Time     `json:"timestamp"`
}

// StorageInfo is the diagnostic record returned by StorageInfo.
type StorageInfo struct {
	NativeAvailable bool          `json:"native_available"`
	ItemCount       int           `json:"item_count"`
	TotalBytes      int           `json:"total_bytes"`
	FallbackItems   int           `json:"fallback_items"`
	CacheEntries    int           `json:"cache_entries"`
	CacheTTL        time.Duration `json:"cache_ttl"`
}

// ErrorKind classifies storage failures for the propagation policy.
type ErrorKind string

// Storage error classifications.
const (
	KindQuotaExceeded      ErrorKind = "quota_exceeded"
	KindAccessDenied       ErrorKind = "access_denied"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindNotFound           ErrorKind = "not_found"
	KindCorruptEnvelope    ErrorKind = "corrupt_envelope"
	KindStorageError       ErrorKind = "storage_error"
)

// Error is a classified storage failure tagged with the affected key.
type Error struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage %s: key %s", e.Kind, e.Key)
	}
	return fmt.Sprintf("storage %s: key %s: %v", e.Kind, e.Key, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *Error) Unwrap() error { return e.Err }
