// Package core defines the abstractions shared by the backup artifact
// storage backends.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete artifact storage backend.
type Driver string

const (
	// DriverFilesystem stores artifacts under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores artifacts in an S3 or MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps artifacts in process memory, for tests.
	DriverMemory Driver = "memory"
)

// PutOptions carries optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures pre-signed URL generation.
type SignedURLOptions struct {
	Method  string        // GET only for now
	Expiry  time.Duration // default 15m
	Headers map[string]string
}

// Artifact describes a stored backup artifact.
type Artifact struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size_bytes"`
	ContentType string            `json:"content_type,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	StoredAt    time.Time         `json:"stored_at"`
	URL         string            `json:"url,omitempty"`
}

// Store is the surface backup export and restore operate against. Put is
// create-only: artifact keys embed a timestamp and are never rewritten.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Artifact, error)
	Get(ctx context.Context, key string) (Artifact, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Artifact, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Artifact, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned when a driver lacks an optional capability.
var ErrUnsupported = errors.New("artifact store: unsupported operation")
