// Package blob re-exports the artifact storage abstractions so call sites
// depend on one import path regardless of driver.
package blob

import (
	"printstack/internal/blob/core"
)

type (
	// Driver identifies an artifact backend driver.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Artifact describes stored artifact metadata.
	Artifact = core.Artifact
	// Store is the interface for artifact storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation a driver does not support.
var ErrUnsupported = core.ErrUnsupported
