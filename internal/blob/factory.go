package blob

import (
	"context"
	"fmt"
	"os"

	"printstack/internal/infra/blob/fs"
	memorystore "printstack/internal/infra/blob/memory"
	s3store "printstack/internal/infra/blob/s3"
)

// Open selects an artifact Store implementation from the environment.
//
//	PRINTSTACK_BLOB_DRIVER: fs|s3|memory (default fs)
//	PRINTSTACK_BLOB_FS_ROOT: directory root when driver=fs (default ./backups)
//	(S3 variables are documented in the s3 driver.)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("PRINTSTACK_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("PRINTSTACK_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at path.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }
