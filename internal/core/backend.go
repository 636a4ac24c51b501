package core

import (
	"fmt"
	"os"

	"printstack/internal/infra/kv/memory"
	"printstack/internal/infra/kv/postgres"
	"printstack/internal/infra/kv/sqlite"
	"printstack/internal/kv"
)

// OpenBackend selects a key-value backend using environment variables.
// Defaults to sqlite when unset.
//
//	PRINTSTACK_KV_DRIVER: memory|sqlite|postgres (default sqlite)
//	PRINTSTACK_SQLITE_PATH: path to sqlite file (default ./printstack.db)
//	PRINTSTACK_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenBackend() (kv.Backend, error) {
	driver := os.Getenv("PRINTSTACK_KV_DRIVER")
	if driver == "" {
		driver = string(kv.DriverSQLite)
	}
	switch kv.Driver(driver) {
	case kv.DriverMemory:
		return memory.NewStore(), nil
	case kv.DriverSQLite:
		return sqlite.NewStore(os.Getenv("PRINTSTACK_SQLITE_PATH"))
	case kv.DriverPostgres:
		return postgres.NewStore(os.Getenv("PRINTSTACK_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown kv driver %s", driver)
	}
}
