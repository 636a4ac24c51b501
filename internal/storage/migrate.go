package storage

import (
	"context"
	"fmt"
	"sync"

	"printstack/internal/env"
)

// Legacy un-namespaced keys eligible for migration. Nothing outside this
// allow-list is touched.
var legacyKeys = []string{
	"printstack_filaments",
	"printstack_models",
	"printstack_categories",
	"printstack_prints",
	"printstack_settings",
	"printstack_statistics",
	"printstack_theme",
}

// SkippedKey records a legacy key the migration left alone.
type SkippedKey struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// FailedKey records a legacy key whose migration failed.
type FailedKey struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// MigrationReport summarizes one MigrateLegacyData run.
type MigrationReport struct {
	Migrated []string     `json:"migrated"`
	Skipped  []SkippedKey `json:"skipped"`
	Failed   []FailedKey  `json:"failed"`
}

// MigrationError reports that at least one legacy key failed to migrate.
// Other keys continue regardless.
type MigrationError struct {
	Report MigrationReport
}

func (e MigrationError) Error() string {
	return fmt.Sprintf("migration completed with %d failed keys", len(e.Report.Failed))
}

// MigrationManager moves pre-namespace records into the current
// environment's namespace exactly once per process.
type MigrationManager struct {
	store *SafeStore
	log   Logger

	once   sync.Once
	report MigrationReport
	runErr error
}

// NewMigrationManager constructs a manager over the given safe store.
func NewMigrationManager(store *SafeStore, logger Logger) *MigrationManager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MigrationManager{store: store, log: logger}
}

// MigrateLegacyData migrates every allow-listed legacy key: a legacy value
// moves to its namespaced key only when the namespaced key is empty; when
// both exist the namespaced record wins and the legacy key is skipped
// untouched. Repeat invocations on the same manager are no-ops returning
// the first run's report.
func (m *MigrationManager) MigrateLegacyData(ctx context.Context) (MigrationReport, error) {
	m.once.Do(func() {
		m.report, m.runErr = m.run(ctx)
	})
	return m.report, m.runErr
}

func (m *MigrationManager) run(ctx context.Context) (MigrationReport, error) {
	_ = ctx
	var report MigrationReport
	resolver := m.store.Resolver()
	for _, legacyKey := range legacyKeys {
		if !env.IsLegacyKey(legacyKey) {
			continue
		}
		namespaced := resolver.NamespacedKey(legacyKey)

		legacyRaw, legacyFound, err := m.store.rawGet(legacyKey)
		if err != nil {
			report.Failed = append(report.Failed, FailedKey{Key: legacyKey, Error: err.Error()})
			m.log.Error("legacy read failed", "key", legacyKey, "error", err)
			continue
		}
		if !legacyFound {
			report.Skipped = append(report.Skipped, SkippedKey{Key: legacyKey, Reason: "no legacy value"})
			continue
		}

		_, namespacedFound, err := m.store.rawGet(namespaced)
		if err != nil {
			report.Failed = append(report.Failed, FailedKey{Key: legacyKey, Error: err.Error()})
			continue
		}
		if namespacedFound {
			// Newer record wins; legacy value is left in place for cleanup.
			report.Skipped = append(report.Skipped, SkippedKey{Key: legacyKey, Reason: "namespaced version already exists"})
			continue
		}

		if err := m.store.rawSet(namespaced, legacyRaw); err != nil {
			report.Failed = append(report.Failed, FailedKey{Key: legacyKey, Error: err.Error()})
			m.log.Error("legacy migrate failed", "key", legacyKey, "error", err)
			continue
		}
		if err := m.store.rawRemove(legacyKey); err != nil {
			report.Failed = append(report.Failed, FailedKey{Key: legacyKey, Error: err.Error()})
			continue
		}
		report.Migrated = append(report.Migrated, legacyKey)
		m.log.Info("migrated legacy key", "from", legacyKey, "to", namespaced)
	}
	if len(report.Failed) > 0 {
		return report, MigrationError{Report: report}
	}
	return report, nil
}

// CleanupLegacyData removes residual legacy-keyed records. Intended to be
// run by an operator after confirming a successful migration.
func (m *MigrationManager) CleanupLegacyData(ctx context.Context) ([]string, error) {
	_ = ctx
	var removed []string
	for _, legacyKey := range legacyKeys {
		_, found, err := m.store.rawGet(legacyKey)
		if err != nil || !found {
			continue
		}
		if err := m.store.rawRemove(legacyKey); err != nil {
			return removed, err
		}
		removed = append(removed, legacyKey)
	}
	return removed, nil
}
