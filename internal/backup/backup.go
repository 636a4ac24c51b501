// Package backup exports and restores whole-environment snapshots of the
// persisted collections through the artifact store.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"printstack/internal/blob"
	"printstack/internal/env"
	"printstack/internal/storage"
)

// snapshotVersion is bumped when the snapshot document shape changes.
const snapshotVersion = 1

// snapshotKeys lists the persisted base keys captured by an export.
var snapshotKeys = []string{
	storage.KeyFilaments,
	storage.KeyModels,
	storage.KeyCategories,
	storage.KeyPrints,
	storage.KeySettings,
	storage.KeyStatistics,
}

// Snapshot is the JSON document written as a backup artifact.
type Snapshot struct {
	Version     int                        `json:"version"`
	Environment env.Environment            `json:"environment"`
	ExportedAt  time.Time                  `json:"exported_at"`
	Data        map[string]json.RawMessage `json:"data"`
}

// RestoreReport lists the keys a restore wrote back.
type RestoreReport struct {
	ArtifactKey string   `json:"artifact_key"`
	Environment string   `json:"environment"`
	Restored    []string `json:"restored"`
}

// Manager drives export and restore against one safe store and one
// artifact store.
type Manager struct {
	safe      *storage.SafeStore
	artifacts blob.Store
	log       storage.Logger
	nowFn     func() time.Time
}

// NewManager wires a backup manager. A nil logger is replaced by a no-op.
func NewManager(safe *storage.SafeStore, artifacts blob.Store, logger storage.Logger) *Manager {
	if logger == nil {
		logger = storage.NopLogger()
	}
	return &Manager{
		safe:      safe,
		artifacts: artifacts,
		log:       logger,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Export captures every persisted collection into one timestamped JSON
// artifact. Keys absent from storage are captured with their fallback
// defaults so a restored environment always has a complete shape.
func (m *Manager) Export(ctx context.Context) (blob.Artifact, error) {
	environment := m.safe.Resolver().Environment()
	snap := Snapshot{
		Version:     snapshotVersion,
		Environment: environment,
		ExportedAt:  m.nowFn(),
		Data:        make(map[string]json.RawMessage, len(snapshotKeys)),
	}
	for _, key := range snapshotKeys {
		res, err := m.safe.GetItem(ctx, key, storage.GetOptions{
			Default:     storage.FallbackData(key),
			BypassCache: true,
		})
		if err != nil {
			return blob.Artifact{}, fmt.Errorf("export %s: %w", key, err)
		}
		snap.Data[key] = res.Raw
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return blob.Artifact{}, err
	}
	key := fmt.Sprintf("%s/%s.json", environment, snap.ExportedAt.Format("20060102T150405Z"))
	artifact, err := m.artifacts.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"environment": string(environment)},
	})
	if err != nil {
		return blob.Artifact{}, fmt.Errorf("store snapshot %s: %w", key, err)
	}
	m.log.Info("exported backup snapshot", "key", artifact.Key, "bytes", artifact.Size)
	return artifact, nil
}

// Restore reads a snapshot artifact and writes its collections back into
// the current environment. Snapshots from a different environment restore
// fine; the data lands under the current namespace.
func (m *Manager) Restore(ctx context.Context, artifactKey string) (RestoreReport, error) {
	_, rc, err := m.artifacts.Get(ctx, artifactKey)
	if err != nil {
		return RestoreReport{}, fmt.Errorf("fetch snapshot %s: %w", artifactKey, err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return RestoreReport{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RestoreReport{}, fmt.Errorf("decode snapshot %s: %w", artifactKey, err)
	}
	if snap.Version > snapshotVersion {
		return RestoreReport{}, fmt.Errorf("snapshot %s has version %d, newer than supported %d", artifactKey, snap.Version, snapshotVersion)
	}
	report := RestoreReport{
		ArtifactKey: artifactKey,
		Environment: string(m.safe.Resolver().Environment()),
	}
	keys := make([]string, 0, len(snap.Data))
	for key := range snap.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !storage.CanUseFallbackData(key) {
			m.log.Warn("skipping unknown snapshot key", "key", key)
			continue
		}
		if _, err := m.safe.SetItem(ctx, key, snap.Data[key], storage.SetOptions{}); err != nil {
			return report, fmt.Errorf("restore %s: %w", key, err)
		}
		report.Restored = append(report.Restored, key)
	}
	m.log.Info("restored backup snapshot", "key", artifactKey, "keys", len(report.Restored))
	return report, nil
}

// List returns the artifacts stored for the current environment, newest
// key last.
func (m *Manager) List(ctx context.Context) ([]blob.Artifact, error) {
	prefix := string(m.safe.Resolver().Environment()) + "/"
	return m.artifacts.List(ctx, prefix)
}

// Latest returns the most recent artifact for the current environment.
func (m *Manager) Latest(ctx context.Context) (blob.Artifact, bool, error) {
	artifacts, err := m.List(ctx)
	if err != nil {
		return blob.Artifact{}, false, err
	}
	if len(artifacts) == 0 {
		return blob.Artifact{}, false, nil
	}
	return artifacts[len(artifacts)-1], true, nil
}
