// Package core wires the domain stores, derivation engine, persistence,
// and backups into one service facade with explicit dependencies.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"printstack/internal/backup"
	"printstack/internal/blob"
	"printstack/internal/derive"
	"printstack/internal/env"
	"printstack/internal/kv"
	"printstack/internal/storage"
	"printstack/internal/store"
	"printstack/pkg/domain"
)

// Options configures a Service. Resolver is required; everything else has
// a usable zero value.
type Options struct {
	Resolver *env.Resolver
	// Backend is the native key-value store. Nil runs on the in-memory
	// fallback alone.
	Backend kv.Backend
	// Artifacts enables backup export and restore when set.
	Artifacts blob.Store

	DisableFallback bool
	CacheTTL        time.Duration
	CacheCapacity   int
	MaxAttempts     int
	BackoffBase     time.Duration

	Logger  Logger
	Metrics MetricsRecorder
	Tracer  Tracer

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Service is the facade applications operate through. Construct with New,
// then call Start once before use.
type Service struct {
	resolver  *env.Resolver
	safe      *storage.SafeStore
	migration *storage.MigrationManager
	filaments *store.Filaments
	models    *store.Models
	prints    *store.Prints
	backups   *backup.Manager

	log     Logger
	metrics MetricsRecorder
	tracer  Tracer
	nowFn   func() time.Time

	settingsMu sync.RWMutex
	settings   domain.Settings

	memoMu sync.Mutex
	memo   printabilityMemo

	migrated        bool
	migrationReport storage.MigrationReport
}

type printabilityMemo struct {
	valid            bool
	strict           bool
	modelsVersion    uint64
	filamentsVersion uint64
	reports          []PrintabilityReport
}

// PrintabilityReport pairs a model with its derived printability.
type PrintabilityReport struct {
	Model    domain.Model         `json:"model"`
	CanPrint bool                 `json:"can_print"`
	Missing  []domain.Requirement `json:"missing"`
}

// VarianceReport pairs a print with its variance analysis, recomputed
// against the current model when it still exists.
type VarianceReport struct {
	Print    domain.Print            `json:"print"`
	Analysis domain.VarianceAnalysis `json:"analysis"`
}

// StatisticsSnapshot aggregates the per-store statistics.
type StatisticsSnapshot struct {
	Filaments   store.FilamentStats `json:"filaments"`
	Models      store.ModelStats    `json:"models"`
	Prints      store.PrintStats    `json:"prints"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// New constructs a Service from options. Call Start to migrate and load.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noopTracer{}
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	safe := storage.New(storage.Options{
		Resolver:        opts.Resolver,
		Native:          opts.Backend,
		DisableFallback: opts.DisableFallback,
		CacheTTL:        opts.CacheTTL,
		CacheCapacity:   opts.CacheCapacity,
		MaxAttempts:     opts.MaxAttempts,
		BackoffBase:     opts.BackoffBase,
		Logger:          logger,
		Now:             opts.Now,
		Sleep:           opts.Sleep,
	})
	svc := &Service{
		resolver:  opts.Resolver,
		safe:      safe,
		migration: storage.NewMigrationManager(safe, logger),
		filaments: store.NewFilaments(safe, logger),
		models:    store.NewModels(safe, logger),
		prints:    store.NewPrints(safe, logger),
		log:       logger,
		metrics:   metrics,
		tracer:    tracer,
		nowFn:     nowFn,
		settings:  domain.DefaultSettings(),
	}
	svc.models.SetReferenceGuard(svc.prints.ReferencesModel)
	svc.prints.SetModelResolver(svc.models.Get)
	if opts.Artifacts != nil {
		svc.backups = backup.NewManager(safe, opts.Artifacts, logger)
	}
	return svc
}

// OpenFromEnv builds a Service from process environment: resolver from
// PRINTSTACK_HOST/PRINTSTACK_ENV, backend from PRINTSTACK_KV_DRIVER, and
// backup artifacts from PRINTSTACK_BLOB_DRIVER when set.
func OpenFromEnv(ctx context.Context, logger Logger) (*Service, error) {
	backend, err := OpenBackend()
	if err != nil {
		return nil, err
	}
	opts := Options{
		Resolver: env.FromOS(),
		Backend:  backend,
		Logger:   logger,
	}
	if driver := os.Getenv("PRINTSTACK_BLOB_DRIVER"); driver != "" {
		artifacts, err := blob.Open(ctx)
		if err != nil {
			return nil, err
		}
		opts.Artifacts = artifacts
	}
	return New(opts), nil
}

// Start migrates legacy keys and loads every collection. Migration
// failures degrade to a warning; they never block startup.
func (s *Service) Start(ctx context.Context) error {
	return s.observe(ctx, "start", func(ctx context.Context) error {
		report, err := s.migration.MigrateLegacyData(ctx)
		s.migrated = true
		s.migrationReport = report
		if err != nil {
			s.log.Warn("legacy migration finished with failures", "error", err)
		} else if len(report.Migrated) > 0 {
			s.log.Info("migrated legacy keys", "count", len(report.Migrated))
		}
		if err := s.filaments.Load(ctx); err != nil {
			return fmt.Errorf("load filaments: %w", err)
		}
		if err := s.models.Load(ctx); err != nil {
			return fmt.Errorf("load models: %w", err)
		}
		if err := s.prints.Load(ctx); err != nil {
			return fmt.Errorf("load prints: %w", err)
		}
		return s.loadSettings(ctx)
	})
}

func (s *Service) loadSettings(ctx context.Context) error {
	defaults := domain.DefaultSettings()
	raw, err := json.Marshal(defaults)
	if err != nil {
		return err
	}
	loaded := defaults
	if _, err := s.safe.GetJSON(ctx, storage.KeySettings, &loaded, storage.GetOptions{Default: raw}); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	// A standalone theme key survives from legacy installs; it wins over
	// the settings document.
	var theme string
	if res, err := s.safe.GetJSON(ctx, "theme", &theme, storage.GetOptions{}); err == nil && res.Exists && theme != "" {
		loaded.Theme = theme
	}
	s.settingsMu.Lock()
	s.settings = loaded
	s.settingsMu.Unlock()
	return nil
}

// Resolver returns the environment resolver in use.
func (s *Service) Resolver() *env.Resolver { return s.resolver }

// SafeStore exposes the persistence layer, mainly for tooling and tests.
func (s *Service) SafeStore() *storage.SafeStore { return s.safe }

// Filaments exposes the filament store for advanced queries.
func (s *Service) Filaments() *store.Filaments { return s.filaments }

// Models exposes the model store for advanced queries.
func (s *Service) Models() *store.Models { return s.models }

// Prints exposes the print store for advanced queries.
func (s *Service) Prints() *store.Prints { return s.prints }

// MigrationReport returns the one-shot legacy migration outcome, valid
// after Start.
func (s *Service) MigrationReport() (storage.MigrationReport, bool) {
	return s.migrationReport, s.migrated
}

// CleanupLegacyData removes residual legacy keys left by skipped
// migrations.
func (s *Service) CleanupLegacyData(ctx context.Context) ([]string, error) {
	var removed []string
	err := s.observe(ctx, "cleanup_legacy", func(ctx context.Context) error {
		var err error
		removed, err = s.migration.CleanupLegacyData(ctx)
		return err
	})
	return removed, err
}

// StorageInfo describes the persistence layer health.
func (s *Service) StorageInfo() storage.StorageInfo { return s.safe.StorageInfo() }

func validationErr(entity domain.EntityType, msgs []string) error {
	return domain.ValidationError{Entity: entity, Messages: msgs}
}

// --- filaments ---

func (s *Service) AddFilament(ctx context.Context, f domain.Filament) (domain.Filament, error) {
	var created domain.Filament
	err := s.observe(ctx, "filament_add", func(ctx context.Context) error {
		var ok bool
		var msgs []string
		created, ok, msgs = s.filaments.Add(ctx, f)
		if !ok {
			return validationErr(domain.EntityFilament, msgs)
		}
		return nil
	})
	return created, err
}

func (s *Service) UpdateFilament(ctx context.Context, f domain.Filament) (domain.Filament, error) {
	var updated domain.Filament
	err := s.observe(ctx, "filament_update", func(ctx context.Context) error {
		if _, ok := s.filaments.Get(f.ID); !ok {
			return domain.ErrNotFound{Entity: domain.EntityFilament, ID: f.ID}
		}
		var ok bool
		var msgs []string
		updated, ok, msgs = s.filaments.Update(ctx, f)
		if !ok {
			return validationErr(domain.EntityFilament, msgs)
		}
		return nil
	})
	return updated, err
}

// DeleteFilament removes a spool. Models referencing it keep their
// requirement rows; printability reports surface the gap.
func (s *Service) DeleteFilament(ctx context.Context, id string) error {
	return s.observe(ctx, "filament_delete", func(ctx context.Context) error {
		if _, ok := s.filaments.Get(id); !ok {
			return domain.ErrNotFound{Entity: domain.EntityFilament, ID: id}
		}
		if ok, msgs := s.filaments.Delete(ctx, id); !ok {
			return validationErr(domain.EntityFilament, msgs)
		}
		return nil
	})
}

func (s *Service) GetFilament(id string) (domain.Filament, error) {
	f, ok := s.filaments.Get(id)
	if !ok {
		return domain.Filament{}, domain.ErrNotFound{Entity: domain.EntityFilament, ID: id}
	}
	return f, nil
}

func (s *Service) ListFilaments() []domain.Filament { return s.filaments.List() }

func (s *Service) QueryFilaments(filter domain.Filter, sortBy *domain.Sort) []domain.Filament {
	return s.filaments.Query(filter, sortBy)
}

func (s *Service) SearchFilaments(text string) []domain.Filament {
	return s.filaments.Search(text)
}

// LowStockFilaments lists in-stock spools at or below the configured
// low-stock threshold.
func (s *Service) LowStockFilaments() []domain.Filament {
	s.settingsMu.RLock()
	threshold := s.settings.LowStockThresholdG
	s.settingsMu.RUnlock()
	return s.filaments.LowStock(threshold)
}

func (s *Service) FilamentStatistics() store.FilamentStats { return s.filaments.Statistics() }

// --- models and categories ---

func (s *Service) AddModel(ctx context.Context, m domain.Model) (domain.Model, error) {
	var created domain.Model
	err := s.observe(ctx, "model_add", func(ctx context.Context) error {
		var ok bool
		var msgs []string
		created, ok, msgs = s.models.Add(ctx, m)
		if !ok {
			return validationErr(domain.EntityModel, msgs)
		}
		return nil
	})
	return created, err
}

func (s *Service) UpdateModel(ctx context.Context, m domain.Model) (domain.Model, error) {
	var updated domain.Model
	err := s.observe(ctx, "model_update", func(ctx context.Context) error {
		if _, ok := s.models.Get(m.ID); !ok {
			return domain.ErrNotFound{Entity: domain.EntityModel, ID: m.ID}
		}
		var ok bool
		var msgs []string
		updated, ok, msgs = s.models.Update(ctx, m)
		if !ok {
			return validationErr(domain.EntityModel, msgs)
		}
		return nil
	})
	return updated, err
}

// DeleteModel refuses while prints still reference the model.
func (s *Service) DeleteModel(ctx context.Context, id string) error {
	return s.observe(ctx, "model_delete", func(ctx context.Context) error {
		if _, ok := s.models.Get(id); !ok {
			return domain.ErrNotFound{Entity: domain.EntityModel, ID: id}
		}
		if ok, msgs := s.models.Delete(ctx, id); !ok {
			msg := "model is referenced"
			if len(msgs) > 0 {
				msg = msgs[0]
			}
			return domain.ReferentialError{Entity: domain.EntityModel, ID: id, Message: msg}
		}
		return nil
	})
}

func (s *Service) GetModel(id string) (domain.Model, error) {
	m, ok := s.models.Get(id)
	if !ok {
		return domain.Model{}, domain.ErrNotFound{Entity: domain.EntityModel, ID: id}
	}
	return m, nil
}

func (s *Service) ListModels() []domain.Model { return s.models.List() }

func (s *Service) QueryModels(filter domain.Filter, sortBy *domain.Sort) []domain.Model {
	return s.models.Query(filter, sortBy)
}

func (s *Service) SearchModels(text string) []domain.Model { return s.models.Search(text) }

func (s *Service) ModelStatistics() store.ModelStats { return s.models.Statistics() }

func (s *Service) Categories() []domain.Category { return s.models.Categories() }

func (s *Service) AddCategory(ctx context.Context, name string) error {
	return s.observe(ctx, "category_add", func(ctx context.Context) error {
		if ok, msgs := s.models.AddCategory(ctx, name); !ok {
			return validationErr(domain.EntityCategory, msgs)
		}
		return nil
	})
}

func (s *Service) DeleteCategory(ctx context.Context, name string) error {
	return s.observe(ctx, "category_delete", func(ctx context.Context) error {
		if ok, msgs := s.models.DeleteCategory(ctx, name); !ok {
			return validationErr(domain.EntityCategory, msgs)
		}
		return nil
	})
}

func (s *Service) RenameCategory(ctx context.Context, from, to string) error {
	return s.observe(ctx, "category_rename", func(ctx context.Context) error {
		if ok, msgs := s.models.RenameCategory(ctx, from, to); !ok {
			return validationErr(domain.EntityCategory, msgs)
		}
		return nil
	})
}

// --- prints ---

// AddPrint records a print. The referenced model must exist; that failure is
// referential, not a validation message.
func (s *Service) AddPrint(ctx context.Context, p domain.Print) (domain.Print, error) {
	var created domain.Print
	err := s.observe(ctx, "print_add", func(ctx context.Context) error {
		if _, ok := s.models.Get(p.ModelID); !ok {
			return domain.ReferentialError{Entity: domain.EntityPrint, ID: p.ModelID, Message: "model " + p.ModelID + " not found"}
		}
		var ok bool
		var msgs []string
		created, ok, msgs = s.prints.Add(ctx, p)
		if !ok {
			return validationErr(domain.EntityPrint, msgs)
		}
		return nil
	})
	return created, err
}

func (s *Service) UpdatePrint(ctx context.Context, p domain.Print) (domain.Print, error) {
	var updated domain.Print
	err := s.observe(ctx, "print_update", func(ctx context.Context) error {
		if _, ok := s.prints.Get(p.ID); !ok {
			return domain.ErrNotFound{Entity: domain.EntityPrint, ID: p.ID}
		}
		if _, ok := s.models.Get(p.ModelID); !ok {
			return domain.ReferentialError{Entity: domain.EntityPrint, ID: p.ModelID, Message: "model " + p.ModelID + " not found"}
		}
		var ok bool
		var msgs []string
		updated, ok, msgs = s.prints.Update(ctx, p)
		if !ok {
			return validationErr(domain.EntityPrint, msgs)
		}
		return nil
	})
	return updated, err
}

func (s *Service) DeletePrint(ctx context.Context, id string) error {
	return s.observe(ctx, "print_delete", func(ctx context.Context) error {
		if _, ok := s.prints.Get(id); !ok {
			return domain.ErrNotFound{Entity: domain.EntityPrint, ID: id}
		}
		if ok, msgs := s.prints.Delete(ctx, id); !ok {
			return validationErr(domain.EntityPrint, msgs)
		}
		return nil
	})
}

func (s *Service) GetPrint(id string) (domain.Print, error) {
	p, ok := s.prints.Get(id)
	if !ok {
		return domain.Print{}, domain.ErrNotFound{Entity: domain.EntityPrint, ID: id}
	}
	return p, nil
}

func (s *Service) ListPrints() []domain.Print { return s.prints.List() }

func (s *Service) QueryPrints(filter domain.Filter, sortBy *domain.Sort) []domain.Print {
	return s.prints.Query(filter, sortBy)
}

func (s *Service) SearchPrints(text string) []domain.Print { return s.prints.Search(text) }

func (s *Service) PrintStatistics() store.PrintStats { return s.prints.Statistics() }

// --- derivations ---

// PrintabilityFor derives whether one model can print from current stock.
func (s *Service) PrintabilityFor(modelID string, strict bool) (domain.Printability, error) {
	m, ok := s.models.Get(modelID)
	if !ok {
		return domain.Printability{}, domain.ErrNotFound{Entity: domain.EntityModel, ID: modelID}
	}
	return derive.Printability(m, s.filaments.Index(), derive.PrintabilityOptions{Strict: strict}), nil
}

// PrintabilityReports derives printability for every model. Results are
// memoized against the store version counters and recomputed only after a
// filament or model mutation.
func (s *Service) PrintabilityReports(strict bool) []PrintabilityReport {
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	mv, fv := s.models.Version(), s.filaments.Version()
	if s.memo.valid && s.memo.strict == strict && s.memo.modelsVersion == mv && s.memo.filamentsVersion == fv {
		// Callers get their own slice; the memo's backing array stays private.
		return append([]PrintabilityReport(nil), s.memo.reports...)
	}
	index := s.filaments.Index()
	models := s.models.List()
	reports := make([]PrintabilityReport, 0, len(models))
	for _, m := range models {
		p := derive.Printability(m, index, derive.PrintabilityOptions{Strict: strict})
		reports = append(reports, PrintabilityReport{Model: m, CanPrint: p.CanPrint, Missing: p.Missing})
	}
	s.memo = printabilityMemo{
		valid:            true,
		strict:           strict,
		modelsVersion:    mv,
		filamentsVersion: fv,
		reports:          reports,
	}
	return append([]PrintabilityReport(nil), reports...)
}

// VarianceFor recomputes the analysis for one print against the current
// model. When the model is gone the analysis stored at write time stands.
func (s *Service) VarianceFor(printID string) (domain.VarianceAnalysis, error) {
	p, ok := s.prints.Get(printID)
	if !ok {
		return domain.VarianceAnalysis{}, domain.ErrNotFound{Entity: domain.EntityPrint, ID: printID}
	}
	return s.varianceOf(p), nil
}

func (s *Service) varianceOf(p domain.Print) domain.VarianceAnalysis {
	if m, ok := s.models.Get(p.ModelID); ok {
		return derive.Variance(p, &m)
	}
	if p.Variance != nil {
		return *p.Variance
	}
	return derive.Variance(p, nil)
}

// VarianceReports derives the analysis for every print.
func (s *Service) VarianceReports() []VarianceReport {
	prints := s.prints.List()
	reports := make([]VarianceReport, 0, len(prints))
	for _, p := range prints {
		reports = append(reports, VarianceReport{Print: p, Analysis: s.varianceOf(p)})
	}
	return reports
}

// --- settings ---

func (s *Service) Settings() domain.Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// UpdateSettings validates and persists the settings document. The theme
// is mirrored to the standalone theme key for legacy readers.
func (s *Service) UpdateSettings(ctx context.Context, next domain.Settings) (domain.Settings, error) {
	err := s.observe(ctx, "settings_update", func(ctx context.Context) error {
		var msgs []string
		if next.Currency == "" {
			msgs = append(msgs, "currency is required")
		}
		if next.DefaultDiameterMM != 0 && next.DefaultDiameterMM != 1.75 && next.DefaultDiameterMM != 2.85 {
			msgs = append(msgs, "default diameter must be 1.75 or 2.85")
		}
		if next.LowStockThresholdG < 0 {
			msgs = append(msgs, "low stock threshold cannot be negative")
		}
		if len(msgs) > 0 {
			return validationErr("settings", msgs)
		}
		if _, err := s.safe.SetItem(ctx, storage.KeySettings, next, storage.SetOptions{}); err != nil {
			return err
		}
		if next.Theme != "" {
			if _, err := s.safe.SetItem(ctx, "theme", next.Theme, storage.SetOptions{}); err != nil {
				s.log.Warn("theme mirror write failed", "error", err)
			}
		}
		s.settingsMu.Lock()
		s.settings = next
		s.settingsMu.Unlock()
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return next, nil
}

// --- aggregates, backup, reset ---

// Statistics aggregates all three stores and persists the snapshot.
func (s *Service) Statistics(ctx context.Context) (StatisticsSnapshot, error) {
	snap := StatisticsSnapshot{
		Filaments:   s.filaments.Statistics(),
		Models:      s.models.Statistics(),
		Prints:      s.prints.Statistics(),
		GeneratedAt: s.nowFn(),
	}
	err := s.observe(ctx, "statistics", func(ctx context.Context) error {
		_, err := s.safe.SetItem(ctx, storage.KeyStatistics, snap, storage.SetOptions{})
		return err
	})
	if err != nil {
		return snap, err
	}
	return snap, nil
}

// Backups returns the backup manager, or an error when no artifact store
// was configured.
func (s *Service) Backups() (*backup.Manager, error) {
	if s.backups == nil {
		return nil, fmt.Errorf("backup storage not configured")
	}
	return s.backups, nil
}

// ExportBackup snapshots every collection into the artifact store.
func (s *Service) ExportBackup(ctx context.Context) (blob.Artifact, error) {
	var artifact blob.Artifact
	err := s.observe(ctx, "backup_export", func(ctx context.Context) error {
		mgr, err := s.Backups()
		if err != nil {
			return err
		}
		artifact, err = mgr.Export(ctx)
		return err
	})
	return artifact, err
}

// RestoreBackup restores a snapshot artifact and reloads every store.
func (s *Service) RestoreBackup(ctx context.Context, artifactKey string) (backup.RestoreReport, error) {
	var report backup.RestoreReport
	err := s.observe(ctx, "backup_restore", func(ctx context.Context) error {
		mgr, err := s.Backups()
		if err != nil {
			return err
		}
		report, err = mgr.Restore(ctx, artifactKey)
		if err != nil {
			return err
		}
		return s.reload(ctx)
	})
	return report, err
}

// Reset clears the environment namespace. Settings survive the wipe.
func (s *Service) Reset(ctx context.Context) error {
	return s.observe(ctx, "reset", func(ctx context.Context) error {
		_, err := s.safe.Clear(ctx, storage.ClearOptions{BackupKeys: []string{storage.KeySettings}})
		if err != nil {
			return err
		}
		return s.reload(ctx)
	})
}

func (s *Service) reload(ctx context.Context) error {
	if err := s.filaments.Load(ctx); err != nil {
		return err
	}
	if err := s.models.Load(ctx); err != nil {
		return err
	}
	if err := s.prints.Load(ctx); err != nil {
		return err
	}
	if err := s.loadSettings(ctx); err != nil {
		return err
	}
	s.memoMu.Lock()
	s.memo = printabilityMemo{}
	s.memoMu.Unlock()
	return nil
}
