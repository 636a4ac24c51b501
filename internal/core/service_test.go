package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"printstack/internal/blob"
	"printstack/internal/env"
	memorykv "printstack/internal/infra/kv/memory"
	"printstack/pkg/domain"
)

func testService(t *testing.T, backend *memorykv.Store) *Service {
	t.Helper()
	if backend == nil {
		backend = memorykv.NewStore()
	}
	svc := New(Options{
		Resolver:  env.NewResolver(env.Development),
		Backend:   backend,
		Artifacts: blob.NewMemory(),
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return svc
}

func serviceFilament(name string) domain.Filament {
	return domain.Filament{
		Name:             name,
		Material:         "PLA",
		DiameterMM:       1.75,
		NominalWeightG:   1000,
		RemainingWeightG: 500,
		InStock:          true,
	}
}

func serviceModel(name, filamentID string) domain.Model {
	return domain.Model{
		Name:             name,
		Category:         "Functional",
		Difficulty:       domain.DifficultyEasy,
		PrintTimeMinutes: 90,
		Requirements: []domain.Requirement{
			{FilamentID: filamentID, Material: "PLA", ExpectedWeightG: 40},
		},
	}
}

func servicePrint(modelID, filamentID string, actualG float64) domain.Print {
	quality := domain.QualityGood
	return domain.Print{
		ModelID:   modelID,
		PrintedAt: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
		Quality:   &quality,
		Usages: []domain.FilamentUsage{
			{FilamentID: filamentID, Material: "PLA", ActualWeightG: actualG},
		},
	}
}

func withModelID(p domain.Print, modelID string) domain.Print {
	p.ModelID = modelID
	return p
}

func TestServiceCRUDAndTypedErrors(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	spool, err := svc.AddFilament(ctx, serviceFilament("Test PLA"))
	if err != nil {
		t.Fatalf("add filament: %v", err)
	}

	var verr domain.ValidationError
	if _, err := svc.AddFilament(ctx, domain.Filament{}); !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if verr.Entity != domain.EntityFilament {
		t.Fatalf("entity = %s", verr.Entity)
	}

	var nferr domain.ErrNotFound
	if _, err := svc.GetFilament("missing"); !errors.As(err, &nferr) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	ghost := serviceFilament("Ghost")
	ghost.ID = "missing"
	if _, err := svc.UpdateFilament(ctx, ghost); !errors.As(err, &nferr) {
		t.Fatalf("update missing: %v", err)
	}

	model, err := svc.AddModel(ctx, serviceModel("Benchy", spool.ID))
	if err != nil {
		t.Fatalf("add model: %v", err)
	}
	if _, err := svc.AddPrint(ctx, servicePrint(model.ID, spool.ID, 42)); err != nil {
		t.Fatalf("add print: %v", err)
	}

	// A referenced model cannot be deleted.
	var rerr domain.ReferentialError
	if err := svc.DeleteModel(ctx, model.ID); !errors.As(err, &rerr) {
		t.Fatalf("want ReferentialError, got %v", err)
	}
	if rerr.ID != model.ID {
		t.Fatalf("referential id = %s", rerr.ID)
	}
}

func TestServicePrintabilityMemo(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	spool, _ := svc.AddFilament(ctx, serviceFilament("Stocked"))
	if _, err := svc.AddModel(ctx, serviceModel("Printable", spool.ID)); err != nil {
		t.Fatalf("add model: %v", err)
	}
	if _, err := svc.AddModel(ctx, serviceModel("Blocked", "gone-spool")); err != nil {
		t.Fatalf("add model: %v", err)
	}

	reports := svc.PrintabilityReports(false)
	if len(reports) != 2 {
		t.Fatalf("reports = %d", len(reports))
	}
	byName := map[string]PrintabilityReport{}
	for _, r := range reports {
		byName[r.Model.Name] = r
	}
	if !byName["Printable"].CanPrint || byName["Blocked"].CanPrint {
		t.Fatalf("printability = %+v", byName)
	}
	if len(byName["Blocked"].Missing) != 1 {
		t.Fatalf("missing = %+v", byName["Blocked"].Missing)
	}

	// Same versions serve the memoized reports, but never the memo's own
	// backing array: mutating a returned slice must not poison later reads.
	again := svc.PrintabilityReports(false)
	if len(again) != len(reports) {
		t.Fatalf("again = %d reports", len(again))
	}
	if &again[0] == &reports[0] {
		t.Fatal("caller slices must not share backing storage")
	}
	again[0] = PrintabilityReport{}
	clean := svc.PrintabilityReports(false)
	byName = map[string]PrintabilityReport{}
	for _, r := range clean {
		byName[r.Model.Name] = r
	}
	if !byName["Printable"].CanPrint {
		t.Fatalf("memo corrupted by caller mutation: %+v", clean)
	}

	// A stock mutation invalidates the memo.
	edit := spool
	edit.InStock = false
	if _, err := svc.UpdateFilament(ctx, edit); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := svc.PrintabilityReports(false)
	for _, r := range after {
		if r.CanPrint {
			t.Fatalf("nothing should print with the spool out of stock: %+v", r)
		}
	}
}

func TestServiceStrictPrintability(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	spool := serviceFilament("Nearly Empty")
	spool.RemainingWeightG = 10
	stored, _ := svc.AddFilament(ctx, spool)
	model, _ := svc.AddModel(ctx, serviceModel("Hungry", stored.ID))

	relaxed, err := svc.PrintabilityFor(model.ID, false)
	if err != nil || !relaxed.CanPrint {
		t.Fatalf("relaxed = %+v err=%v", relaxed, err)
	}
	strict, err := svc.PrintabilityFor(model.ID, true)
	if err != nil || strict.CanPrint {
		t.Fatalf("strict = %+v err=%v", strict, err)
	}
}

func TestServiceVarianceFallsBackToStoredAnalysis(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	spool, _ := svc.AddFilament(ctx, serviceFilament("Spool"))
	model, _ := svc.AddModel(ctx, serviceModel("Ephemeral", spool.ID))
	record, err := svc.AddPrint(ctx, servicePrint(model.ID, spool.ID, 44))
	if err != nil {
		t.Fatalf("add print: %v", err)
	}

	// Live model: recomputed against current requirements.
	analysis, err := svc.VarianceFor(record.ID)
	if err != nil || analysis.VariancePercent != 10 {
		t.Fatalf("analysis = %+v err=%v", analysis, err)
	}

	// New prints cannot reference a missing model; that is a referential
	// failure, not a validation one.
	_, err = svc.AddPrint(ctx, servicePrint("no-such-model", spool.ID, 44))
	var badRef domain.ReferentialError
	if !errors.As(err, &badRef) || badRef.Entity != domain.EntityPrint || badRef.ID != "no-such-model" {
		t.Fatalf("want ReferentialError, got %v", err)
	}
	if _, err := svc.UpdatePrint(ctx, withModelID(record, "no-such-model")); !errors.As(err, &badRef) {
		t.Fatalf("want ReferentialError on update, got %v", err)
	}

	// Dangling print, as legacy data can contain: the analysis stored at
	// write time stands.
	svc.Models().SetReferenceGuard(func(string) bool { return false })
	if err := svc.DeleteModel(ctx, model.ID); err != nil {
		t.Fatalf("delete model: %v", err)
	}
	analysis, err = svc.VarianceFor(record.ID)
	if err != nil || analysis.VariancePercent != 10 || analysis.Band != domain.BandGood {
		t.Fatalf("fallback analysis = %+v err=%v", analysis, err)
	}
}

func TestServiceVarianceRecomputesAgainstCurrentModel(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	spool, _ := svc.AddFilament(ctx, serviceFilament("Spool"))
	model, _ := svc.AddModel(ctx, serviceModel("Doomed", spool.ID))
	record, _ := svc.AddPrint(ctx, servicePrint(model.ID, spool.ID, 44))

	// Change the model's expectation, then check the report recomputes.
	edit := model
	edit.Requirements[0].ExpectedWeightG = 44
	if _, err := svc.UpdateModel(ctx, edit); err != nil {
		t.Fatalf("update model: %v", err)
	}
	analysis, _ := svc.VarianceFor(record.ID)
	if analysis.VariancePercent != 0 || analysis.Band != domain.BandExcellent {
		t.Fatalf("recomputed = %+v", analysis)
	}

	reports := svc.VarianceReports()
	if len(reports) != 1 || reports[0].Analysis.VariancePercent != 0 {
		t.Fatalf("reports = %+v", reports)
	}

	// The stored write-time analysis (44 vs 40, 10 percent) survives the
	// model's deletion because the print pins it.
	got, _ := svc.GetPrint(record.ID)
	if got.Variance == nil || got.Variance.VariancePercent != 10 {
		t.Fatalf("stored variance = %+v", got.Variance)
	}
}

func TestServiceSettings(t *testing.T) {
	backend := memorykv.NewStore()
	svc := testService(t, backend)
	ctx := context.Background()

	if got := svc.Settings(); got != domain.DefaultSettings() {
		t.Fatalf("initial settings = %+v", got)
	}

	next := domain.Settings{Currency: "€", DefaultDiameterMM: 2.85, LowStockThresholdG: 250, Theme: "dark"}
	if _, err := svc.UpdateSettings(ctx, next); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if svc.Settings() != next {
		t.Fatalf("settings = %+v", svc.Settings())
	}

	// The theme is mirrored to the standalone legacy key.
	if _, found, _ := backend.Get("printstack_dev_theme"); !found {
		t.Fatal("theme mirror missing")
	}

	var verr domain.ValidationError
	if _, err := svc.UpdateSettings(ctx, domain.Settings{Currency: "", DefaultDiameterMM: 3.0}); !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if len(verr.Messages) != 2 {
		t.Fatalf("messages = %v", verr.Messages)
	}

	// LowStockFilaments honors the updated threshold.
	low := serviceFilament("Low")
	low.RemainingWeightG = 200
	svc.AddFilament(ctx, low)
	if got := svc.LowStockFilaments(); len(got) != 1 {
		t.Fatalf("low stock = %d", len(got))
	}
}

func TestServiceLegacyThemeWins(t *testing.T) {
	backend := memorykv.NewStore()
	if err := backend.Set("printstack_theme", `"dark"`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := testService(t, backend)
	if svc.Settings().Theme != "dark" {
		t.Fatalf("theme = %q", svc.Settings().Theme)
	}

	report, ok := svc.MigrationReport()
	if !ok || len(report.Migrated) != 1 || report.Migrated[0] != "printstack_theme" {
		t.Fatalf("migration report = %+v ok=%v", report, ok)
	}
}

func TestServiceStatisticsPersisted(t *testing.T) {
	backend := memorykv.NewStore()
	svc := testService(t, backend)
	ctx := context.Background()
	svc.AddFilament(ctx, serviceFilament("Counted"))

	snap, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if snap.Filaments.Total != 1 || snap.GeneratedAt.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, found, _ := backend.Get("printstack_dev_statistics"); !found {
		t.Fatal("snapshot not persisted")
	}
}

func TestServiceBackupRoundTrip(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	spool, _ := svc.AddFilament(ctx, serviceFilament("Keep Me"))
	artifact, err := svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if artifact.Key == "" || artifact.Size == 0 {
		t.Fatalf("artifact = %+v", artifact)
	}

	// Wipe everything, then restore the snapshot.
	if err := svc.DeleteFilament(ctx, spool.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(svc.ListFilaments()) != 0 {
		t.Fatal("delete did not take")
	}
	report, err := svc.RestoreBackup(ctx, artifact.Key)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(report.Restored) == 0 {
		t.Fatalf("report = %+v", report)
	}
	restored := svc.ListFilaments()
	if len(restored) != 1 || restored[0].Name != "Keep Me" {
		t.Fatalf("restored = %+v", restored)
	}
}

func TestServiceResetPreservesSettings(t *testing.T) {
	svc := testService(t, nil)
	ctx := context.Background()

	svc.AddFilament(ctx, serviceFilament("Wiped"))
	custom := domain.DefaultSettings()
	custom.Currency = "£"
	if _, err := svc.UpdateSettings(ctx, custom); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(svc.ListFilaments()) != 0 {
		t.Fatal("collections should be empty after reset")
	}
	if svc.Settings().Currency != "£" {
		t.Fatalf("settings = %+v", svc.Settings())
	}
	// Categories reseed on reload.
	if len(svc.Categories()) != len(domain.DefaultCategories()) {
		t.Fatalf("categories = %d", len(svc.Categories()))
	}
}

func TestServiceBackupsUnconfigured(t *testing.T) {
	svc := New(Options{Resolver: env.NewResolver(env.Development), Backend: memorykv.NewStore()})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Backups(); err == nil {
		t.Fatal("expected error without artifact store")
	}
	if _, err := svc.ExportBackup(context.Background()); err == nil {
		t.Fatal("export should fail without artifact store")
	}
}
