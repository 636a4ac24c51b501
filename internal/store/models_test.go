package store

import (
	"context"
	"strings"
	"testing"

	"printstack/pkg/domain"
)

func testModel(name string) domain.Model {
	return domain.Model{
		Name:             name,
		Category:         "Functional",
		Difficulty:       domain.DifficultyMedium,
		PrintTimeMinutes: 120,
		Requirements: []domain.Requirement{
			{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 50},
		},
	}
}

func loadedModels(t *testing.T) *Models {
	t.Helper()
	safe, _ := newTestSafe(t)
	s := NewModels(safe, nil)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestModelsSeedsDefaultCategories(t *testing.T) {
	s := loadedModels(t)
	cats := s.Categories()
	defaults := domain.DefaultCategories()
	if len(cats) != len(defaults) {
		t.Fatalf("categories = %d, want %d", len(cats), len(defaults))
	}
	for i, c := range cats {
		if c.Name != defaults[i] {
			t.Fatalf("category[%d] = %q, want %q", i, c.Name, defaults[i])
		}
		if c.CreatedAt.IsZero() {
			t.Fatalf("category %q missing created_at", c.Name)
		}
	}
}

func TestModelsSeededCategoriesSurviveReload(t *testing.T) {
	safe, _ := newTestSafe(t)
	ctx := context.Background()
	first := NewModels(safe, nil)
	if err := first.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok, msgs := first.AddCategory(ctx, "Cosplay"); !ok {
		t.Fatalf("add category: %v", msgs)
	}

	second := NewModels(safe, nil)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	cats := second.Categories()
	if len(cats) != len(domain.DefaultCategories())+1 {
		t.Fatalf("categories after reload = %d", len(cats))
	}
	if cats[len(cats)-1].Name != "Cosplay" {
		t.Fatalf("last category = %q", cats[len(cats)-1].Name)
	}
}

func TestModelsAddValidation(t *testing.T) {
	s := loadedModels(t)
	bad := testModel("Bracket")
	bad.PrintTimeMinutes = 0
	bad.Requirements = nil

	_, ok, msgs := s.Add(context.Background(), bad)
	if ok {
		t.Fatal("invalid model accepted")
	}
	joined := strings.Join(msgs, "; ")
	if !strings.Contains(joined, "between 1 and 1440") || !strings.Contains(joined, "at least one filament requirement") {
		t.Fatalf("msgs = %v", msgs)
	}
}

func TestModelsDeleteGuardedByPrints(t *testing.T) {
	s := loadedModels(t)
	ctx := context.Background()
	stored, ok, msgs := s.Add(ctx, testModel("Guarded"))
	if !ok {
		t.Fatalf("add: %v", msgs)
	}

	referenced := map[string]bool{stored.ID: true}
	s.SetReferenceGuard(func(id string) bool { return referenced[id] })

	if ok, msgs := s.Delete(ctx, stored.ID); ok || len(msgs) != 1 {
		t.Fatalf("guarded delete: ok=%v msgs=%v", ok, msgs)
	} else if msgs[0] != "model "+stored.ID+" is referenced by existing prints" {
		t.Fatalf("msg = %q", msgs[0])
	}

	referenced[stored.ID] = false
	if ok, msgs := s.Delete(ctx, stored.ID); !ok {
		t.Fatalf("unguarded delete: %v", msgs)
	}
}

func TestModelsCategoryDuplicates(t *testing.T) {
	s := loadedModels(t)
	ctx := context.Background()

	if ok, _ := s.AddCategory(ctx, "Functional"); ok {
		t.Fatal("exact duplicate accepted")
	}
	if ok, msgs := s.AddCategory(ctx, "  functional  "); ok {
		t.Fatalf("case-insensitive duplicate accepted: %v", msgs)
	}
	if ok, _ := s.AddCategory(ctx, ""); ok {
		t.Fatal("blank category accepted")
	}
	if ok, msgs := s.AddCategory(ctx, "Cosplay"); !ok {
		t.Fatalf("new category rejected: %v", msgs)
	}
}

func TestModelsDeleteCategoryInUse(t *testing.T) {
	s := loadedModels(t)
	ctx := context.Background()
	if _, ok, msgs := s.Add(ctx, testModel("Uses Functional")); !ok {
		t.Fatalf("add: %v", msgs)
	}

	if ok, msgs := s.DeleteCategory(ctx, "functional"); ok || msgs[0] != "category functional is in use by existing models" {
		t.Fatalf("ok=%v msgs=%v", ok, msgs)
	}
	if ok, msgs := s.DeleteCategory(ctx, "Art"); !ok {
		t.Fatalf("unused delete: %v", msgs)
	}
	if ok, _ := s.DeleteCategory(ctx, "Art"); ok {
		t.Fatal("double delete accepted")
	}
}

func TestModelsRenameCategory(t *testing.T) {
	s := loadedModels(t)
	ctx := context.Background()

	if ok, msgs := s.RenameCategory(ctx, "Tools", "Workshop"); !ok {
		t.Fatalf("rename: %v", msgs)
	}
	var names []string
	for _, c := range s.Categories() {
		names = append(names, c.Name)
	}
	joined := strings.Join(names, ",")
	if strings.Contains(joined, "Tools") || !strings.Contains(joined, "Workshop") {
		t.Fatalf("categories = %v", names)
	}

	// Renaming onto another existing name is rejected, but a pure case
	// change of the same entry is allowed.
	if ok, _ := s.RenameCategory(ctx, "Art", "workshop"); ok {
		t.Fatal("rename onto existing name accepted")
	}
	if ok, msgs := s.RenameCategory(ctx, "workshop", "WORKSHOP"); !ok {
		t.Fatalf("case-only rename: %v", msgs)
	}
}

func TestModelsQuerySearchStats(t *testing.T) {
	s := loadedModels(t)
	ctx := context.Background()
	a := testModel("Phone Stand")
	b := testModel("Dragon")
	b.Category = "Miniatures"
	b.Difficulty = domain.DifficultyHard
	b.Notes = "multi-part assembly"
	for _, m := range []domain.Model{a, b} {
		if _, ok, msgs := s.Add(ctx, m); !ok {
			t.Fatalf("seed: %v", msgs)
		}
	}

	hard := s.Query(domain.Filter{
		Fields: map[string]domain.Predicate{"difficulty": domain.Equal("Hard")},
	}, nil)
	if len(hard) != 1 || hard[0].Name != "Dragon" {
		t.Fatalf("hard query = %+v", hard)
	}

	if hits := s.Search("assembly"); len(hits) != 1 || hits[0].Name != "Dragon" {
		t.Fatalf("search = %+v", hits)
	}

	stats := s.Statistics()
	if stats.Total != 2 || stats.ByCategory["Miniatures"] != 1 || stats.ByDifficulty["Medium"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
