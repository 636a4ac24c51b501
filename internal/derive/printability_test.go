package derive

import (
	"testing"

	"printstack/pkg/domain"
)

func stock(t *testing.T) map[string]domain.Filament {
	t.Helper()
	return map[string]domain.Filament{
		"pla-black": {Base: domain.Base{ID: "pla-black"}, Name: "PLA Black", Material: "PLA", InStock: true, RemainingWeightG: 500, NominalWeightG: 1000},
		"petg-red":  {Base: domain.Base{ID: "petg-red"}, Name: "PETG Red", Material: "PETG", InStock: false, RemainingWeightG: 800, NominalWeightG: 1000},
		"tpu-clear": {Base: domain.Base{ID: "tpu-clear"}, Name: "TPU Clear", Material: "TPU", InStock: true, RemainingWeightG: 10, NominalWeightG: 1000},
	}
}

func modelWith(reqs ...domain.Requirement) domain.Model {
	return domain.Model{
		Base:         domain.Base{ID: "m1"},
		Name:         "Bracket",
		Requirements: reqs,
	}
}

func TestPrintabilityAllSatisfied(t *testing.T) {
	m := modelWith(domain.Requirement{FilamentID: "pla-black", Material: "PLA", ExpectedWeightG: 20})
	p := Printability(m, stock(t), PrintabilityOptions{})
	if !p.CanPrint {
		t.Fatal("expected printable")
	}
	if len(p.Missing) != 0 {
		t.Fatalf("missing should be empty, got %v", p.Missing)
	}
	if p.Missing == nil {
		t.Fatal("missing should be an empty slice, not nil")
	}
}

func TestPrintabilityOutOfStock(t *testing.T) {
	m := modelWith(domain.Requirement{FilamentID: "petg-red", Material: "PETG", ExpectedWeightG: 20})
	p := Printability(m, stock(t), PrintabilityOptions{})
	if p.CanPrint {
		t.Fatal("out-of-stock filament should block printing")
	}
	if len(p.Missing) != 1 || p.Missing[0].FilamentID != "petg-red" {
		t.Fatalf("missing = %v", p.Missing)
	}
}

func TestPrintabilityUnknownFilament(t *testing.T) {
	m := modelWith(domain.Requirement{FilamentID: "ghost", Material: "PLA", ExpectedWeightG: 5})
	p := Printability(m, stock(t), PrintabilityOptions{})
	if p.CanPrint {
		t.Fatal("unknown filament should block printing")
	}
}

func TestPrintabilityMissingPreservesOrder(t *testing.T) {
	m := modelWith(
		domain.Requirement{FilamentID: "petg-red", Material: "PETG", ExpectedWeightG: 5},
		domain.Requirement{FilamentID: "pla-black", Material: "PLA", ExpectedWeightG: 5},
		domain.Requirement{FilamentID: "ghost", Material: "ABS", ExpectedWeightG: 5},
	)
	p := Printability(m, stock(t), PrintabilityOptions{})
	if p.CanPrint {
		t.Fatal("expected unprintable")
	}
	if len(p.Missing) != 2 || p.Missing[0].FilamentID != "petg-red" || p.Missing[1].FilamentID != "ghost" {
		t.Fatalf("missing order wrong: %v", p.Missing)
	}
}

func TestPrintabilityStrictWeight(t *testing.T) {
	m := modelWith(domain.Requirement{FilamentID: "tpu-clear", Material: "TPU", ExpectedWeightG: 25})

	relaxed := Printability(m, stock(t), PrintabilityOptions{})
	if !relaxed.CanPrint {
		t.Fatal("baseline predicate should ignore remaining weight")
	}

	strict := Printability(m, stock(t), PrintabilityOptions{Strict: true})
	if strict.CanPrint {
		t.Fatal("strict predicate should require sufficient remaining weight")
	}
}

func TestPrintabilityNoRequirements(t *testing.T) {
	p := Printability(modelWith(), stock(t), PrintabilityOptions{})
	if !p.CanPrint || len(p.Missing) != 0 {
		t.Fatalf("model without requirements should be printable, got %+v", p)
	}
}
