package derive

import (
	"math"
	"testing"

	"printstack/pkg/domain"
)

func varianceModel() *domain.Model {
	return &domain.Model{
		Base: domain.Base{ID: "m1"},
		Requirements: []domain.Requirement{
			{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 100},
			{FilamentID: "f2", Material: "PETG", ExpectedWeightG: 50},
		},
	}
}

func printUsing(usages ...domain.FilamentUsage) domain.Print {
	return domain.Print{Base: domain.Base{ID: "p1"}, ModelID: "m1", Usages: usages}
}

func TestVarianceBands(t *testing.T) {
	cases := []struct {
		name    string
		actualG float64
		band    domain.VarianceBand
		prose   string
	}{
		{"excellent under five percent", 103, domain.BandExcellent, "very close to expected usage"},
		{"good at five percent boundary", 105, domain.BandGood, "within acceptable range"},
		{"good below fifteen", 114, domain.BandGood, "within acceptable range"},
		{"fair at fifteen percent boundary", 115, domain.BandFair, "significant deviation from expected"},
		{"fair below thirty", 125, domain.BandFair, "significant deviation from expected"},
		{"poor at thirty percent boundary", 130, domain.BandPoor, "major difference from expected usage"},
		{"poor far over", 200, domain.BandPoor, "major difference from expected usage"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := &domain.Model{Requirements: []domain.Requirement{{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 100}}}
			p := printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: c.actualG})
			a := Variance(p, m)
			if a.Band != c.band {
				t.Fatalf("band = %s, want %s (%.1f%%)", a.Band, c.band, a.VariancePercent)
			}
			if a.InsufficientData {
				t.Fatal("unexpected insufficient data")
			}
			if got := a.Classification; len(got) < len(c.prose) || got[:len(c.prose)] != c.prose {
				t.Fatalf("classification %q does not start with %q", got, c.prose)
			}
		})
	}
}

func TestVarianceNegativeMirrorsPositive(t *testing.T) {
	m := &domain.Model{Requirements: []domain.Requirement{{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 100}}}
	p := printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 80})
	a := Variance(p, m)
	if a.Band != domain.BandFair {
		t.Fatalf("band = %s, want fair", a.Band)
	}
	if a.VariancePercent != -20 {
		t.Fatalf("percent = %v, want -20", a.VariancePercent)
	}
	want := "significant deviation from expected. Used 20% less than expected"
	if a.Classification != want {
		t.Fatalf("classification = %q, want %q", a.Classification, want)
	}
}

func TestVarianceSuffixFormatting(t *testing.T) {
	m := &domain.Model{Requirements: []domain.Requirement{{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 200}}}

	t.Run("integral percent has no decimal", func(t *testing.T) {
		p := printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 206})
		a := Variance(p, m)
		want := "very close to expected usage. Used 3% more than expected"
		if a.Classification != want {
			t.Fatalf("classification = %q, want %q", a.Classification, want)
		}
	})

	t.Run("fractional percent keeps one decimal", func(t *testing.T) {
		p := printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 205})
		a := Variance(p, m)
		want := "very close to expected usage. Used 2.5% more than expected"
		if a.Classification != want {
			t.Fatalf("classification = %q, want %q", a.Classification, want)
		}
	})

	t.Run("exact match drops the suffix", func(t *testing.T) {
		p := printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 200})
		a := Variance(p, m)
		if a.Classification != "very close to expected usage" {
			t.Fatalf("classification = %q", a.Classification)
		}
		if a.VariancePercent != 0 || a.Band != domain.BandExcellent {
			t.Fatalf("analysis = %+v", a)
		}
	})
}

func TestVarianceExpectedRestrictedToUsedFilaments(t *testing.T) {
	// Only f1 was used, so f2's expected 50g must not enter the total.
	p := printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 110})
	a := Variance(p, varianceModel())
	if a.TotalExpectedG != 100 {
		t.Fatalf("total expected = %v, want 100", a.TotalExpectedG)
	}
	if a.VariancePercent != 10 {
		t.Fatalf("percent = %v, want 10", a.VariancePercent)
	}
}

func TestVarianceUnmatchedUsageContributesZeroExpected(t *testing.T) {
	p := printUsing(
		domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 100},
		domain.FilamentUsage{FilamentID: "stray", ActualWeightG: 30},
	)
	a := Variance(p, varianceModel())
	if a.TotalExpectedG != 100 {
		t.Fatalf("total expected = %v, want 100", a.TotalExpectedG)
	}
	if a.TotalActualG != 130 {
		t.Fatalf("total actual = %v, want 130", a.TotalActualG)
	}
	if a.VariancePercent != 30 {
		t.Fatalf("percent = %v, want 30", a.VariancePercent)
	}
}

func TestVarianceInsufficientData(t *testing.T) {
	check := func(t *testing.T, a domain.VarianceAnalysis) {
		t.Helper()
		if !a.InsufficientData {
			t.Fatal("expected insufficient data")
		}
		if a.Band != domain.BandNone {
			t.Fatalf("band = %s, want none", a.Band)
		}
		if a.VariancePercent != 0 || a.TotalExpectedG != 0 {
			t.Fatalf("analysis = %+v", a)
		}
		if a.Classification != "insufficient data to compare against expected usage" {
			t.Fatalf("classification = %q", a.Classification)
		}
	}

	t.Run("nil model", func(t *testing.T) {
		check(t, Variance(printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 10}), nil))
	})
	t.Run("no overlapping filaments", func(t *testing.T) {
		check(t, Variance(printUsing(domain.FilamentUsage{FilamentID: "stray", ActualWeightG: 10}), varianceModel()))
	})
}

func TestVarianceDuplicateRequirementsSum(t *testing.T) {
	m := &domain.Model{Requirements: []domain.Requirement{
		{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 60},
		{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 40},
	}}
	a := Variance(printUsing(domain.FilamentUsage{FilamentID: "f1", ActualWeightG: 100}), m)
	if a.TotalExpectedG != 100 {
		t.Fatalf("duplicate requirements should sum, got %v", a.TotalExpectedG)
	}
	if math.Abs(a.VariancePercent) > 1e-9 {
		t.Fatalf("percent = %v, want 0", a.VariancePercent)
	}
}
