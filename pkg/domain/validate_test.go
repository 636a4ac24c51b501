package domain

import (
	"strings"
	"testing"
	"time"
)

func validFilament() Filament {
	return Filament{
		Name:             "Galaxy Black",
		Material:         "PLA",
		DiameterMM:       1.75,
		NominalWeightG:   1000,
		RemainingWeightG: 750,
		InStock:          true,
	}
}

func validModel() Model {
	return Model{
		Name:             "Benchy",
		Category:         "Toys & Games",
		Difficulty:       DifficultyEasy,
		PrintTimeMinutes: 120,
		Requirements: []Requirement{
			{FilamentID: "f1", Material: "PLA", ExpectedWeightG: 15},
		},
	}
}

func validPrint() Print {
	q := QualityGood
	return Print{
		ModelID:   "m1",
		PrintedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Quality:   &q,
		Usages:    []FilamentUsage{{FilamentID: "f1", ActualWeightG: 16}},
	}
}

func containsMessage(msgs []string, want string) bool {
	for _, m := range msgs {
		if strings.Contains(m, want) {
			return true
		}
	}
	return false
}

func TestValidateFilament(t *testing.T) {
	if msgs := ValidateFilament(validFilament()); len(msgs) != 0 {
		t.Fatalf("valid filament produced messages: %v", msgs)
	}

	cases := []struct {
		name   string
		mutate func(*Filament)
		want   string
	}{
		{"missing name", func(f *Filament) { f.Name = "  " }, "name is required"},
		{"missing material", func(f *Filament) { f.Material = "" }, "material is required"},
		{"bad diameter", func(f *Filament) { f.DiameterMM = 3.0 }, "diameter must be 1.75 or 2.85"},
		{"negative nominal", func(f *Filament) { f.NominalWeightG = -1; f.RemainingWeightG = -1 }, "nominal weight cannot be negative"},
		{"negative remaining", func(f *Filament) { f.RemainingWeightG = -5 }, "remaining weight cannot be negative"},
		{"remaining above nominal", func(f *Filament) { f.RemainingWeightG = 1200 }, "cannot exceed nominal"},
		{"inverted temperatures", func(f *Filament) {
			f.Temperature = &TemperatureRange{Min: 230, Max: 200}
		}, "minimum temperature cannot exceed maximum"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := validFilament()
			c.mutate(&f)
			msgs := ValidateFilament(f)
			if !containsMessage(msgs, c.want) {
				t.Fatalf("messages %v do not mention %q", msgs, c.want)
			}
		})
	}

	t.Run("zero diameter allowed", func(t *testing.T) {
		f := validFilament()
		f.DiameterMM = 0
		if msgs := ValidateFilament(f); len(msgs) != 0 {
			t.Fatalf("zero diameter rejected: %v", msgs)
		}
	})
	t.Run("wide diameter allowed", func(t *testing.T) {
		f := validFilament()
		f.DiameterMM = 2.85
		if msgs := ValidateFilament(f); len(msgs) != 0 {
			t.Fatalf("2.85 diameter rejected: %v", msgs)
		}
	})
}

func TestValidateModel(t *testing.T) {
	if msgs := ValidateModel(validModel()); len(msgs) != 0 {
		t.Fatalf("valid model produced messages: %v", msgs)
	}

	layer := 0.01
	infill := 150
	cases := []struct {
		name   string
		mutate func(*Model)
		want   string
	}{
		{"missing name", func(m *Model) { m.Name = "" }, "name is required"},
		{"missing category", func(m *Model) { m.Category = " " }, "category is required"},
		{"bad difficulty", func(m *Model) { m.Difficulty = "Impossible" }, "difficulty must be"},
		{"zero print time", func(m *Model) { m.PrintTimeMinutes = 0 }, "between 1 and 1440"},
		{"print time above a day", func(m *Model) { m.PrintTimeMinutes = 1441 }, "between 1 and 1440"},
		{"layer height out of range", func(m *Model) { m.LayerHeightMM = &layer }, "layer height"},
		{"infill out of range", func(m *Model) { m.InfillPercent = &infill }, "infill"},
		{"no requirements", func(m *Model) { m.Requirements = nil }, "at least one filament requirement"},
		{"requirement missing filament", func(m *Model) {
			m.Requirements[0].FilamentID = ""
		}, "requirement 1: filament is required"},
		{"requirement missing material", func(m *Model) {
			m.Requirements[0].Material = ""
		}, "requirement 1: material is required"},
		{"requirement zero weight", func(m *Model) {
			m.Requirements[0].ExpectedWeightG = 0
		}, "requirement 1: expected weight must be positive"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := validModel()
			c.mutate(&m)
			msgs := ValidateModel(m)
			if !containsMessage(msgs, c.want) {
				t.Fatalf("messages %v do not mention %q", msgs, c.want)
			}
		})
	}

	t.Run("second requirement indexed", func(t *testing.T) {
		m := validModel()
		m.Requirements = append(m.Requirements, Requirement{FilamentID: "f2", Material: "PETG", ExpectedWeightG: -2})
		msgs := ValidateModel(m)
		if !containsMessage(msgs, "requirement 2: expected weight must be positive") {
			t.Fatalf("messages %v do not index the second requirement", msgs)
		}
	})
}

func TestValidatePrint(t *testing.T) {
	if msgs := ValidatePrint(validPrint()); len(msgs) != 0 {
		t.Fatalf("valid print produced messages: %v", msgs)
	}

	negative := -1
	badQuality := Quality("amazing")
	cases := []struct {
		name   string
		mutate func(*Print)
		want   string
	}{
		{"missing model", func(p *Print) { p.ModelID = "" }, "model is required"},
		{"missing date", func(p *Print) { p.PrintedAt = time.Time{} }, "print date is required"},
		{"bad quality", func(p *Print) { p.Quality = &badQuality }, "quality must be"},
		{"negative duration", func(p *Print) { p.DurationMinutes = &negative }, "duration cannot be negative"},
		{"no usages", func(p *Print) { p.Usages = nil }, "at least one filament usage"},
		{"usage missing filament", func(p *Print) { p.Usages[0].FilamentID = "" }, "usage 1: filament is required"},
		{"usage zero weight", func(p *Print) { p.Usages[0].ActualWeightG = 0 }, "usage 1: actual weight must be positive"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := validPrint()
			c.mutate(&p)
			msgs := ValidatePrint(p)
			if !containsMessage(msgs, c.want) {
				t.Fatalf("messages %v do not mention %q", msgs, c.want)
			}
		})
	}

	t.Run("nil quality allowed", func(t *testing.T) {
		p := validPrint()
		p.Quality = nil
		if msgs := ValidatePrint(p); len(msgs) != 0 {
			t.Fatalf("unrated print rejected: %v", msgs)
		}
	})
}
