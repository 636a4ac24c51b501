package domain

import (
	"fmt"
	"strings"
)

// ValidateFilament returns the list of validation messages for a candidate
// spool. An empty list means the record is acceptable.
func ValidateFilament(f Filament) []string {
	var msgs []string
	if strings.TrimSpace(f.Name) == "" {
		msgs = append(msgs, "name is required")
	}
	if strings.TrimSpace(f.Material) == "" {
		msgs = append(msgs, "material is required")
	}
	if f.DiameterMM != 0 && f.DiameterMM != 1.75 && f.DiameterMM != 2.85 {
		msgs = append(msgs, "diameter must be 1.75 or 2.85 mm")
	}
	if f.NominalWeightG < 0 {
		msgs = append(msgs, "nominal weight cannot be negative")
	}
	if f.RemainingWeightG < 0 {
		msgs = append(msgs, "remaining weight cannot be negative")
	}
	if f.RemainingWeightG > f.NominalWeightG {
		msgs = append(msgs, "remaining weight cannot exceed nominal weight")
	}
	if f.Temperature != nil && f.Temperature.Min > f.Temperature.Max {
		msgs = append(msgs, "minimum temperature cannot exceed maximum temperature")
	}
	return msgs
}

// ValidateModel returns the list of validation messages for a candidate
// model, including its requirements.
func ValidateModel(m Model) []string {
	var msgs []string
	if strings.TrimSpace(m.Name) == "" {
		msgs = append(msgs, "name is required")
	}
	if strings.TrimSpace(m.Category) == "" {
		msgs = append(msgs, "category is required")
	}
	if !m.Difficulty.Valid() {
		msgs = append(msgs, "difficulty must be Easy, Medium, or Hard")
	}
	if m.PrintTimeMinutes <= 0 || m.PrintTimeMinutes > 1440 {
		msgs = append(msgs, "print time must be between 1 and 1440 minutes")
	}
	if m.LayerHeightMM != nil && (*m.LayerHeightMM < 0.05 || *m.LayerHeightMM > 1.0) {
		msgs = append(msgs, "layer height must be between 0.05 and 1.0 mm")
	}
	if m.InfillPercent != nil && (*m.InfillPercent < 0 || *m.InfillPercent > 100) {
		msgs = append(msgs, "infill must be between 0 and 100 percent")
	}
	if len(m.Requirements) == 0 {
		msgs = append(msgs, "at least one filament requirement is required")
	}
	for i, req := range m.Requirements {
		if strings.TrimSpace(req.FilamentID) == "" {
			msgs = append(msgs, fmt.Sprintf("requirement %d: filament is required", i+1))
		}
		if strings.TrimSpace(req.Material) == "" {
			msgs = append(msgs, fmt.Sprintf("requirement %d: material is required", i+1))
		}
		if req.ExpectedWeightG <= 0 {
			msgs = append(msgs, fmt.Sprintf("requirement %d: expected weight must be positive", i+1))
		}
	}
	return msgs
}

// ValidatePrint returns the list of validation messages for a candidate
// print record. Model existence is a referential concern resolved by the
// prints store at write time, not here.
func ValidatePrint(p Print) []string {
	var msgs []string
	if strings.TrimSpace(p.ModelID) == "" {
		msgs = append(msgs, "model is required")
	}
	if p.PrintedAt.IsZero() {
		msgs = append(msgs, "print date is required")
	}
	if p.Quality != nil && !p.Quality.Valid() {
		msgs = append(msgs, "quality must be excellent, good, fair, or poor")
	}
	if p.DurationMinutes != nil && *p.DurationMinutes < 0 {
		msgs = append(msgs, "duration cannot be negative")
	}
	if len(p.Usages) == 0 {
		msgs = append(msgs, "at least one filament usage is required")
	}
	for i, u := range p.Usages {
		if strings.TrimSpace(u.FilamentID) == "" {
			msgs = append(msgs, fmt.Sprintf("usage %d: filament is required", i+1))
		}
		if u.ActualWeightG <= 0 {
			msgs = append(msgs, fmt.Sprintf("usage %d: actual weight must be positive", i+1))
		}
	}
	return msgs
}
