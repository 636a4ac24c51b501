// Package derive computes the two derived views of the core: per-model
// printability and per-print variance analysis. Derivations never fail;
// missing inputs are treated as empty.
package derive

import "printstack/pkg/domain"

// PrintabilityOptions tunes the printability predicate.
type PrintabilityOptions struct {
	// Strict additionally requires remaining weight to cover the expected
	// weight. The baseline predicate trusts the user to judge sufficiency.
	Strict bool
}

// Printability joins a model's requirements against the current filament
// stock, keyed by filament identifier. A requirement is satisfied when the
// referenced filament exists and is in stock (and, under Strict, holds
// enough remaining material). The missing list preserves requirement order.
func Printability(m domain.Model, filaments map[string]domain.Filament, opts PrintabilityOptions) domain.Printability {
	result := domain.Printability{CanPrint: true, Missing: []domain.Requirement{}}
	for _, req := range m.Requirements {
		f, ok := filaments[req.FilamentID]
		satisfied := ok && f.InStock
		if satisfied && opts.Strict && f.RemainingWeightG < req.ExpectedWeightG {
			satisfied = false
		}
		if !satisfied {
			result.CanPrint = false
			result.Missing = append(result.Missing, req)
		}
	}
	return result
}
