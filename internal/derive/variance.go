package derive

import (
	"math"
	"strconv"

	"printstack/pkg/domain"
)

// Prose classifications for each variance band.
const (
	proseExcellent    = "very close to expected usage"
	proseGood         = "within acceptable range"
	proseFair         = "significant deviation from expected"
	prosePoor         = "major difference from expected usage"
	proseInsufficient = "insufficient data to compare against expected usage"
)

// Variance compares a print's actual consumption against the referenced
// model's expected weights. Expected totals are restricted to the filaments
// the print actually used; a usage without a matching requirement
// contributes zero expected weight. A nil model yields the insufficient-data
// analysis.
func Variance(p domain.Print, m *domain.Model) domain.VarianceAnalysis {
	expectedByFilament := make(map[string]float64)
	if m != nil {
		for _, req := range m.Requirements {
			expectedByFilament[req.FilamentID] += req.ExpectedWeightG
		}
	}

	var totalExpected, totalActual float64
	for _, usage := range p.Usages {
		totalActual += usage.ActualWeightG
		totalExpected += expectedByFilament[usage.FilamentID]
	}

	if totalExpected == 0 {
		return domain.VarianceAnalysis{
			TotalActualG:     totalActual,
			Band:             domain.BandNone,
			Classification:   proseInsufficient,
			InsufficientData: true,
		}
	}

	percent := ((totalActual - totalExpected) / totalExpected) * 100
	band, prose := classifyVariance(percent)
	classification := prose
	if suffix := varianceSuffix(percent); suffix != "" {
		classification = prose + ". " + suffix
	}
	return domain.VarianceAnalysis{
		TotalExpectedG:  totalExpected,
		TotalActualG:    totalActual,
		VariancePercent: percent,
		Band:            band,
		Classification:  classification,
	}
}

// classifyVariance maps |percent| onto its band; boundaries are inclusive
// on the lower end.
func classifyVariance(percent float64) (domain.VarianceBand, string) {
	abs := math.Abs(percent)
	switch {
	case abs < 5:
		return domain.BandExcellent, proseExcellent
	case abs < 15:
		return domain.BandGood, proseGood
	case abs < 30:
		return domain.BandFair, proseFair
	default:
		return domain.BandPoor, prosePoor
	}
}

// varianceSuffix renders the sign-aware usage summary. An exact match gets
// no suffix.
func varianceSuffix(percent float64) string {
	if percent == 0 {
		return ""
	}
	direction := "more"
	if percent < 0 {
		direction = "less"
	}
	return "Used " + formatPercent(math.Abs(percent)) + "% " + direction + " than expected"
}

// formatPercent renders integral percentages without a decimal point and
// everything else with one decimal place.
func formatPercent(v float64) string {
	if v == math.Trunc(v) {
		return strconv.Itoa(int(v))
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
