// Package domain defines the core persistent entities, value types, and
// validation primitives used by printstack.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in error reporting and persistence keys.
const (
	// EntityFilament identifies a filament spool record.
	EntityFilament EntityType = "filament"
	// EntityModel identifies a printable model record.
	EntityModel EntityType = "model"
	// EntityPrint identifies a print history record.
	EntityPrint EntityType = "print"
	// EntityCategory identifies a model category index entry.
	EntityCategory EntityType = "category"
)

// Material labels the kind of filament on a spool. The default set below is
// not closed: user-defined material names are accepted by validation.
type Material string

// Default material kinds seeded for new installations.
const (
	MaterialPLA         Material = "PLA"
	MaterialPETG        Material = "PETG"
	MaterialABS         Material = "ABS"
	MaterialTPU         Material = "TPU"
	MaterialWood        Material = "Wood"
	MaterialCarbonFiber Material = "Carbon Fiber"
	MaterialMetal       Material = "Metal"
	MaterialSilk        Material = "Silk"
	MaterialGlow        Material = "Glow"
	MaterialOther       Material = "Other"
)

// DefaultMaterials returns the built-in material kinds in presentation order.
func DefaultMaterials() []Material {
	return []Material{
		MaterialPLA, MaterialPETG, MaterialABS, MaterialTPU, MaterialWood,
		MaterialCarbonFiber, MaterialMetal, MaterialSilk, MaterialGlow, MaterialOther,
	}
}

// Difficulty grades how demanding a model is to print.
type Difficulty string

// Canonical model difficulties.
const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether the difficulty is one of the canonical grades.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Quality rates the outcome of a completed print.
type Quality string

// Canonical print quality ratings, best first.
const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// Valid reports whether the quality is one of the canonical ratings.
func (q Quality) Valid() bool {
	switch q {
	case QualityExcellent, QualityGood, QualityFair, QualityPoor:
		return true
	}
	return false
}

// Rank returns the sort ordinal for a quality rating (excellent < good <
// fair < poor). Unknown ratings sort last.
func (q Quality) Rank() int {
	switch q {
	case QualityExcellent:
		return 0
	case QualityGood:
		return 1
	case QualityFair:
		return 2
	case QualityPoor:
		return 3
	}
	return 4
}

// VarianceBand classifies the magnitude of a print's material variance.
type VarianceBand string

// Variance classification bands, ordered by increasing deviation.
const (
	BandExcellent VarianceBand = "Excellent"
	BandGood      VarianceBand = "Good"
	BandFair      VarianceBand = "Fair"
	BandPoor      VarianceBand = "Poor"
	// BandNone marks an analysis with no expected-weight data to compare against.
	BandNone VarianceBand = "None"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemperatureRange holds the recommended nozzle temperatures for a spool, in
// degrees Celsius.
type TemperatureRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Filament represents one physical spool of printing material.
type Filament struct {
	Base
	Name             string            `json:"name"`
	Material         string            `json:"material"`
	ColorName        string            `json:"color_name"`
	ColorHex         string            `json:"color_hex"`
	DiameterMM       float64           `json:"diameter_mm"`
	NominalWeightG   float64           `json:"nominal_weight_g"`
	RemainingWeightG float64           `json:"remaining_weight_g"`
	Cost             float64           `json:"cost"`
	Location         string            `json:"location"`
	InStock          bool              `json:"in_stock"`
	Temperature      *TemperatureRange `json:"temperature,omitempty"`
	Notes            string            `json:"notes,omitempty"`
}

// Requirement pairs a filament reference with the expected material draw for
// one model. The filament reference is resolved lazily: a deleted filament
// leaves the requirement unsatisfiable, not invalid.
type Requirement struct {
	FilamentID      string  `json:"filament_id"`
	Material        string  `json:"material"`
	ExpectedWeightG float64 `json:"expected_weight_g"`
}

// Model represents a designed printable object and its material requirements.
type Model struct {
	Base
	Name             string        `json:"name"`
	Category         string        `json:"category"`
	Difficulty       Difficulty    `json:"difficulty"`
	PrintTimeMinutes int           `json:"print_time_minutes"`
	LayerHeightMM    *float64      `json:"layer_height_mm,omitempty"`
	InfillPercent    *int          `json:"infill_percent,omitempty"`
	Link             *string       `json:"link,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	Requirements     []Requirement `json:"requirements"`
}

// FilamentUsage records the material actually consumed from one spool during
// a print.
type FilamentUsage struct {
	FilamentID    string  `json:"filament_id"`
	Material      string  `json:"material"`
	ActualWeightG float64 `json:"actual_weight_g"`
}

// VarianceAnalysis compares a print's actual consumption against the model's
// expected weights. The persisted copy is advisory; readers recompute it
// against the current model.
type VarianceAnalysis struct {
	TotalExpectedG   float64      `json:"total_expected_g"`
	TotalActualG     float64      `json:"total_actual_g"`
	VariancePercent  float64      `json:"variance_percent"`
	Band             VarianceBand `json:"band"`
	Classification   string       `json:"classification"`
	InsufficientData bool         `json:"insufficient_data,omitempty"`
}

// Print represents one historical execution attempt of a model. Prints never
// transition after creation.
type Print struct {
	Base
	ModelID         string            `json:"model_id"`
	PrintedAt       time.Time         `json:"printed_at"`
	DurationMinutes *int              `json:"duration_minutes,omitempty"`
	Quality         *Quality          `json:"quality,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Usages          []FilamentUsage   `json:"usages"`
	Variance        *VarianceAnalysis `json:"variance,omitempty"`
}

// Category is an auxiliary index entry maintained by the models store.
type Category struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultCategories returns the seed category list for new installations.
func DefaultCategories() []string {
	return []string{
		"Functional", "Decorative", "Toys & Games", "Tools",
		"Art", "Household", "Gadgets", "Miniatures",
	}
}

// Settings holds user preferences persisted alongside the collections.
type Settings struct {
	Currency           string  `json:"currency"`
	DefaultDiameterMM  float64 `json:"default_diameter_mm"`
	LowStockThresholdG float64 `json:"low_stock_threshold_g"`
	Theme              string  `json:"theme"`
}

// DefaultSettings returns the settings applied before the user saves any.
func DefaultSettings() Settings {
	return Settings{
		Currency:           "$",
		DefaultDiameterMM:  1.75,
		LowStockThresholdG: 100,
		Theme:              "system",
	}
}

// Printability is the derived answer to "can this model be printed with the
// filament on hand". Missing preserves the requirement order of the model.
type Printability struct {
	CanPrint bool          `json:"can_print"`
	Missing  []Requirement `json:"missing_filaments"`
}
