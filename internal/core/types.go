package core

import "printstack/pkg/domain"

type (
	EntityType       = domain.EntityType
	Base             = domain.Base
	Filament         = domain.Filament
	Model            = domain.Model
	Print            = domain.Print
	Category         = domain.Category
	Settings         = domain.Settings
	Requirement      = domain.Requirement
	FilamentUsage    = domain.FilamentUsage
	VarianceAnalysis = domain.VarianceAnalysis
	Printability     = domain.Printability
	Quality          = domain.Quality
	Difficulty       = domain.Difficulty
	Filter           = domain.Filter
	Sort             = domain.Sort
	ValidationError  = domain.ValidationError
	ErrNotFound      = domain.ErrNotFound
)

const (
	EntityFilament = domain.EntityFilament
	EntityModel    = domain.EntityModel
	EntityPrint    = domain.EntityPrint
	EntityCategory = domain.EntityCategory
)

const (
	QualityExcellent = domain.QualityExcellent
	QualityGood      = domain.QualityGood
	QualityFair      = domain.QualityFair
	QualityPoor      = domain.QualityPoor
)
