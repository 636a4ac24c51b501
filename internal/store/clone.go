package store

import "printstack/pkg/domain"

// Clone helpers keep callers from aliasing store-owned slices and pointers.

func cloneFilament(f domain.Filament) domain.Filament {
	cp := f
	if f.Temperature != nil {
		t := *f.Temperature
		cp.Temperature = &t
	}
	return cp
}

func cloneModel(m domain.Model) domain.Model {
	cp := m
	cp.Requirements = append([]domain.Requirement(nil), m.Requirements...)
	if m.LayerHeightMM != nil {
		v := *m.LayerHeightMM
		cp.LayerHeightMM = &v
	}
	if m.InfillPercent != nil {
		v := *m.InfillPercent
		cp.InfillPercent = &v
	}
	if m.Link != nil {
		v := *m.Link
		cp.Link = &v
	}
	return cp
}

func clonePrint(p domain.Print) domain.Print {
	cp := p
	cp.Usages = append([]domain.FilamentUsage(nil), p.Usages...)
	if p.DurationMinutes != nil {
		v := *p.DurationMinutes
		cp.DurationMinutes = &v
	}
	if p.Quality != nil {
		v := *p.Quality
		cp.Quality = &v
	}
	if p.Variance != nil {
		v := *p.Variance
		cp.Variance = &v
	}
	return cp
}
