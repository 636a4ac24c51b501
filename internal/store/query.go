package store

import (
	"sort"

	"printstack/pkg/domain"
)

// filterAndSort applies the filter then a stable sort to a copied slice.
// fields flattens one record for predicate evaluation and sort comparison.
func filterAndSort[T any](items []T, fields func(T) map[string]any, filter domain.Filter, sortBy *domain.Sort) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if filter.Match(fields(item)) {
			out = append(out, item)
		}
	}
	if sortBy != nil && sortBy.Field != "" {
		sort.SliceStable(out, func(i, j int) bool {
			cmp := domain.CompareValues(fields(out[i])[sortBy.Field], fields(out[j])[sortBy.Field])
			if sortBy.Direction == domain.SortDescending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	return out
}
