package domain

import (
	"testing"
	"time"
)

func TestFilterMatchSubstring(t *testing.T) {
	fields := map[string]any{"name": "Galaxy Black", "material": "PLA"}

	f := Filter{Fields: map[string]Predicate{"name": Substring("galaxy")}}
	if !f.Match(fields) {
		t.Fatal("case-insensitive substring should match")
	}

	f.CaseSensitive = true
	if f.Match(fields) {
		t.Fatal("case-sensitive substring should not match lowered needle")
	}

	exact := Filter{Fields: map[string]Predicate{"material": Substring("pla")}, Exact: true}
	if !exact.Match(fields) {
		t.Fatal("exact mode should match whole value ignoring case")
	}
	exact.Fields["material"] = Substring("pl")
	if exact.Match(fields) {
		t.Fatal("exact mode should not match partial value")
	}
}

func TestFilterMatchEqualAndOneOf(t *testing.T) {
	fields := map[string]any{"diameter_mm": 1.75, "material": "PETG"}

	if !(Filter{Fields: map[string]Predicate{"diameter_mm": Equal(1.75)}}).Match(fields) {
		t.Fatal("numeric equality should match")
	}
	if !(Filter{Fields: map[string]Predicate{"diameter_mm": Equal(1)}}).Match(map[string]any{"diameter_mm": 1.0}) {
		t.Fatal("mixed numeric types should compare numerically")
	}
	if !(Filter{Fields: map[string]Predicate{"material": OneOf("PLA", "PETG")}}).Match(fields) {
		t.Fatal("one-of should match a listed value")
	}
	if (Filter{Fields: map[string]Predicate{"material": OneOf("PLA", "ABS")}}).Match(fields) {
		t.Fatal("one-of should not match an unlisted value")
	}
}

func TestFilterMatchCustom(t *testing.T) {
	fields := map[string]any{"remaining_weight_g": 40.0}
	low := Filter{Fields: map[string]Predicate{"remaining_weight_g": Custom(func(v any) bool {
		w, ok := v.(float64)
		return ok && w < 100
	})}}
	if !low.Match(fields) {
		t.Fatal("custom predicate should match")
	}
	if (Filter{Fields: map[string]Predicate{"remaining_weight_g": Custom(nil)}}).Match(fields) {
		t.Fatal("nil custom predicate should never match")
	}
}

func TestFilterCombinators(t *testing.T) {
	fields := map[string]any{"name": "Benchy", "category": "Toys & Games"}

	and := Filter{Fields: map[string]Predicate{
		"name":     Substring("bench"),
		"category": Substring("tools"),
	}}
	if and.Match(fields) {
		t.Fatal("and combinator should require every predicate")
	}

	or := Filter{Combinator: CombineOr, Fields: map[string]Predicate{
		"name":     Substring("bench"),
		"category": Substring("tools"),
	}}
	if !or.Match(fields) {
		t.Fatal("or combinator should accept one match")
	}
}

func TestFilterAbsentFieldAndEmptyFilter(t *testing.T) {
	fields := map[string]any{"name": "Benchy"}
	if (Filter{Fields: map[string]Predicate{"location": Substring("shelf")}}).Match(fields) {
		t.Fatal("predicate on absent field should not match")
	}
	if !(Filter{}).Match(fields) {
		t.Fatal("empty filter should match everything")
	}
}

func TestPredicateKind(t *testing.T) {
	cases := []struct {
		pred Predicate
		want PredicateKind
	}{
		{Substring("x"), PredicateSubstring},
		{Equal(1), PredicateEqual},
		{OneOf(1, 2), PredicateOneOf},
		{Custom(func(any) bool { return true }), PredicateCustom},
	}
	for _, c := range cases {
		if got := c.pred.Kind(); got != c.want {
			t.Fatalf("Kind() = %v, want %v", got, c.want)
		}
	}
}

func TestCompareValues(t *testing.T) {
	earlier := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(24 * time.Hour)

	if CompareValues(earlier, later) != -1 || CompareValues(later, earlier) != 1 || CompareValues(earlier, earlier) != 0 {
		t.Fatal("times should compare chronologically")
	}
	if CompareValues(1.5, 2) != -1 || CompareValues(3, 2.5) != 1 {
		t.Fatal("numbers should compare numerically")
	}
	if CompareValues("apple", "Banana") != -1 {
		t.Fatal("strings should compare case-insensitively")
	}
}

func TestCompareValuesQualityRank(t *testing.T) {
	ordered := []Quality{QualityExcellent, QualityGood, QualityFair, QualityPoor}
	for i := 0; i < len(ordered)-1; i++ {
		if CompareValues(ordered[i], ordered[i+1]) != -1 {
			t.Fatalf("%s should sort before %s", ordered[i], ordered[i+1])
		}
	}
	if CompareValues(QualityGood, QualityGood) != 0 {
		t.Fatal("equal qualities should compare as equal")
	}
}
