package domain

import (
	"fmt"
	"strings"
	"time"
)

// PredicateKind discriminates the filter predicate variants.
type PredicateKind int

// Supported predicate variants.
const (
	// PredicateSubstring matches when the field contains the given text.
	PredicateSubstring PredicateKind = iota
	// PredicateEqual matches on value equality.
	PredicateEqual
	// PredicateOneOf matches when the field equals any listed value.
	PredicateOneOf
	// PredicateCustom delegates to a caller-supplied function.
	PredicateCustom
)

// Predicate is one tagged filter condition applied to a single field.
type Predicate struct {
	kind      PredicateKind
	substring string
	equal     any
	oneOf     []any
	custom    func(any) bool
}

// Substring builds a predicate matching fields that contain text.
func Substring(text string) Predicate {
	return Predicate{kind: PredicateSubstring, substring: text}
}

// Equal builds a predicate matching fields equal to value.
func Equal(value any) Predicate {
	return Predicate{kind: PredicateEqual, equal: value}
}

// OneOf builds a predicate matching fields equal to any of values.
func OneOf(values ...any) Predicate {
	return Predicate{kind: PredicateOneOf, oneOf: values}
}

// Custom builds a predicate delegating to fn. A nil fn never matches.
func Custom(fn func(any) bool) Predicate {
	return Predicate{kind: PredicateCustom, custom: fn}
}

// Kind returns the predicate's variant tag.
func (p Predicate) Kind() PredicateKind { return p.kind }

// Combinator selects how per-field predicate results combine.
type Combinator string

// Filter combinators. The zero value behaves as CombineAnd.
const (
	CombineAnd Combinator = "and"
	CombineOr  Combinator = "or"
)

// Filter maps field names to predicates with a top-level combinator.
type Filter struct {
	Fields        map[string]Predicate
	Combinator    Combinator
	CaseSensitive bool
	// Exact upgrades substring predicates to whole-value equality.
	Exact bool
}

// Match evaluates the filter against a record flattened to named fields.
// An empty filter matches everything. A predicate naming an absent field
// does not match.
func (f Filter) Match(fields map[string]any) bool {
	if len(f.Fields) == 0 {
		return true
	}
	matchedAny := false
	for name, pred := range f.Fields {
		value, ok := fields[name]
		matched := ok && f.evaluate(pred, value)
		if f.Combinator == CombineOr {
			if matched {
				matchedAny = true
			}
			continue
		}
		if !matched {
			return false
		}
	}
	if f.Combinator == CombineOr {
		return matchedAny
	}
	return true
}

func (f Filter) evaluate(p Predicate, value any) bool {
	switch p.kind {
	case PredicateSubstring:
		haystack := stringify(value)
		needle := p.substring
		if !f.CaseSensitive {
			haystack = strings.ToLower(haystack)
			needle = strings.ToLower(needle)
		}
		if f.Exact {
			return haystack == needle
		}
		return strings.Contains(haystack, needle)
	case PredicateEqual:
		return equalValues(value, p.equal)
	case PredicateOneOf:
		for _, candidate := range p.oneOf {
			if equalValues(value, candidate) {
				return true
			}
		}
		return false
	case PredicateCustom:
		return p.custom != nil && p.custom(value)
	}
	return false
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// SortDirection orders query results ascending or descending.
type SortDirection string

// Sort directions.
const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// Sort names the field and direction for query ordering.
type Sort struct {
	Field     string
	Direction SortDirection
}

// CompareValues orders two flattened field values. Numbers compare
// numerically, times chronologically, qualities by rank, everything else
// lexically. Returns -1, 0, or 1.
func CompareValues(a, b any) int {
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
	}
	if aq, aok := a.(Quality); aok {
		if bq, bok := b.(Quality); bok {
			return compareInts(aq.Rank(), bq.Rank())
		}
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(stringify(a)), strings.ToLower(stringify(b)))
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
