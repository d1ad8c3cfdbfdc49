// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package filter defines the backend-independent predicate applied by the
// metadata and vector adapters. A Filter is a conjunction of
// field/operator/value conditions; each backend translates it to its native
// query form, and the reference evaluator in this package defines the
// semantics those translations must match.
package filter

import (
	"sort"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Condition is a single field/operator/value predicate. Field may be a
// dotted path into nested documents (e.g. "asset.category").
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is an immutable conjunction of conditions. The zero value matches
// every document.
type Filter struct {
	conds []Condition
}

// Where starts a filter with a single condition.
func Where(field string, op Op, value any) Filter {
	return Filter{conds: []Condition{{Field: field, Op: op, Value: value}}}
}

// Eq is shorthand for Where(field, OpEq, value).
func Eq(field string, value any) Filter {
	return Where(field, OpEq, value)
}

// And returns a new filter with the condition appended. The receiver is
// not modified.
func (f Filter) And(field string, op Op, value any) Filter {
	conds := make([]Condition, 0, len(f.conds)+1)
	conds = append(conds, f.conds...)
	conds = append(conds, Condition{Field: field, Op: op, Value: value})
	return Filter{conds: conds}
}

// Conditions returns a copy of the filter's conditions.
func (f Filter) Conditions() []Condition {
	out := make([]Condition, len(f.conds))
	copy(out, f.conds)
	return out
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.conds) == 0
}

// Matches is the reference evaluator: it reports whether doc satisfies every
// condition. A condition on a missing field never matches, including OpNe;
// backend translators must reproduce that behavior.
func (f Filter) Matches(doc map[string]any) bool {
	for _, c := range f.conds {
		val, ok := lookup(doc, c.Field)
		if !ok {
			return false
		}
		if !evaluate(c.Op, val, c.Value) {
			return false
		}
	}
	return true
}

// lookup resolves a dotted field path against nested maps.
func lookup(doc map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func evaluate(op Op, have, want any) bool {
	switch op {
	case OpEq:
		return equal(have, want)
	case OpNe:
		return !equal(have, want)
	case OpGt, OpGte, OpLt, OpLte:
		cmp, ok := compare(have, want)
		if !ok {
			return false
		}
		switch op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn:
		for _, candidate := range InValues(want) {
			if equal(have, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equal(have, want any) bool {
	if cmp, ok := compare(have, want); ok {
		return cmp == 0
	}
	return have == want
}

// compare orders two values when both are numeric or both are strings.
// Numeric comparison coerces through float64 so a stored int matches a
// queried float and values round-tripped through JSON compare correctly.
func compare(have, want any) (int, bool) {
	hf, hok := toFloat(have)
	wf, wok := toFloat(want)
	if hok && wok {
		switch {
		case hf < wf:
			return -1, true
		case hf > wf:
			return 1, true
		default:
			return 0, true
		}
	}

	hs, hok := have.(string)
	ws, wok := want.(string)
	if hok && wok {
		return strings.Compare(hs, ws), true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// InValues normalizes an OpIn condition value into the candidate list the
// evaluator compares against: typed slices are widened to []any and a
// scalar becomes a single-candidate list. Backend translators must run
// their membership values through the same normalization so OpIn matches
// the same documents everywhere.
func InValues(want any) []any {
	switch vs := want.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out
	default:
		return []any{want}
	}
}

// SortedFields returns the distinct field names referenced by the filter,
// sorted. Backends use it for deterministic translation output.
func (f Filter) SortedFields() []string {
	seen := map[string]struct{}{}
	for _, c := range f.conds {
		seen[c.Field] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for field := range seen {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}
