package record

import (
	"fmt"
	"net/url"
	"strconv"
)

// Op is a filter comparison operator. The names follow PostgREST query
// operators so a condition can be rendered directly into the remote query
// string.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

type condition struct {
	field string
	op    Op
	value any
}

// Filter is an ordered set of field conditions combined with AND.
//
// A filter serves both read paths: Query renders it into remote query
// parameters, Match evaluates it against a cached record. Applying the same
// filter on both paths keeps offline reads consistent with online ones
// instead of silently overselecting when the network is down.
//
// A nil *Filter matches everything.
type Filter struct {
	conds []condition
}

// Where starts a filter with a single condition.
func Where(field string, op Op, value any) *Filter {
	return (&Filter{}).And(field, op, value)
}

// And appends a condition and returns the filter for chaining.
func (f *Filter) And(field string, op Op, value any) *Filter {
	f.conds = append(f.conds, condition{field: field, op: op, value: value})
	return f
}

// Empty reports whether the filter has no conditions.
func (f *Filter) Empty() bool {
	return f == nil || len(f.conds) == 0
}

// Query renders the filter as PostgREST-style query parameters,
// e.g. Where("amount", OpGte, 100) becomes amount=gte.100.
func (f *Filter) Query() url.Values {
	q := url.Values{}
	if f == nil {
		return q
	}
	for _, c := range f.conds {
		q.Add(c.field, string(c.op)+"."+formatValue(c.value))
	}
	return q
}

// Match evaluates the filter against a record. Records missing a filtered
// field never match, except for neq which treats an absent field as unequal.
func (f *Filter) Match(r Record) bool {
	if f == nil {
		return true
	}
	for _, c := range f.conds {
		have, ok := r[c.field]
		if !ok {
			if c.op == OpNeq {
				continue
			}
			return false
		}
		if !matches(have, c.op, c.value) {
			return false
		}
	}
	return true
}

func matches(have any, op Op, want any) bool {
	cmp, ok := compare(have, want)
	if !ok {
		// Incomparable types only satisfy inequality.
		return op == OpNeq
	}
	switch op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// compare orders two soft-typed values. Numbers compare numerically across
// int/float representations, strings lexically (which covers RFC 3339
// timestamps), bools as equality only.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		return 1, true
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

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
