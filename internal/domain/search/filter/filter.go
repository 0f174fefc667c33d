// Package filter holds backend-neutral boolean filters over scalar index fields.
// Backends render an Expression into their own syntax (OData, FT.SEARCH).
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Keys returns every field name referenced by the expression, without duplicates.
func (e Expression) Keys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, group := range [][]Condition{e.must, e.should, e.mustNot} {
		for _, c := range group {
			if !seen[c.key] {
				seen[c.key] = true
				keys = append(keys, c.key)
			}
		}
	}
	return keys
}

// Condition is a single filter clause: either an exact match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// operators in match order: two-rune operators must be tried first.
var operators = []string{">=", "<=", "!=", ">", "<", "="}

// Parse builds an Expression from "key=value", "key!=value", "key>n",
// "key>=n", "key<n" and "key<=n" clauses. All clauses must hold.
func Parse(clauses []string) (Expression, error) {
	var must, mustNot []Condition
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		key, op, value, ok := splitClause(clause)
		if !ok {
			return Expression{}, fmt.Errorf("filter clause %q has no operator", clause)
		}
		switch op {
		case "=", "!=":
			c, err := NewMatch(key, unquote(value))
			if err != nil {
				return Expression{}, err
			}
			if op == "=" {
				must = append(must, c)
			} else {
				mustNot = append(mustNot, c)
			}
		default:
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Expression{}, fmt.Errorf("filter clause %q: %q is not a number", clause, value)
			}
			var r Range
			switch op {
			case ">":
				r, err = NewRangeFilter(&n, nil, nil, nil)
			case ">=":
				r, err = NewRangeFilter(nil, &n, nil, nil)
			case "<":
				r, err = NewRangeFilter(nil, nil, &n, nil)
			case "<=":
				r, err = NewRangeFilter(nil, nil, nil, &n)
			}
			if err != nil {
				return Expression{}, err
			}
			c, err := NewRange(key, r)
			if err != nil {
				return Expression{}, err
			}
			must = append(must, c)
		}
	}
	return NewExpression(must, nil, mustNot)
}

func splitClause(clause string) (key, op, value string, ok bool) {
	idx := -1
	for i := 0; i < len(clause); i++ {
		for _, o := range operators {
			if strings.HasPrefix(clause[i:], o) {
				idx, op = i, o
				break
			}
		}
		if idx >= 0 {
			break
		}
	}
	if idx <= 0 {
		return "", "", "", false
	}
	key = strings.TrimSpace(clause[:idx])
	value = strings.TrimSpace(clause[idx+len(op):])
	return key, op, value, key != ""
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
