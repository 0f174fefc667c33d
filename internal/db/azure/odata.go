package azure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/filter"
)

// renderFilter translates a structured filter into an OData $filter expression.
// The index schema decides literal quoting and collection lambdas.
func renderFilter(expr filter.Expression, idx *schema.Index) (string, error) {
	if expr.IsEmpty() {
		return "", nil
	}

	var parts []string
	for _, cond := range expr.Must() {
		p, err := renderCondition(cond, idx)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}

	if len(expr.Should()) > 0 {
		should := make([]string, 0, len(expr.Should()))
		for _, cond := range expr.Should() {
			p, err := renderCondition(cond, idx)
			if err != nil {
				return "", err
			}
			should = append(should, p)
		}
		if len(should) == 1 {
			parts = append(parts, should[0])
		} else {
			parts = append(parts, "("+strings.Join(should, " or ")+")")
		}
	}

	for _, cond := range expr.MustNot() {
		p, err := renderCondition(cond, idx)
		if err != nil {
			return "", err
		}
		parts = append(parts, "not ("+p+")")
	}

	return strings.Join(parts, " and "), nil
}

func renderCondition(cond filter.Condition, idx *schema.Index) (string, error) {
	f, ok := idx.FieldByName(cond.Key())
	if !ok {
		return "", fmt.Errorf("filter field %q is not in index %q: %w", cond.Key(), idx.Name, domain.ErrInvalidInput)
	}
	if !f.Filterable {
		return "", fmt.Errorf("field %q is not filterable: %w", f.Name, domain.ErrInvalidInput)
	}

	if cond.IsRange() {
		if !f.Type.IsNumeric() {
			return "", fmt.Errorf("range filter on non-numeric field %q: %w", f.Name, domain.ErrInvalidInput)
		}
		return renderRange(f.Name, *cond.Range()), nil
	}

	switch f.Type {
	case schema.String:
		return fmt.Sprintf("%s eq %s", f.Name, quote(cond.Match())), nil
	case schema.StringCollection:
		return fmt.Sprintf("%s/any(t: t eq %s)", f.Name, quote(cond.Match())), nil
	case schema.Boolean:
		b, err := strconv.ParseBool(cond.Match())
		if err != nil {
			return "", fmt.Errorf("filter value %q for boolean field %q: %w", cond.Match(), f.Name, domain.ErrInvalidInput)
		}
		return fmt.Sprintf("%s eq %t", f.Name, b), nil
	case schema.Int32, schema.Int64, schema.Double:
		n, err := strconv.ParseFloat(cond.Match(), 64)
		if err != nil {
			return "", fmt.Errorf("filter value %q for numeric field %q: %w", cond.Match(), f.Name, domain.ErrInvalidInput)
		}
		return fmt.Sprintf("%s eq %s", f.Name, number(n)), nil
	default:
		return "", fmt.Errorf("field %q of type %s cannot be filtered: %w", f.Name, f.Type, domain.ErrInvalidInput)
	}
}

func renderRange(name string, r filter.Range) string {
	var parts []string
	if r.GT() != nil {
		parts = append(parts, fmt.Sprintf("%s gt %s", name, number(*r.GT())))
	} else if r.GTE() != nil {
		parts = append(parts, fmt.Sprintf("%s ge %s", name, number(*r.GTE())))
	}
	if r.LT() != nil {
		parts = append(parts, fmt.Sprintf("%s lt %s", name, number(*r.LT())))
	} else if r.LTE() != nil {
		parts = append(parts, fmt.Sprintf("%s le %s", name, number(*r.LTE())))
	}
	return strings.Join(parts, " and ")
}

// quote renders an OData string literal; single quotes are doubled.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
