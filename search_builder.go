package vecbot

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/filter"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	"github.com/kailas-cloud/vecbot/internal/domain/search/request"
)

// SearchBuilder is a fluent builder for one query.
type SearchBuilder struct {
	client *Client

	mode      Mode
	text      string
	fields    []string
	k         int
	top       int
	selectOut []string
	semantic  string
	rawFilter string

	must    []condition
	mustNot []condition
}

type condition struct {
	key, value string
	isRange    bool
	lo, hi     *float64
}

// Mode sets the query shape. Default: ModePureVector.
func (b *SearchBuilder) Mode(m Mode) *SearchBuilder {
	b.mode = m
	return b
}

// Text sets the query text. Every mode embeds it; hybrid modes also match it as keywords.
func (b *SearchBuilder) Text(q string) *SearchBuilder {
	b.text = q
	return b
}

// Fields overrides the vector fields to search.
func (b *SearchBuilder) Fields(fields ...string) *SearchBuilder {
	b.fields = fields
	return b
}

// K sets nearest neighbors per vector field.
func (b *SearchBuilder) K(k int) *SearchBuilder {
	b.k = k
	return b
}

// Top sets the maximum number of results.
func (b *SearchBuilder) Top(n int) *SearchBuilder {
	b.top = n
	return b
}

// Select limits the document fields returned.
func (b *SearchBuilder) Select(fields ...string) *SearchBuilder {
	b.selectOut = fields
	return b
}

// Semantic sets the semantic configuration for ModeSemanticHybrid.
func (b *SearchBuilder) Semantic(name string) *SearchBuilder {
	b.semantic = name
	return b
}

// Where adds an exact-match condition.
func (b *SearchBuilder) Where(key, value string) *SearchBuilder {
	b.must = append(b.must, condition{key: key, value: value})
	return b
}

// WhereNot excludes documents whose field equals value.
func (b *SearchBuilder) WhereNot(key, value string) *SearchBuilder {
	b.mustNot = append(b.mustNot, condition{key: key, value: value})
	return b
}

// Between adds an inclusive numeric range condition. Nil bounds are open.
func (b *SearchBuilder) Between(key string, lo, hi *float64) *SearchBuilder {
	b.must = append(b.must, condition{key: key, isRange: true, lo: lo, hi: hi})
	return b
}

// RawFilter passes a backend filter expression through verbatim.
func (b *SearchBuilder) RawFilter(expr string) *SearchBuilder {
	b.rawFilter = expr
	return b
}

// Do executes the query.
func (b *SearchBuilder) Do(ctx context.Context) (*Response, error) {
	expr, err := b.expression()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	set, err := b.client.search.Query(ctx, request.Params{
		Mode:         mode.Mode(b.mode),
		Text:         b.text,
		Filter:       expr,
		RawFilter:    b.rawFilter,
		VectorFields: b.fields,
		K:            b.k,
		Top:          b.top,
		Select:       b.selectOut,
		Semantic:     b.semantic,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromResultSet(set, usage.TotalTokens()), nil
}

func (b *SearchBuilder) expression() (filter.Expression, error) {
	if len(b.must) == 0 && len(b.mustNot) == 0 {
		return filter.Expression{}, nil
	}
	must, err := toConditions(b.must)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := toConditions(b.mustNot)
	if err != nil {
		return filter.Expression{}, err
	}
	return filter.NewExpression(must, nil, mustNot)
}

func toConditions(conds []condition) ([]filter.Condition, error) {
	out := make([]filter.Condition, 0, len(conds))
	for _, c := range conds {
		if !c.isRange {
			fc, err := filter.NewMatch(c.key, c.value)
			if err != nil {
				return nil, fmt.Errorf("invalid filter condition: %w", err)
			}
			out = append(out, fc)
			continue
		}
		r, err := filter.NewRangeFilter(nil, c.lo, nil, c.hi)
		if err != nil {
			return nil, fmt.Errorf("invalid range for %q: %w", c.key, err)
		}
		fc, err := filter.NewRange(c.key, r)
		if err != nil {
			return nil, fmt.Errorf("invalid filter condition: %w", err)
		}
		out = append(out, fc)
	}
	return out, nil
}
