package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/filter"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultK       = 3
	MaxK           = 1000
	DefaultTop     = 3
	MaxTop         = 1000
	// DefaultLanguage is the query language sent with semantic queries.
	DefaultLanguage = "en-us"
)

// Params are the caller-supplied query settings before validation.
type Params struct {
	Mode         mode.Mode
	Text         string
	Filter       filter.Expression
	RawFilter    string
	VectorFields []string
	K            int
	Top          int
	Select       []string
	Semantic     string
	Language     string
}

// Request is a validated search query.
type Request struct {
	searchMode   mode.Mode
	text         string
	filter       filter.Expression
	rawFilter    string
	vectorFields []string
	k            int
	top          int
	selectFields []string
	semantic     string
	language     string
}

// New validates and normalizes query parameters.
// Defaults: mode=pure-vector, k=3, top=3, language=en-us. K and top are clamped to their maximums.
func New(p Params) (Request, error) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return Request{}, fmt.Errorf("query text is required: %w", domain.ErrInvalidInput)
	}
	if len(text) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidInput)
	}

	m := p.Mode
	if m == "" {
		m = mode.PureVector
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode %q: %w", m, domain.ErrInvalidInput)
	}

	fields, err := normalizeFields(p.VectorFields)
	if err != nil {
		return Request{}, err
	}
	switch {
	case len(fields) == 0:
		return Request{}, fmt.Errorf("at least one vector field is required: %w", domain.ErrInvalidInput)
	case m == mode.PureVector && len(fields) != 1:
		return Request{}, fmt.Errorf("pure-vector queries take exactly one vector field, got %d: %w",
			len(fields), domain.ErrInvalidInput)
	}

	rawFilter := strings.TrimSpace(p.RawFilter)
	if m == mode.FilteredVector && p.Filter.IsEmpty() && rawFilter == "" {
		return Request{}, fmt.Errorf("filtered-vector queries require a filter: %w", domain.ErrInvalidInput)
	}
	if m == mode.SemanticHybrid && p.Semantic == "" {
		return Request{}, fmt.Errorf("semantic-hybrid queries require a semantic configuration: %w", domain.ErrInvalidInput)
	}

	k, err := bound("k", p.K, DefaultK, MaxK)
	if err != nil {
		return Request{}, err
	}
	top, err := bound("top", p.Top, DefaultTop, MaxTop)
	if err != nil {
		return Request{}, err
	}

	language := p.Language
	if language == "" {
		language = DefaultLanguage
	}

	return Request{
		searchMode:   m,
		text:         text,
		filter:       p.Filter,
		rawFilter:    rawFilter,
		vectorFields: fields,
		k:            k,
		top:          top,
		selectFields: p.Select,
		semantic:     p.Semantic,
		language:     language,
	}, nil
}

func normalizeFields(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, f := range in {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if seen[f] {
			return nil, fmt.Errorf("duplicate vector field %q: %w", f, domain.ErrInvalidInput)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

func bound(name string, v, def, maxV int) (int, error) {
	switch {
	case v < 0:
		return 0, fmt.Errorf("%s must not be negative: %w", name, domain.ErrInvalidInput)
	case v == 0:
		return def, nil
	case v > maxV:
		return maxV, nil
	}
	return v, nil
}

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Text returns the query text.
func (r *Request) Text() string { return r.text }

// Filter returns the structured filter expression.
func (r *Request) Filter() filter.Expression { return r.filter }

// RawFilter returns a backend-native filter string, passed through unchanged.
func (r *Request) RawFilter() string { return r.rawFilter }

// HasFilter reports whether any filter applies.
func (r *Request) HasFilter() bool { return !r.filter.IsEmpty() || r.rawFilter != "" }

// VectorFields returns the vector fields searched by the query vector.
func (r *Request) VectorFields() []string { return r.vectorFields }

// K returns the nearest neighbor count per vector clause.
func (r *Request) K() int { return r.k }

// Top returns the maximum number of results to return.
func (r *Request) Top() int { return r.top }

// Select returns the fields to retrieve; empty means all retrievable fields.
func (r *Request) Select() []string { return r.selectFields }

// SemanticConfig returns the semantic configuration name.
func (r *Request) SemanticConfig() string { return r.semantic }

// Language returns the semantic query language.
func (r *Request) Language() string { return r.language }
