// Package record models the source and enriched documents flowing through enrichment.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/vecbot/internal/domain"
)

// Record is one document: named text/scalar fields plus, once enriched, vector fields.
type Record map[string]any

// FieldMapping pairs a text-bearing source field with the vector field it feeds.
type FieldMapping struct {
	Source string
	Vector string
}

// Validate checks that both names are set and distinct.
func (m FieldMapping) Validate() error {
	if m.Source == "" || m.Vector == "" {
		return fmt.Errorf("field mapping requires source and vector names: %w", domain.ErrInvalidInput)
	}
	if m.Source == m.Vector {
		return fmt.Errorf("field mapping %q maps onto itself: %w", m.Source, domain.ErrInvalidInput)
	}
	return nil
}

// Clone returns a shallow copy; the source record is never mutated by enrichment.
func (r Record) Clone() Record {
	out := make(Record, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Key returns the record key stored under field.
func (r Record) Key(field string) (string, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", fmt.Errorf("record has no key field %q: %w", field, domain.ErrInvalidInput)
	}
	s, ok := scalarString(v)
	if !ok || s == "" {
		return "", fmt.Errorf("key field %q must be a non-empty scalar: %w", field, domain.ErrInvalidInput)
	}
	return s, nil
}

// Text returns the embedding input held by field.
// The second result is false when the field is absent, null or not a scalar.
func (r Record) Text(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	return scalarString(v)
}

// Vector returns the vector stored under field, if any.
func (r Record) Vector(field string) ([]float32, bool) {
	v, ok := r[field].([]float32)
	return v, ok
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Keys returns the key of every record, failing on a missing or duplicate key.
func Keys(records []Record, keyField string) ([]string, error) {
	return collectKeys(records, keyField, false)
}

// Labels names each record for logs and errors: its key when it has one, "#<index>" otherwise.
// Records without a key are allowed; two records sharing a key are not.
func Labels(records []Record, keyField string) ([]string, error) {
	return collectKeys(records, keyField, true)
}

func collectKeys(records []Record, keyField string, allowMissing bool) ([]string, error) {
	keys := make([]string, len(records))
	seen := make(map[string]int, len(records))
	for i, r := range records {
		k, err := r.Key(keyField)
		if err != nil {
			if allowMissing {
				keys[i] = fmt.Sprintf("#%d", i)
				continue
			}
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if prev, dup := seen[k]; dup {
			return nil, fmt.Errorf("records %d and %d share key %q: %w", prev, i, k, domain.ErrInvalidInput)
		}
		seen[k] = i
		keys[i] = k
	}
	return keys, nil
}
