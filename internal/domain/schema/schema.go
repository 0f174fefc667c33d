// Package schema declares the field layout of a search index.
package schema

import (
	"fmt"
	"regexp"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FieldType is the storage type of an index field.
type FieldType string

// Field type constants (Entity Data Model names).
const (
	String           FieldType = "Edm.String"
	Int32            FieldType = "Edm.Int32"
	Int64            FieldType = "Edm.Int64"
	Double           FieldType = "Edm.Double"
	Boolean          FieldType = "Edm.Boolean"
	StringCollection FieldType = "Collection(Edm.String)"
	// SingleCollection holds a vector of single-precision floats.
	SingleCollection FieldType = "Collection(Edm.Single)"
)

// IsValid checks if the type is one of the supported values.
func (t FieldType) IsValid() bool {
	switch t {
	case String, Int32, Int64, Double, Boolean, StringCollection, SingleCollection:
		return true
	}
	return false
}

// IsNumeric reports whether the type holds a number.
func (t FieldType) IsNumeric() bool {
	return t == Int32 || t == Int64 || t == Double
}

// Metric is the vector similarity metric.
type Metric string

// Metric constants.
const (
	Cosine     Metric = "cosine"
	Euclidean  Metric = "euclidean"
	DotProduct Metric = "dotProduct"
)

// Field describes one index field.
type Field struct {
	Name         string    `json:"name" yaml:"name"`
	Type         FieldType `json:"type" yaml:"type"`
	Key          bool      `json:"key,omitempty" yaml:"key"`
	Searchable   bool      `json:"searchable,omitempty" yaml:"searchable"`
	Filterable   bool      `json:"filterable,omitempty" yaml:"filterable"`
	Sortable     bool      `json:"sortable,omitempty" yaml:"sortable"`
	Facetable    bool      `json:"facetable,omitempty" yaml:"facetable"`
	Dimensions   int       `json:"dimensions,omitempty" yaml:"dimensions"`
	VectorConfig string    `json:"vectorConfig,omitempty" yaml:"vector_config"`
}

// IsVector reports whether the field stores an embedding.
func (f Field) IsVector() bool { return f.Type == SingleCollection }

// HNSW is a named HNSW algorithm configuration referenced by vector fields.
type HNSW struct {
	Name           string `json:"name" yaml:"name"`
	M              int    `json:"m" yaml:"m"`
	EFConstruction int    `json:"efConstruction" yaml:"ef_construction"`
	EFSearch       int    `json:"efSearch" yaml:"ef_search"`
	Metric         Metric `json:"metric" yaml:"metric"`
}

// Semantic names the prioritized fields used by semantic reranking.
type Semantic struct {
	Name          string   `json:"name" yaml:"name"`
	TitleField    string   `json:"titleField,omitempty" yaml:"title_field"`
	ContentFields []string `json:"contentFields,omitempty" yaml:"content_fields"`
	KeywordFields []string `json:"keywordFields,omitempty" yaml:"keyword_fields"`
}

// Index is the full schema document sent on create-or-update.
type Index struct {
	Name       string     `json:"name" yaml:"name"`
	Fields     []Field    `json:"fields" yaml:"fields"`
	Algorithms []HNSW     `json:"algorithms,omitempty" yaml:"algorithms"`
	Semantic   []Semantic `json:"semantic,omitempty" yaml:"semantic"`
}

// Validate checks that the schema is well-formed.
func (idx *Index) Validate() error {
	if idx.Name == "" {
		return fmt.Errorf("index name is required")
	}
	if len(idx.Name) > 128 || !nameRegex.MatchString(idx.Name) {
		return fmt.Errorf("index name %q must be alphanumeric with underscores and hyphens", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}

	algos := make(map[string]bool, len(idx.Algorithms))
	for _, a := range idx.Algorithms {
		if a.Name == "" {
			return fmt.Errorf("algorithm name is required")
		}
		if algos[a.Name] {
			return fmt.Errorf("duplicate algorithm name: %s", a.Name)
		}
		algos[a.Name] = true
		switch a.Metric {
		case Cosine, Euclidean, DotProduct:
		default:
			return fmt.Errorf("algorithm %q: invalid metric %q", a.Name, a.Metric)
		}
		if a.M < 0 || a.EFConstruction < 0 || a.EFSearch < 0 {
			return fmt.Errorf("algorithm %q: parameters must not be negative", a.Name)
		}
	}

	seen := make(map[string]bool, len(idx.Fields))
	keys := 0
	for _, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("field name is required")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = true

		if !f.Type.IsValid() {
			return fmt.Errorf("field %q: invalid type %q", f.Name, f.Type)
		}
		if f.Key {
			keys++
			if f.Type != String {
				return fmt.Errorf("key field %q must be %s", f.Name, String)
			}
		}
		if f.IsVector() {
			if f.Dimensions <= 0 {
				return fmt.Errorf("vector field %q requires positive dimensions", f.Name)
			}
			if !algos[f.VectorConfig] {
				return fmt.Errorf("vector field %q references unknown algorithm %q", f.Name, f.VectorConfig)
			}
		} else if f.Dimensions != 0 || f.VectorConfig != "" {
			return fmt.Errorf("field %q is not a vector field but declares vector settings", f.Name)
		}
	}
	if keys != 1 {
		return fmt.Errorf("exactly one key field is required, got %d", keys)
	}

	for _, s := range idx.Semantic {
		if s.Name == "" {
			return fmt.Errorf("semantic configuration name is required")
		}
		names := append([]string{s.TitleField}, s.ContentFields...)
		names = append(names, s.KeywordFields...)
		for _, n := range names {
			if n != "" && !seen[n] {
				return fmt.Errorf("semantic configuration %q references unknown field %q", s.Name, n)
			}
		}
	}
	return nil
}

// KeyField returns the name of the key field, or "" if none is declared.
func (idx *Index) KeyField() string {
	for _, f := range idx.Fields {
		if f.Key {
			return f.Name
		}
	}
	return ""
}

// FieldByName finds a field by name.
func (idx *Index) FieldByName(name string) (Field, bool) {
	for _, f := range idx.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// VectorFields returns the vector fields in declaration order.
func (idx *Index) VectorFields() []Field {
	var out []Field
	for _, f := range idx.Fields {
		if f.IsVector() {
			out = append(out, f)
		}
	}
	return out
}

// Algorithm finds an HNSW configuration by name.
func (idx *Index) Algorithm(name string) (HNSW, bool) {
	for _, a := range idx.Algorithms {
		if a.Name == name {
			return a, true
		}
	}
	return HNSW{}, false
}

// SemanticConfig finds a semantic configuration by name.
func (idx *Index) SemanticConfig(name string) (Semantic, bool) {
	for _, s := range idx.Semantic {
		if s.Name == name {
			return s, true
		}
	}
	return Semantic{}, false
}

// RemovedFields lists the fields of current that next no longer declares.
// Create-or-update replaces the declared schema, so these lose their data.
func RemovedFields(current, next *Index) []string {
	if current == nil || next == nil {
		return nil
	}
	var removed []string
	for _, f := range current.Fields {
		if _, ok := next.FieldByName(f.Name); !ok {
			removed = append(removed, f.Name)
		}
	}
	return removed
}
