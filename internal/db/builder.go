package db

import "strings"

// IndexBuilder is a fluent builder for FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition over JSON documents.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{
		def: IndexDefinition{
			Name:        name,
			StorageType: StorageJSON,
		},
	}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(path, alias string) *IndexBuilder {
	return b.add(IndexField{Path: path, Alias: alias, Type: IndexFieldNumeric})
}

// Tag adds a TAG field.
func (b *IndexBuilder) Tag(path, alias string) *IndexBuilder {
	return b.add(IndexField{Path: path, Alias: alias, Type: IndexFieldTag})
}

// Text adds a TEXT field.
func (b *IndexBuilder) Text(path, alias string) *IndexBuilder {
	return b.add(IndexField{Path: path, Alias: alias, Type: IndexFieldText})
}

// VectorHNSW adds a FLOAT32 VECTOR field indexed with HNSW.
func (b *IndexBuilder) VectorHNSW(
	path, alias string, dim int, distance DistanceMetric, m, efBuild, efRuntime int,
) *IndexBuilder {
	return b.add(IndexField{
		Path:            path,
		Alias:           alias,
		Type:            IndexFieldVector,
		VectorDim:       dim,
		VectorDistance:  distance,
		VectorM:         m,
		VectorEFBuild:   efBuild,
		VectorEFRuntime: efRuntime,
	})
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name}
	if idx.StorageType != "" {
		parts = append(parts, "ON", string(idx.StorageType))
	}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX")
		parts = append(parts, idx.Prefixes...)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Path)
		if f.Alias != "" {
			parts = append(parts, "AS", f.Alias)
		}
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldText:
			parts = append(parts, "TEXT")
		case IndexFieldVector:
			parts = append(parts, "VECTOR", "HNSW")
		}
	}
	return strings.Join(parts, " ")
}
