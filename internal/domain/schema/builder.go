package schema

// Builder is a fluent builder for index schemas.
type Builder struct {
	idx Index
}

// NewIndex starts building a schema for the named index.
func NewIndex(name string) *Builder {
	return &Builder{idx: Index{Name: name}}
}

// Key adds the key field. Key fields are sortable, filterable and facetable.
func (b *Builder) Key(name string) *Builder {
	b.idx.Fields = append(b.idx.Fields, Field{
		Name:       name,
		Type:       String,
		Key:        true,
		Sortable:   true,
		Filterable: true,
		Facetable:  true,
	})
	return b
}

// Text adds a searchable string field.
func (b *Builder) Text(name string) *Builder {
	b.idx.Fields = append(b.idx.Fields, Field{Name: name, Type: String, Searchable: true})
	return b
}

// FilterableText adds a string field that is both searchable and filterable.
func (b *Builder) FilterableText(name string) *Builder {
	b.idx.Fields = append(b.idx.Fields, Field{Name: name, Type: String, Searchable: true, Filterable: true})
	return b
}

// Field adds an arbitrary field.
func (b *Builder) Field(f Field) *Builder {
	b.idx.Fields = append(b.idx.Fields, f)
	return b
}

// Vector adds a vector field bound to the named HNSW configuration.
func (b *Builder) Vector(name string, dim int, algorithm string) *Builder {
	b.idx.Fields = append(b.idx.Fields, Field{
		Name:         name,
		Type:         SingleCollection,
		Searchable:   true,
		Dimensions:   dim,
		VectorConfig: algorithm,
	})
	return b
}

// HNSW declares an HNSW algorithm configuration.
func (b *Builder) HNSW(name string, m, efConstruction, efSearch int, metric Metric) *Builder {
	b.idx.Algorithms = append(b.idx.Algorithms, HNSW{
		Name:           name,
		M:              m,
		EFConstruction: efConstruction,
		EFSearch:       efSearch,
		Metric:         metric,
	})
	return b
}

// Semantic declares a semantic configuration.
func (b *Builder) Semantic(name, titleField string, contentFields, keywordFields []string) *Builder {
	b.idx.Semantic = append(b.idx.Semantic, Semantic{
		Name:          name,
		TitleField:    titleField,
		ContentFields: contentFields,
		KeywordFields: keywordFields,
	})
	return b
}

// Build validates and returns the schema.
func (b *Builder) Build() (*Index, error) {
	if err := b.idx.Validate(); err != nil {
		return nil, err
	}
	idx := b.idx
	return &idx, nil
}

// MustBuild calls Build and panics on error.
func (b *Builder) MustBuild() *Index {
	idx, err := b.Build()
	if err != nil {
		panic(err)
	}
	return idx
}
