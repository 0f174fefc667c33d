package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
)

// CreateOrUpdateIndex drops the FT index (documents are kept), recreates it
// from idx and stores idx as the declared schema.
func (s *Store) CreateOrUpdateIndex(ctx context.Context, idx *schema.Index) error {
	def, err := toDefinition(idx, s.docPrefix(idx.Name))
	if err != nil {
		return fmt.Errorf("translate schema: %w", err)
	}
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	drop := s.b().Arbitrary("FT.DROPINDEX").Args(idx.Name).Build()
	if err := s.do(ctx, drop).Error(); err != nil && !isRedisErr(err, "unknown index name") &&
		!isRedisErr(err, "no such index") {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}

	create := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, create).Error(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := s.Set(ctx, s.schemaKey(idx.Name), data); err != nil {
		return err
	}

	s.mu.Lock()
	s.schemas[idx.Name] = idx
	s.mu.Unlock()
	return nil
}

// GetIndex returns the declared schema stored by CreateOrUpdateIndex.
func (s *Store) GetIndex(ctx context.Context, name string) (*schema.Index, error) {
	s.mu.RLock()
	cached, ok := s.schemas[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := s.Get(ctx, s.schemaKey(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, db.ErrIndexNotFound
		}
		return nil, err
	}
	var idx schema.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode stored schema %q: %w", name, err)
	}

	s.mu.Lock()
	s.schemas[name] = &idx
	s.mu.Unlock()
	return &idx, nil
}

// toDefinition maps a schema onto FT attributes. Searchable strings become TEXT,
// other filterable strings and string collections become TAG, filterable or
// sortable numbers become NUMERIC. Booleans and plain retrievable fields are
// stored in the JSON document but not indexed.
func toDefinition(idx *schema.Index, prefix string) (*db.IndexDefinition, error) {
	b := db.NewIndex(idx.Name).Prefix(prefix)
	for _, f := range idx.Fields {
		path := "$." + f.Name
		switch {
		case f.IsVector():
			algo, ok := idx.Algorithm(f.VectorConfig)
			if !ok {
				return nil, fmt.Errorf("field %q references unknown algorithm %q", f.Name, f.VectorConfig)
			}
			b.VectorHNSW(path, f.Name, f.Dimensions, distanceFor(algo.Metric), algo.M, algo.EFConstruction, algo.EFSearch)
		case f.Type == schema.String && f.Searchable && !f.Key:
			b.Text(path, f.Name)
		case f.Type == schema.String && (f.Filterable || f.Key):
			b.Tag(path, f.Name)
		case f.Type == schema.StringCollection && (f.Filterable || f.Searchable):
			b.Tag(path+"[*]", f.Name)
		case f.Type.IsNumeric() && (f.Filterable || f.Sortable):
			b.Numeric(path, f.Name)
		}
	}
	return b.Build()
}

func distanceFor(m schema.Metric) db.DistanceMetric {
	switch m {
	case schema.Euclidean:
		return db.DistanceL2
	case schema.DotProduct:
		return db.DistanceIP
	default:
		return db.DistanceCosine
	}
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageJSON
	}
	args = append(args, "ON", string(storage))

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Path == "" {
		return nil, errors.New("field path is required")
	}

	args := []string{f.Path}

	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldText:
		args = append(args, "TEXT")

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}

	case db.IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)

	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if f.VectorM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
	}
	if f.VectorEFBuild > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFBuild))
	}
	if f.VectorEFRuntime > 0 {
		attrs = append(attrs, "EF_RUNTIME", strconv.Itoa(f.VectorEFRuntime))
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	result = append(result, attrs...)

	return result, nil
}
