package azure

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
)

type indexDTO struct {
	Name         string           `json:"name"`
	Fields       []fieldDTO       `json:"fields"`
	VectorSearch *vectorSearchDTO `json:"vectorSearch,omitempty"`
	Semantic     *semanticDTO     `json:"semantic,omitempty"`
}

type fieldDTO struct {
	Name                      string `json:"name"`
	Type                      string `json:"type"`
	Key                       bool   `json:"key"`
	Searchable                bool   `json:"searchable"`
	Filterable                bool   `json:"filterable"`
	Retrievable               bool   `json:"retrievable"`
	Sortable                  bool   `json:"sortable"`
	Facetable                 bool   `json:"facetable"`
	Dimensions                int    `json:"dimensions,omitempty"`
	VectorSearchConfiguration string `json:"vectorSearchConfiguration,omitempty"`
}

type vectorSearchDTO struct {
	AlgorithmConfigurations []algorithmDTO `json:"algorithmConfigurations"`
}

type algorithmDTO struct {
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	HNSWParameters *hnswDTO `json:"hnswParameters,omitempty"`
}

type hnswDTO struct {
	M              int    `json:"m,omitempty"`
	EFConstruction int    `json:"efConstruction,omitempty"`
	EFSearch       int    `json:"efSearch,omitempty"`
	Metric         string `json:"metric,omitempty"`
}

type semanticDTO struct {
	Configurations []semanticConfigDTO `json:"configurations"`
}

type semanticConfigDTO struct {
	Name              string               `json:"name"`
	PrioritizedFields prioritizedFieldsDTO `json:"prioritizedFields"`
}

type prioritizedFieldsDTO struct {
	TitleField                *fieldNameDTO  `json:"titleField,omitempty"`
	PrioritizedContentFields  []fieldNameDTO `json:"prioritizedContentFields,omitempty"`
	PrioritizedKeywordsFields []fieldNameDTO `json:"prioritizedKeywordsFields,omitempty"`
}

type fieldNameDTO struct {
	FieldName string `json:"fieldName"`
}

// CreateOrUpdateIndex PUTs the full index definition.
func (c *Client) CreateOrUpdateIndex(ctx context.Context, idx *schema.Index) error {
	body := toDTO(idx)
	if err := c.doJSON(ctx, db.OpPutIndex, http.MethodPut, indexPath(idx.Name), body, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.schemas[idx.Name] = idx
	c.mu.Unlock()
	return nil
}

// GetIndex fetches the index definition from the service.
func (c *Client) GetIndex(ctx context.Context, name string) (*schema.Index, error) {
	var dto indexDTO
	if err := c.doJSON(ctx, db.OpGetIndex, http.MethodGet, indexPath(name), nil, &dto); err != nil {
		if isNotFound(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, err
	}
	idx := fromDTO(&dto)
	c.mu.Lock()
	c.schemas[name] = idx
	c.mu.Unlock()
	return idx, nil
}

// cachedIndex returns the last known definition, fetching it once when unknown.
func (c *Client) cachedIndex(ctx context.Context, name string) (*schema.Index, error) {
	c.mu.RLock()
	idx, ok := c.schemas[name]
	c.mu.RUnlock()
	if ok {
		return idx, nil
	}
	idx, err := c.GetIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load index %q: %w", name, err)
	}
	return idx, nil
}

func toDTO(idx *schema.Index) *indexDTO {
	dto := &indexDTO{Name: idx.Name, Fields: make([]fieldDTO, 0, len(idx.Fields))}
	for _, f := range idx.Fields {
		dto.Fields = append(dto.Fields, fieldDTO{
			Name:                      f.Name,
			Type:                      string(f.Type),
			Key:                       f.Key,
			Searchable:                f.Searchable,
			Filterable:                f.Filterable,
			Retrievable:               true,
			Sortable:                  f.Sortable,
			Facetable:                 f.Facetable,
			Dimensions:                f.Dimensions,
			VectorSearchConfiguration: f.VectorConfig,
		})
	}
	if len(idx.Algorithms) > 0 {
		vs := &vectorSearchDTO{}
		for _, a := range idx.Algorithms {
			vs.AlgorithmConfigurations = append(vs.AlgorithmConfigurations, algorithmDTO{
				Name: a.Name,
				Kind: "hnsw",
				HNSWParameters: &hnswDTO{
					M:              a.M,
					EFConstruction: a.EFConstruction,
					EFSearch:       a.EFSearch,
					Metric:         string(a.Metric),
				},
			})
		}
		dto.VectorSearch = vs
	}
	if len(idx.Semantic) > 0 {
		sem := &semanticDTO{}
		for _, s := range idx.Semantic {
			pf := prioritizedFieldsDTO{}
			if s.TitleField != "" {
				pf.TitleField = &fieldNameDTO{FieldName: s.TitleField}
			}
			for _, name := range s.ContentFields {
				pf.PrioritizedContentFields = append(pf.PrioritizedContentFields, fieldNameDTO{FieldName: name})
			}
			for _, name := range s.KeywordFields {
				pf.PrioritizedKeywordsFields = append(pf.PrioritizedKeywordsFields, fieldNameDTO{FieldName: name})
			}
			sem.Configurations = append(sem.Configurations, semanticConfigDTO{Name: s.Name, PrioritizedFields: pf})
		}
		dto.Semantic = sem
	}
	return dto
}

func fromDTO(dto *indexDTO) *schema.Index {
	idx := &schema.Index{Name: dto.Name}
	for _, f := range dto.Fields {
		idx.Fields = append(idx.Fields, schema.Field{
			Name:         f.Name,
			Type:         schema.FieldType(f.Type),
			Key:          f.Key,
			Searchable:   f.Searchable,
			Filterable:   f.Filterable,
			Sortable:     f.Sortable,
			Facetable:    f.Facetable,
			Dimensions:   f.Dimensions,
			VectorConfig: f.VectorSearchConfiguration,
		})
	}
	if dto.VectorSearch != nil {
		for _, a := range dto.VectorSearch.AlgorithmConfigurations {
			h := schema.HNSW{Name: a.Name}
			if p := a.HNSWParameters; p != nil {
				h.M, h.EFConstruction, h.EFSearch, h.Metric = p.M, p.EFConstruction, p.EFSearch, schema.Metric(p.Metric)
			}
			idx.Algorithms = append(idx.Algorithms, h)
		}
	}
	if dto.Semantic != nil {
		for _, s := range dto.Semantic.Configurations {
			sem := schema.Semantic{Name: s.Name}
			if s.PrioritizedFields.TitleField != nil {
				sem.TitleField = s.PrioritizedFields.TitleField.FieldName
			}
			for _, f := range s.PrioritizedFields.PrioritizedContentFields {
				sem.ContentFields = append(sem.ContentFields, f.FieldName)
			}
			for _, f := range s.PrioritizedFields.PrioritizedKeywordsFields {
				sem.KeywordFields = append(sem.KeywordFields, f.FieldName)
			}
			idx.Semantic = append(idx.Semantic, sem)
		}
	}
	return idx
}
