package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

const (
	queryTypeSemantic = "semantic"
	extractive        = "extractive"
)

type searchRequestDTO struct {
	Search                string            `json:"search,omitempty"`
	Vectors               []vectorClauseDTO `json:"vectors,omitempty"`
	Filter                string            `json:"filter,omitempty"`
	Select                string            `json:"select,omitempty"`
	Top                   int               `json:"top,omitempty"`
	QueryType             string            `json:"queryType,omitempty"`
	QueryLanguage         string            `json:"queryLanguage,omitempty"`
	SemanticConfiguration string            `json:"semanticConfiguration,omitempty"`
	Captions              string            `json:"captions,omitempty"`
	Answers               string            `json:"answers,omitempty"`
}

type vectorClauseDTO struct {
	Value  []float32 `json:"value"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchResponseDTO struct {
	Answers []answerDTO                  `json:"@search.answers"`
	Value   []map[string]json.RawMessage `json:"value"`
}

type answerDTO struct {
	Key        string  `json:"key"`
	Text       string  `json:"text"`
	Highlights string  `json:"highlights"`
	Score      float64 `json:"score"`
}

type captionDTO struct {
	Text       string `json:"text"`
	Highlights string `json:"highlights"`
}

// Search POSTs one docs/search request. A structured filter needs the index
// schema, which is fetched once per index and cached.
func (c *Client) Search(ctx context.Context, q *db.Query) (*result.Set, error) {
	body, err := c.buildSearchRequest(ctx, q)
	if err != nil {
		return nil, err
	}

	var resp searchResponseDTO
	if err := c.doJSON(ctx, db.OpQueryDocs, http.MethodPost, indexPath(q.Index)+"/docs/search", body, &resp); err != nil {
		return nil, err
	}
	return parseSearchResponse(&resp)
}

func (c *Client) buildSearchRequest(ctx context.Context, q *db.Query) (*searchRequestDTO, error) {
	body := &searchRequestDTO{
		Search: q.Text,
		Select: strings.Join(q.Select, ","),
		Top:    q.Top,
	}
	if q.Vector != nil {
		body.Vectors = []vectorClauseDTO{{
			Value:  q.Vector.Vector,
			Fields: strings.Join(q.Vector.Fields, ","),
			K:      q.Vector.K,
		}}
	}

	var filters []string
	if !q.Filter.IsEmpty() {
		idx, err := c.cachedIndex(ctx, q.Index)
		if err != nil {
			return nil, err
		}
		f, err := renderFilter(q.Filter, idx)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if q.RawFilter != "" {
		filters = append(filters, q.RawFilter)
	}
	switch len(filters) {
	case 1:
		body.Filter = filters[0]
	case 2:
		body.Filter = "(" + filters[0] + ") and (" + filters[1] + ")"
	}

	if q.Semantic != nil {
		body.QueryType = queryTypeSemantic
		body.QueryLanguage = q.Semantic.Language
		body.SemanticConfiguration = q.Semantic.Configuration
		body.Captions = extractive
		body.Answers = extractive
	}
	return body, nil
}

func parseSearchResponse(resp *searchResponseDTO) (*result.Set, error) {
	set := &result.Set{Results: make([]result.SearchResult, 0, len(resp.Value))}
	for i, item := range resp.Value {
		r, err := parseHit(item)
		if err != nil {
			return nil, &db.Error{Op: db.OpQueryDocs, Err: fmt.Errorf("result %d: %w", i, err)}
		}
		set.Results = append(set.Results, r)
	}
	result.Sort(set.Results)

	for _, a := range resp.Answers {
		set.Answers = append(set.Answers, result.SemanticAnswer{
			Key:        a.Key,
			Text:       a.Text,
			Highlights: a.Highlights,
			Score:      a.Score,
		})
	}
	return set, nil
}

// parseHit splits "@search.*" annotations from document fields.
func parseHit(item map[string]json.RawMessage) (result.SearchResult, error) {
	r := result.SearchResult{Document: make(map[string]any, len(item))}
	for k, raw := range item {
		switch k {
		case "@search.score":
			if err := json.Unmarshal(raw, &r.Score); err != nil {
				return r, fmt.Errorf("score: %w", err)
			}
		case "@search.rerankerScore":
			var s *float64
			if err := json.Unmarshal(raw, &s); err != nil {
				return r, fmt.Errorf("reranker score: %w", err)
			}
			r.RerankerScore = s
		case "@search.captions":
			var caps []captionDTO
			if err := json.Unmarshal(raw, &caps); err != nil {
				return r, fmt.Errorf("captions: %w", err)
			}
			for _, c := range caps {
				r.Captions = append(r.Captions, result.Caption{Text: c.Text, Highlights: c.Highlights})
			}
		default:
			if strings.HasPrefix(k, "@search.") {
				continue
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return r, fmt.Errorf("field %s: %w", k, err)
			}
			r.Document[k] = v
		}
	}
	return r, nil
}
