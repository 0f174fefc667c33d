package vecbot

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

func TestSearch_PureVectorDefaults(t *testing.T) {
	b := &fakeBackend{set: &result.Set{Results: []result.SearchResult{
		{Document: map[string]any{"title": "Azure Functions"}, Score: 0.8},
		{Document: map[string]any{"title": "Azure App Service"}, Score: 0.9},
	}}}
	c := newTestClient(t, b)

	resp, err := c.Search().Text("serverless").Do(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := b.last
	if q.Index != "docs" {
		t.Errorf("index = %q, want docs", q.Index)
	}
	if q.Text != "" {
		t.Errorf("pure-vector query sent text %q", q.Text)
	}
	if q.Vector == nil || len(q.Vector.Fields) != 1 || q.Vector.Fields[0] != "titleVector" {
		t.Fatalf("unexpected vector query: %+v", q.Vector)
	}
	if q.Vector.K != 3 {
		t.Errorf("k = %d, want 3", q.Vector.K)
	}

	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if got := resp.Results[0].Text("title"); got != "Azure App Service" {
		t.Errorf("first result = %q, want highest score first", got)
	}
	if resp.EmbeddingTokens != 2 {
		t.Errorf("tokens = %d, want 2", resp.EmbeddingTokens)
	}
}

func TestSearch_HybridWithFilters(t *testing.T) {
	b := &fakeBackend{set: &result.Set{}}
	c := newTestClient(t, b)
	lo := 10.0

	_, err := c.Search().
		Mode(ModeHybrid).
		Text("full text search").
		Where("category", "Databases").
		WhereNot("category", "Web").
		Between("price", &lo, nil).
		Top(5).
		K(7).
		Do(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := b.last
	if q.Text != "full text search" {
		t.Errorf("hybrid query text = %q", q.Text)
	}
	if len(q.Vector.Fields) != 2 || q.Vector.K != 7 {
		t.Errorf("unexpected vector query: %+v", q.Vector)
	}
	if len(q.Filter.Must()) != 2 || len(q.Filter.MustNot()) != 1 {
		t.Errorf("unexpected filter: must=%d must_not=%d", len(q.Filter.Must()), len(q.Filter.MustNot()))
	}
	if r := q.Filter.Must()[1].Range(); r == nil {
		t.Error("expected range condition")
	}
}

func TestSearch_SemanticAnswers(t *testing.T) {
	rerank := 2.5
	b := &fakeBackend{set: &result.Set{
		Results: []result.SearchResult{{
			Document:      map[string]any{"title": "Azure Cognitive Search"},
			Score:         0.03,
			RerankerScore: &rerank,
			Captions:      []result.Caption{{Text: "search-as-a-service"}},
		}},
		Answers: []result.SemanticAnswer{{Key: "3", Text: "Cognitive Search supports full-text search", Score: 0.9}},
	}}
	c := newTestClient(t, b, WithSemanticConfiguration("my-semantic-config"))

	resp, err := c.Search().Mode(ModeSemanticHybrid).Text("what supports full text search").Do(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.last.Semantic == nil || b.last.Semantic.Configuration != "my-semantic-config" {
		t.Fatalf("unexpected semantic options: %+v", b.last.Semantic)
	}
	if len(resp.Answers) != 1 || resp.Answers[0].Key != "3" {
		t.Errorf("unexpected answers: %+v", resp.Answers)
	}
	if len(resp.Results[0].Captions) != 1 || resp.Results[0].Captions[0] != "search-as-a-service" {
		t.Errorf("unexpected captions: %+v", resp.Results[0].Captions)
	}
}

func TestSearch_Errors(t *testing.T) {
	c := newTestClient(t, &fakeBackend{set: &result.Set{}})

	_, err := c.Search().Mode(ModeFilteredVector).Text("tools").Do(context.Background())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("filtered-vector without filter: expected ErrInvalidInput, got %v", err)
	}

	_, err = c.Search().Text("tools").Where("category", "").Do(context.Background())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty match value: expected ErrInvalidInput, got %v", err)
	}

	_, err = c.Search().Text("tools").Between("price", nil, nil).Do(context.Background())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("open range: expected ErrInvalidInput, got %v", err)
	}

	failing := newTestClient(t, &fakeBackend{err: errors.New("boom")})
	_, err = failing.Search().Text("tools").Do(context.Background())
	if !errors.Is(err, ErrQuery) {
		t.Errorf("backend failure: expected ErrQuery, got %v", err)
	}
}
