package search

import (
	"context"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

type mockBackend struct {
	set   *result.Set
	err   error
	last  *db.Query
	calls int
}

func (m *mockBackend) Search(_ context.Context, q *db.Query) (*result.Set, error) {
	m.calls++
	m.last = q
	return m.set, m.err
}

type mockEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

func testDefaults() Defaults {
	return Defaults{
		Index:        "gates",
		VectorFields: []string{"GateNameVector", "TerminalVector"},
		K:            3,
		Top:          3,
		Select:       []string{"GateName", "Terminal"},
		Semantic:     "gates-semantic",
		Language:     "en-us",
	}
}

func doc(name string, score float64) result.SearchResult {
	return result.SearchResult{Document: map[string]any{"GateName": name}, Score: score}
}
