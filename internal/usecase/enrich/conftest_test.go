package enrich

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/batch"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
)

// stubEmbedder returns vec for every text, or err for texts listed in failOn.
type stubEmbedder struct {
	mu     sync.Mutex
	vec    []float32
	failOn map[string]error
	texts  []string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	if err, ok := s.failOn[text]; ok {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: s.vec, TotalTokens: 1}, nil
}

func (s *stubEmbedder) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

type stubUploader struct {
	results []batch.Result
	err     error
	got     []record.Record
	index   string
}

func (s *stubUploader) UploadDocuments(_ context.Context, index string, docs []record.Record) ([]batch.Result, error) {
	s.index = index
	s.got = docs
	if s.err != nil {
		return nil, s.err
	}
	if s.results != nil {
		return s.results, nil
	}
	out := make([]batch.Result, len(docs))
	for i, d := range docs {
		k, _ := d.Key("id")
		out[i] = batch.NewOK(k)
	}
	return out, nil
}

func testSchema(dim int) *schema.Index {
	return schema.NewIndex("docs").
		Key("id").
		Text("title").
		Text("content").
		FilterableText("category").
		HNSW("my-vector-config", 4, 400, 500, schema.Cosine).
		Vector("titleVector", dim, "my-vector-config").
		Vector("contentVector", dim, "my-vector-config").
		MustBuild()
}

func testMappings() []record.FieldMapping {
	return []record.FieldMapping{
		{Source: "title", Vector: "titleVector"},
		{Source: "content", Vector: "contentVector"},
	}
}

func newTestService(t *testing.T, emb Embedder, up DocumentUploader, cfg Config) *Service {
	t.Helper()
	if cfg.Schema == nil {
		cfg.Schema = testSchema(3)
	}
	if cfg.Fields == nil {
		cfg.Fields = testMappings()
	}
	svc, err := New(emb, up, cfg, zap.NewNop())
	require.NoError(t, err)
	return svc
}
