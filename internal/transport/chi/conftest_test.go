package chi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/request"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/vecbot/internal/usecase/health"
)

type stubQuerier struct {
	set  *result.Set
	err  error
	last request.Params
	hits int
}

func (s *stubQuerier) Query(ctx context.Context, p request.Params) (*result.Set, error) {
	s.hits++
	s.last = p
	if s.err != nil {
		return nil, s.err
	}
	domain.UsageFromContext(ctx).AddTokens(4)
	return s.set, nil
}

type stubIndexes struct {
	idx *schema.Index
	err error
}

func (s *stubIndexes) Describe(_ context.Context, _ string) (*schema.Index, error) {
	return s.idx, s.err
}

type stubHealth struct {
	report healthuc.Report
}

func (s *stubHealth) Check(_ context.Context) healthuc.Report { return s.report }

func gateResults() *result.Set {
	return &result.Set{Results: []result.SearchResult{
		{Document: map[string]any{"GateName": "B7", "Terminal": "Terminal B"}, Score: 0.91},
		{Document: map[string]any{"GateName": "C2", "Terminal": "Terminal C"}, Score: 0.84},
	}}
}

func newTestRouter(q *stubQuerier, idx *stubIndexes, h *stubHealth) http.Handler {
	if idx == nil {
		idx = &stubIndexes{}
	}
	if h == nil {
		h = &stubHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	srv := NewServer(q, idx, h, "gates", BotConfig{TitleField: "GateName", DetailField: "Terminal"}, zap.NewNop())
	return HandlerWithOptions(srv, ChiServerOptions{})
}
