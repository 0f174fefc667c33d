// Package search is the query facade shared by the HTTP API, the bot and the CLI.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	"github.com/kailas-cloud/vecbot/internal/domain/search/request"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
	"github.com/kailas-cloud/vecbot/internal/logger"
	"github.com/kailas-cloud/vecbot/internal/metrics"
)

// Defaults fill the parameters a caller leaves empty.
type Defaults struct {
	Index        string
	VectorFields []string
	K            int
	Top          int
	Select       []string
	Semantic     string
	Language     string
}

// Service embeds the query text and runs one of the five query shapes against the index.
type Service struct {
	backend  Backend
	embed    Embedder
	defaults Defaults
}

// New creates a query facade.
func New(backend Backend, embed Embedder, defaults Defaults) *Service {
	return &Service{backend: backend, embed: embed, defaults: defaults}
}

// Defaults returns the configured fallbacks.
func (s *Service) Defaults() Defaults { return s.defaults }

// Build applies configured defaults to p and validates the result.
func (s *Service) Build(p request.Params) (request.Request, error) {
	if len(p.VectorFields) == 0 {
		p.VectorFields = s.defaults.VectorFields
		// Pure-vector takes the first configured field only.
		if (p.Mode == mode.PureVector || p.Mode == "") && len(p.VectorFields) > 1 {
			p.VectorFields = p.VectorFields[:1]
		}
	}
	if p.K == 0 {
		p.K = s.defaults.K
	}
	if p.Top == 0 {
		p.Top = s.defaults.Top
	}
	if len(p.Select) == 0 {
		p.Select = s.defaults.Select
	}
	if p.Semantic == "" && p.Mode == mode.SemanticHybrid {
		p.Semantic = s.defaults.Semantic
	}
	if p.Language == "" {
		p.Language = s.defaults.Language
	}
	return request.New(p)
}

// Query applies defaults to p and executes it. See Execute.
func (s *Service) Query(ctx context.Context, p request.Params) (*result.Set, error) {
	req, err := s.Build(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQuery, err)
	}
	return s.Execute(ctx, req)
}

// Execute embeds the query text and runs req.
// Results come back ordered by descending score and truncated to top.
// Every failure carries domain.ErrQuery.
func (s *Service) Execute(ctx context.Context, req request.Request) (*result.Set, error) {
	m := req.Mode()
	start := time.Now()

	set, err := s.execute(ctx, req)

	metrics.SearchQueryDuration.WithLabelValues(string(m)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(string(m), "error").Inc()
		logger.FromContext(ctx).Warn("Query failed", zap.String("mode", string(m)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrQuery, err)
	}
	metrics.SearchQueriesTotal.WithLabelValues(string(m), "ok").Inc()

	logger.FromContext(ctx).Debug("Query completed",
		zap.String("mode", string(m)),
		zap.Int("results", len(set.Results)),
		zap.Int("answers", len(set.Answers)),
		zap.Duration("duration", time.Since(start)),
	)
	return set, nil
}

func (s *Service) execute(ctx context.Context, req request.Request) (*result.Set, error) {
	emb, err := s.embed.Embed(ctx, req.Text())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	q := s.toQuery(req, emb.Embedding)
	set, err := s.backend.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}
	if set == nil {
		set = &result.Set{}
	}

	result.Sort(set.Results)
	set.Results = result.Truncate(set.Results, req.Top())
	if set.Results == nil {
		set.Results = []result.SearchResult{}
	}
	return set, nil
}

func (s *Service) toQuery(req request.Request, vec []float32) *db.Query {
	q := &db.Query{
		Index:  s.defaults.Index,
		Select: req.Select(),
		Top:    req.Top(),
		Vector: &db.VectorQuery{
			Vector: vec,
			Fields: req.VectorFields(),
			K:      req.K(),
		},
	}

	// Filters apply in every mode; only filtered-vector requires one.
	q.Filter = req.Filter()
	q.RawFilter = req.RawFilter()

	if req.Mode().MatchesText() {
		q.Text = req.Text()
	}
	if req.Mode() == mode.SemanticHybrid {
		q.Semantic = &db.SemanticOptions{
			Configuration: req.SemanticConfig(),
			Language:      req.Language(),
		}
	}
	return q
}
