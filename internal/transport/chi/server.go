package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/filter"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	"github.com/kailas-cloud/vecbot/internal/domain/search/request"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/vecbot/internal/usecase/health"
)

// Querier runs queries through the query facade.
type Querier interface {
	Query(ctx context.Context, p request.Params) (*result.Set, error)
}

// IndexDescriber reads the stored index schema.
type IndexDescriber interface {
	Describe(ctx context.Context, name string) (*schema.Index, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface.
type Server struct {
	search        Querier
	indexes       IndexDescriber
	health        HealthChecker
	indexName     string
	bot           BotConfig
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	search Querier,
	indexes IndexDescriber,
	health HealthChecker,
	indexName string,
	bot BotConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		indexes:   indexes,
		health:    health,
		indexName: indexName,
		bot:       bot.withDefaults(),
		logger:    logger,
	}
	// Order matters: a rejected query carries both ErrQuery and ErrInvalidInput.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, ErrorResponseCodeVectorDimMismatch),
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, ErrorResponseCodeIndexNotFound),
		sentinelHandler(db.ErrIndexNotFound, http.StatusNotFound, ErrorResponseCodeIndexNotFound),
		sentinelHandler(domain.ErrSemanticNotSupported,
			http.StatusNotImplemented, ErrorResponseCodeSemanticNotSupported),
		sentinelHandler(domain.ErrEmbeddingService, http.StatusBadGateway, ErrorResponseCodeEmbeddingServiceError),
		sentinelHandler(domain.ErrQuery, http.StatusBadGateway, ErrorResponseCodeQueryFailed),
	}
	return s
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	params, err := paramsFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
		return
	}
	s.runQuery(w, r, params)
}

// SearchGet handles GET /api/v1/search.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request, params SearchParams) {
	p := request.Params{
		Text: params.Q,
		K:    derefInt(params.K),
		Top:  derefInt(params.Top),
	}
	if params.Mode != nil {
		p.Mode = mode.Mode(*params.Mode)
	}
	if params.Fields != nil {
		p.VectorFields = *params.Fields
	}
	if params.Filter != nil {
		expr, err := filter.Parse(*params.Filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
			return
		}
		p.Filter = expr
	}
	s.runQuery(w, r, p)
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, p request.Params) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	set, err := s.search.Query(ctx, p)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Results: set.Results,
		Answers: set.Answers,
		Count:   len(set.Results),
	})
}

// DescribeIndex handles GET /api/v1/index.
func (s *Server) DescribeIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := s.indexes.Describe(r.Context(), s.indexName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing backend internals.
// Invalid input is the caller's own doing, so its detail is returned as is.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrVectorDimMismatch) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrIndexNotFound,
		db.ErrIndexNotFound,
		domain.ErrSemanticNotSupported,
		domain.ErrEmbeddingService,
		domain.ErrQuery,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func paramsFromRequest(req SearchRequest) (request.Params, error) {
	p := request.Params{
		Text:         req.Query,
		VectorFields: derefStrings(req.VectorFields),
		K:            derefInt(req.K),
		Top:          derefInt(req.Top),
		Select:       derefStrings(req.Select),
	}
	if req.Mode != nil {
		p.Mode = mode.Mode(*req.Mode)
	}
	if req.RawFilter != nil {
		p.RawFilter = *req.RawFilter
	}
	if req.SemanticConfiguration != nil {
		p.Semantic = *req.SemanticConfiguration
	}
	if req.Language != nil {
		p.Language = *req.Language
	}

	expr, err := filterFromAPI(req.Filter)
	if err != nil {
		return request.Params{}, fmt.Errorf("parse filter: %w", err)
	}
	p.Filter = expr
	return p, nil
}

func filterFromAPI(f *FilterExpression) (filter.Expression, error) {
	if f == nil {
		return filter.Expression{}, nil
	}

	must, err := conditionsFromAPI(f.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromAPI(f.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromAPI(f.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}

	expr, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("new expression: %w", err)
	}
	return expr, nil
}

func conditionsFromAPI(cs *[]FilterCondition) ([]filter.Condition, error) {
	if cs == nil {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(*cs))
	for _, c := range *cs {
		cond, err := conditionFromAPI(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromAPI(c FilterCondition) (filter.Condition, error) {
	switch {
	case c.Match != nil && c.Range != nil:
		return filter.Condition{}, fmt.Errorf("filter condition for %q must have match or range, not both", c.Key)
	case c.Match != nil:
		cond, err := filter.NewMatch(c.Key, *c.Match)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("match filter: %w", err)
		}
		return cond, nil
	case c.Range != nil:
		rf, err := filter.NewRangeFilter(c.Range.Gt, c.Range.Gte, c.Range.Lt, c.Range.Lte)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range filter: %w", err)
		}
		cond, err := filter.NewRange(c.Key, rf)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("range condition: %w", err)
		}
		return cond, nil
	default:
		return filter.Condition{}, errors.New("filter condition must have either match or range")
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefStrings(p *[]string) []string {
	if p == nil {
		return nil
	}
	return *p
}
