package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	healthuc "github.com/kailas-cloud/vecbot/internal/usecase/health"
)

func TestSearchPost(t *testing.T) {
	q := &stubQuerier{set: gateResults()}
	router := newTestRouter(q, nil, nil)

	body := `{
		"query": "gate near food court",
		"mode": "filtered-vector",
		"vector_fields": ["TerminalVector"],
		"k": 5,
		"top": 2,
		"filter": {"must": [{"key": "Terminal", "match": "Terminal B"}]}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "4", rr.Header().Get("X-Embedding-Tokens"))

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "B7", resp.Results[0].Document["GateName"])

	assert.Equal(t, mode.FilteredVector, q.last.Mode)
	assert.Equal(t, "gate near food court", q.last.Text)
	assert.Equal(t, []string{"TerminalVector"}, q.last.VectorFields)
	assert.Equal(t, 5, q.last.K)
	assert.Equal(t, 2, q.last.Top)
	require.Len(t, q.last.Filter.Must(), 1)
	assert.Equal(t, "Terminal B", q.last.Filter.Must()[0].Match())
}

func TestSearchPost_BadBody(t *testing.T) {
	q := &stubQuerier{}
	router := newTestRouter(q, nil, nil)

	for name, body := range map[string]string{
		"not json":        `{`,
		"match and range": `{"query":"x","filter":{"must":[{"key":"a","match":"b","range":{"gt":1}}]}}`,
		"empty condition": `{"query":"x","filter":{"must":[{"key":"a"}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
	assert.Zero(t, q.hits)
}

func TestSearchGet_BindsQueryParams(t *testing.T) {
	q := &stubQuerier{set: gateResults()}
	router := newTestRouter(q, nil, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/search?q=gate&mode=cross-field-vector&top=1&k=4&fields=GateNameVector&fields=TerminalVector&filter=Terminal%3DTerminal+B",
		http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, mode.CrossFieldVector, q.last.Mode)
	assert.Equal(t, 1, q.last.Top)
	assert.Equal(t, 4, q.last.K)
	assert.Equal(t, []string{"GateNameVector", "TerminalVector"}, q.last.VectorFields)
	require.Len(t, q.last.Filter.Must(), 1)
	assert.Equal(t, "Terminal", q.last.Filter.Must()[0].Key())
}

func TestSearchGet_InvalidParams(t *testing.T) {
	q := &stubQuerier{}
	router := newTestRouter(q, nil, nil)

	for _, target := range []string{
		"/api/v1/search",                     // q is required
		"/api/v1/search?q=x&top=abc",         // not an int
		"/api/v1/search?q=x&filter=Terminal", // no operator
	} {
		req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
	assert.Zero(t, q.hits)
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		want ErrorResponseCode
	}{
		{fmt.Errorf("%w: %w", domain.ErrQuery, domain.ErrInvalidInput), http.StatusBadRequest, ErrorResponseCodeValidationFailed},
		{fmt.Errorf("%w: %w", domain.ErrQuery, db.ErrIndexNotFound), http.StatusNotFound, ErrorResponseCodeIndexNotFound},
		{fmt.Errorf("%w: %w", domain.ErrQuery, domain.ErrSemanticNotSupported), http.StatusNotImplemented, ErrorResponseCodeSemanticNotSupported},
		{fmt.Errorf("%w: %w", domain.ErrQuery, &domain.EmbeddingServiceError{Status: 401}), http.StatusBadGateway, ErrorResponseCodeEmbeddingServiceError},
		{fmt.Errorf("%w: timeout", domain.ErrQuery), http.StatusBadGateway, ErrorResponseCodeQueryFailed},
		{errors.New("boom"), http.StatusInternalServerError, ErrorResponseCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			router := newTestRouter(&stubQuerier{err: tt.err}, nil, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"x"}`))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
			assert.Equal(t, tt.want, errResp.Code)
		})
	}
}

func TestSafeDomainMessage_HidesInternals(t *testing.T) {
	err := fmt.Errorf("%w: search gates: POST /docs/search: api-key rejected", domain.ErrQuery)
	assert.Equal(t, domain.ErrQuery.Error(), safeDomainMessage(err))
	assert.Equal(t, "internal error", safeDomainMessage(errors.New("secret detail")))
}

func TestDescribeIndex(t *testing.T) {
	idx := schema.NewIndex("gates").
		Key("GateName").
		HNSW("cfg", 4, 400, 500, schema.Cosine).
		Vector("GateNameVector", 1536, "cfg").
		MustBuild()

	router := newTestRouter(&stubQuerier{}, &stubIndexes{idx: idx}, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/index", http.NoBody))

	require.Equal(t, http.StatusOK, rr.Code)
	var got schema.Index
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "gates", got.Name)
	assert.Equal(t, "GateName", got.KeyField())

	router = newTestRouter(&stubQuerier{}, &stubIndexes{err: fmt.Errorf("describe: %w", domain.ErrIndexNotFound)}, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/index", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		h := &stubHealth{report: healthuc.Report{
			Status: tt.status,
			Checks: map[string]healthuc.CheckResult{"search": healthuc.CheckOK},
		}}
		router := newTestRouter(&stubQuerier{}, nil, h)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

		assert.Equal(t, tt.want, rr.Code, tt.status)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, string(tt.status), resp.Status)
		assert.Equal(t, "ok", resp.Checks["search"])
	}
}
