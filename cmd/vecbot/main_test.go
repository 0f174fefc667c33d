package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kailas-cloud/vecbot/internal/logger"
)

func TestMatchExpression(t *testing.T) {
	expr, err := matchExpression(nil)
	require.NoError(t, err)
	assert.True(t, expr.IsEmpty())

	expr, err = matchExpression([]string{"category=Databases", "region=eu"})
	require.NoError(t, err)
	require.Len(t, expr.Must(), 2)
	assert.Equal(t, "category", expr.Must()[0].Key())
	assert.Equal(t, "Databases", expr.Must()[0].Match())
	assert.Empty(t, expr.Should())

	_, err = matchExpression([]string{"category"})
	assert.Error(t, err)
}

func TestModeNames(t *testing.T) {
	assert.Equal(t, "pure-vector, cross-field-vector, filtered-vector, hybrid, semantic-hybrid", modeNames())
}

func TestJSONRecoverer(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := jsonRecoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"code":"internal_error","message":"internal error"}`, rr.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(zap.New(core)))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		logpkg.FromContext(r.Context()).Info("inside")
		w.Header().Set("X-Embedding-Tokens", "7")
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	inside := logs.FilterMessage("inside").All()
	require.Len(t, inside, 1)
	assert.Equal(t, rr.Header().Get("X-Request-ID"), inside[0].ContextMap()["request_id"])

	lines := logs.FilterMessage("http_request").All()
	require.Len(t, lines, 1)
	fields := lines[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "/ping", fields["path"])
	assert.Equal(t, "7", fields["embedding_tokens"])
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestEmbeddingHealthChecker(t *testing.T) {
	require.NoError(t, newEmbeddingHealthChecker(stubChecker{}).HealthCheck(context.Background()))

	sentinel := errors.New("down")
	err := newEmbeddingHealthChecker(stubChecker{err: sentinel}).HealthCheck(context.Background())
	assert.ErrorIs(t, err, sentinel)
}
