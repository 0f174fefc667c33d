package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

// ErrorResponseCode is the machine-readable code of an ErrorResponse.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest            ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized          ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed      ErrorResponseCode = "validation_failed"
	ErrorResponseCodeIndexNotFound         ErrorResponseCode = "index_not_found"
	ErrorResponseCodeVectorDimMismatch     ErrorResponseCode = "vector_dim_mismatch"
	ErrorResponseCodeSemanticNotSupported  ErrorResponseCode = "semantic_not_supported"
	ErrorResponseCodeEmbeddingServiceError ErrorResponseCode = "embedding_service_error"
	ErrorResponseCodeQueryFailed           ErrorResponseCode = "query_failed"
	ErrorResponseCodeInternalError         ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// RangeFilter bounds a numeric field.
type RangeFilter struct {
	Gt  *float64 `json:"gt,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
}

// FilterCondition is either an exact match or a range on one field.
type FilterCondition struct {
	Key   string       `json:"key"`
	Match *string      `json:"match,omitempty"`
	Range *RangeFilter `json:"range,omitempty"`
}

// FilterExpression combines conditions: all of must, at least one of should, none of must_not.
type FilterExpression struct {
	Must    *[]FilterCondition `json:"must,omitempty"`
	Should  *[]FilterCondition `json:"should,omitempty"`
	MustNot *[]FilterCondition `json:"must_not,omitempty"`
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query                 string            `json:"query"`
	Mode                  *string           `json:"mode,omitempty"`
	Filter                *FilterExpression `json:"filter,omitempty"`
	RawFilter             *string           `json:"raw_filter,omitempty"`
	VectorFields          *[]string         `json:"vector_fields,omitempty"`
	K                     *int              `json:"k,omitempty"`
	Top                   *int              `json:"top,omitempty"`
	Select                *[]string         `json:"select,omitempty"`
	SemanticConfiguration *string           `json:"semantic_configuration,omitempty"`
	Language              *string           `json:"language,omitempty"`
}

// SearchParams are the query parameters of GET /api/v1/search.
type SearchParams struct {
	Q      string    `form:"q" json:"q"`
	Mode   *string   `form:"mode,omitempty" json:"mode,omitempty"`
	Top    *int      `form:"top,omitempty" json:"top,omitempty"`
	K      *int      `form:"k,omitempty" json:"k,omitempty"`
	Fields *[]string `form:"fields,omitempty" json:"fields,omitempty"`
	Filter *[]string `form:"filter,omitempty" json:"filter,omitempty"`
}

// SearchResponse is the answer of both search routes.
type SearchResponse struct {
	Results []result.SearchResult   `json:"results"`
	Answers []result.SemanticAnswer `json:"answers,omitempty"`
	Count   int                     `json:"count"`
}

// HealthResponse is the answer of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServerInterface lists the HTTP operations.
type ServerInterface interface {
	// (POST /api/v1/search)
	Search(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/search)
	SearchGet(w http.ResponseWriter, r *http.Request, params SearchParams)
	// (GET /api/v1/index)
	DescribeIndex(w http.ResponseWriter, r *http.Request)
	// (POST /api/messages)
	BotMessages(w http.ResponseWriter, r *http.Request)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a query parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// HandlerWithOptions mounts every route of si on the base router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	errorHandler := options.ErrorHandlerFunc
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	r.Post("/api/v1/search", si.Search)
	r.Get("/api/v1/search", func(w http.ResponseWriter, req *http.Request) {
		params, err := bindSearchParams(req)
		if err != nil {
			errorHandler(w, req, err)
			return
		}
		si.SearchGet(w, req, params)
	})
	r.Get("/api/v1/index", si.DescribeIndex)
	r.Post("/api/messages", si.BotMessages)
	r.Get("/health", si.HealthCheck)
	r.Get("/metrics", si.Metrics)
	return r
}

func bindSearchParams(r *http.Request) (SearchParams, error) {
	var params SearchParams
	q := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "q", q, &params.Q); err != nil {
		return params, &InvalidParamFormatError{ParamName: "q", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "mode", q, &params.Mode); err != nil {
		return params, &InvalidParamFormatError{ParamName: "mode", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "top", q, &params.Top); err != nil {
		return params, &InvalidParamFormatError{ParamName: "top", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", q, &params.K); err != nil {
		return params, &InvalidParamFormatError{ParamName: "k", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "fields", q, &params.Fields); err != nil {
		return params, &InvalidParamFormatError{ParamName: "fields", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "filter", q, &params.Filter); err != nil {
		return params, &InvalidParamFormatError{ParamName: "filter", Err: err}
	}
	return params, nil
}
