package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/metrics"
)

// DefaultAPIVersion is the Azure OpenAI REST version used for embeddings.
const DefaultAPIVersion = "2023-05-15"

// Embedder is an embedding provider backed by an Azure OpenAI deployment.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	deployment string
	dimensions int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	// ServiceName builds the default base URL https://{ServiceName}.openai.azure.com.
	ServiceName string
	// APIBase overrides the base URL derived from ServiceName.
	APIBase    string
	APIKey     string
	APIVersion string
	Deployment string
	Model      string
	// Dimensions, when > 0, is the vector length every response must have.
	Dimensions int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// BaseURL resolves the resource endpoint.
func (c *Config) BaseURL() string {
	if c.APIBase != "" {
		return strings.TrimRight(c.APIBase, "/")
	}
	return fmt.Sprintf("https://%s.openai.azure.com", c.ServiceName)
}

// NewEmbedder creates an Azure OpenAI embedding provider. Requests go to
// {base}/openai/deployments/{deployment}/embeddings with an api-key header.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.APIBase == "" && cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name or api base is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("deployment is required")
	}

	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL())
	clientCfg.APIVersion = cfg.APIVersion
	if clientCfg.APIVersion == "" {
		clientCfg.APIVersion = DefaultAPIVersion
	}
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(string) string { return deployment }

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		deployment: deployment,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// Deployment returns the deployment name requests are routed to.
func (e *Embedder) Deployment() string { return e.deployment }

// Embed implements domain.Embedder. Returns the vector and usage with transport-level metrics.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := domain.ValidateEmbeddingInput(text); err != nil {
		return domain.EmbeddingResult{}, err
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.deployment, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.deployment, "api_error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.deployment, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.deployment, "empty_response").Inc()
		return domain.EmbeddingResult{}, &domain.EmbeddingServiceError{
			Status: http.StatusOK, Message: "response carries no embedding",
		}
	}

	vec := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vec) != e.dimensions {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.deployment, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.deployment, "dimension_mismatch").Inc()
		return domain.EmbeddingResult{}, &domain.EmbeddingServiceError{
			Status:  http.StatusOK,
			Message: fmt.Sprintf("got %d dimensions, want %d", len(vec), e.dimensions),
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.deployment, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.deployment).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.deployment, "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.deployment, "total").Add(float64(totalTokens))
	}

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies the resource answers and accepts the key via ListModels.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", parseAPIError(err))
	}
	return nil
}

// parseAPIError maps a go-openai failure to an EmbeddingServiceError.
// Status stays 0 when the request never got an HTTP response.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.EmbeddingServiceError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := strings.TrimSpace(string(reqErr.Body))
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &domain.EmbeddingServiceError{Status: reqErr.HTTPStatusCode, Message: msg}
	}

	return &domain.EmbeddingServiceError{Message: err.Error()}
}
