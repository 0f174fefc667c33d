package vecbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/db/azure"
	dbRedis "github.com/kailas-cloud/vecbot/internal/db/redis"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
	openaiEmb "github.com/kailas-cloud/vecbot/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecbot/internal/usecase/embedding"
	searchuc "github.com/kailas-cloud/vecbot/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// backend is the slice of db.Backend the client needs.
type backend interface {
	Ping(ctx context.Context) error
	Search(ctx context.Context, q *db.Query) (*result.Set, error)
}

// Client is the vecbot SDK entry point.
type Client struct {
	backend  backend
	closer   func()
	embedder domain.Embedder
	search   *searchuc.Service
	logger   *zap.Logger
}

// New creates a Client and connects to the search backend.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		k:           3,
		top:         3,
		language:    "en-us",
		maxAttempts: 1,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	if cfg.index == "" {
		return nil, errors.New("vecbot: index name required (use WithIndex)")
	}
	if len(cfg.vectorFields) == 0 {
		return nil, errors.New("vecbot: at least one vector field required (use WithIndex)")
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	b, closer, err := createBackend(cfg)
	if err != nil {
		return nil, err
	}

	return wireClient(b, closer, emb, cfg), nil
}

func createBackend(cfg *clientConfig) (backend, func(), error) {
	switch cfg.driver {
	case "azure":
		c, err := azure.New(azure.Config{Endpoint: cfg.endpoint, AdminKey: cfg.adminKey})
		if err != nil {
			return nil, nil, fmt.Errorf("vecbot: create azure search client: %w", err)
		}
		return c, nil, nil
	case "redis", "valkey":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: domain.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("vecbot: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("vecbot: %s not ready: %w", cfg.driver, err)
		}
		return s, s.Close, nil
	case "":
		return nil, nil, errors.New("vecbot: search backend required (use WithAzureSearch, WithRedis or WithValkey)")
	default:
		return nil, nil, fmt.Errorf("vecbot: unknown driver %q", cfg.driver)
	}
}

// buildEmbedder assembles the decorator chain: provider -> Retrying -> Instrumented.
func buildEmbedder(cfg *clientConfig) (domain.Embedder, error) {
	var emb domain.Embedder = noopEmbedder{}
	deployment := "custom"
	switch {
	case cfg.embedder != nil:
		emb = &embedderAdapter{inner: cfg.embedder}
	case cfg.openai != nil:
		deployment = cfg.openai.deployment
		o, err := openaiEmb.NewEmbedder(&openaiEmb.Config{
			ServiceName: cfg.openai.serviceName,
			APIKey:      cfg.openai.apiKey,
			Deployment:  cfg.openai.deployment,
			Timeout:     cfg.openai.timeout,
			Logger:      cfg.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("vecbot: create embedder: %w", err)
		}
		emb = o
	}
	emb = embeddinguc.NewRetryingEmbedder(emb, cfg.maxAttempts, embeddinguc.DefaultRetryBaseDelay, cfg.logger)
	return embeddinguc.NewInstrumentedEmbedder(emb, deployment, cfg.logger), nil
}

func wireClient(b backend, closer func(), emb domain.Embedder, cfg *clientConfig) *Client {
	return &Client{
		backend:  b,
		closer:   closer,
		embedder: emb,
		search: searchuc.New(b, emb, searchuc.Defaults{
			Index:        cfg.index,
			VectorFields: cfg.vectorFields,
			K:            cfg.k,
			Top:          cfg.top,
			Semantic:     cfg.semantic,
			Language:     cfg.language,
		}),
		logger: cfg.logger,
	}
}

// Close releases backend connections.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Ping checks search backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Embed vectorizes text with the configured provider.
func (c *Client) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// Search starts a query against the configured index.
func (c *Client) Search() *SearchBuilder {
	return &SearchBuilder{client: c, mode: ModePureVector}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := domain.ValidateEmbeddingInput(text); err != nil {
		return domain.EmbeddingResult{}, err
	}
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"vecbot: embedder not configured (use WithAzureOpenAI or WithEmbedder)",
	)
}
