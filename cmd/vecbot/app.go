package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/config"
	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/db/azure"
	dbRedis "github.com/kailas-cloud/vecbot/internal/db/redis"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
	"github.com/kailas-cloud/vecbot/internal/metrics"
	"github.com/kailas-cloud/vecbot/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/vecbot/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecbot/internal/usecase/embedding"
	"github.com/kailas-cloud/vecbot/internal/usecase/enrich"
	"github.com/kailas-cloud/vecbot/internal/usecase/provision"
	searchuc "github.com/kailas-cloud/vecbot/internal/usecase/search"
)

// app is the composition root shared by every command.
type app struct {
	cfg     config.Config
	env     string
	logger  *zap.Logger
	backend db.Backend
	// embedder is the full decorator chain; healthClient is the undecorated client for health checks.
	embedder     domain.Embedder
	healthClient *openaiEmb.Embedder
	closers      []func()
}

func newApp(ctx context.Context, env string, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, env: env, logger: logger}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	var kv db.KVStore
	switch cfg.Search.Driver {
	case config.DriverAzure:
		client, err := azure.New(azure.Config{
			Endpoint:          cfg.Search.Endpoint,
			AdminKey:          cfg.Search.AdminKey,
			APIVersion:        cfg.Search.APIVersion,
			Timeout:           time.Duration(cfg.Search.TimeoutSec) * time.Second,
			UploadBatchSize:   cfg.Search.UploadBatchSize,
			UploadConcurrency: cfg.Search.UploadConcurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("create azure search client: %w", err)
		}
		a.backend = client
	case config.DriverRedis, config.DriverValkey:
		store, err := a.openRedis(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.backend = store
		kv = store
	default:
		return nil, fmt.Errorf("unknown search driver %q", cfg.Search.Driver)
	}

	if cfg.Embedding.Cache.Enabled && kv == nil {
		store, err := a.openRedis(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		kv = store
	}

	if err := a.buildEmbedder(kv); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("Backends ready",
		zap.String("search_driver", cfg.Search.Driver),
		zap.String("index", cfg.Search.IndexName),
		zap.String("deployment", cfg.Embedding.Deployment),
		zap.Bool("embedding_cache", kv != nil && cfg.Embedding.Cache.Enabled),
	)
	return a, nil
}

func (a *app) openRedis(ctx context.Context) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:     a.cfg.Redis.Addrs,
		Password:  a.cfg.Redis.Password,
		KeyPrefix: a.cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	timeout := time.Duration(a.cfg.Redis.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	a.logger.Info("Connected to redis", zap.Strings("addrs", a.cfg.Redis.Addrs))
	return store, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Retrying -> Instrumented.
func (a *app) buildEmbedder(kv db.KVStore) error {
	e := a.cfg.Embedding
	base, err := openaiEmb.NewEmbedder(&openaiEmb.Config{
		ServiceName: e.ServiceName,
		APIBase:     e.APIBase,
		APIKey:      e.APIKey,
		APIVersion:  e.APIVersion,
		Deployment:  e.Deployment,
		Model:       e.Model,
		Dimensions:  e.Dimensions,
		Timeout:     time.Duration(e.TimeoutSec) * time.Second,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	a.healthClient = base

	var embedder domain.Embedder = base
	if e.Cache.Enabled && kv != nil {
		embedder = embcache.New(base, kv, e.Deployment, e.Dimensions, metrics.EmbeddingCacheTotal, a.logger)
	}
	embedder = embeddinguc.NewRetryingEmbedder(
		embedder, e.MaxAttempts, time.Duration(e.RetryBaseDelayMS)*time.Millisecond, a.logger,
	)
	a.embedder = embeddinguc.NewInstrumentedEmbedder(embedder, e.Deployment, a.logger)
	return nil
}

func (a *app) searchService() *searchuc.Service {
	q := a.cfg.Query
	return searchuc.New(a.backend, a.embedder, searchuc.Defaults{
		Index:        a.cfg.Search.IndexName,
		VectorFields: q.VectorFields,
		K:            q.NearestNeighbors,
		Top:          q.DefaultTop,
		Select:       q.Select,
		Semantic:     q.SemanticConfiguration,
		Language:     q.Language,
	})
}

func (a *app) provisionService() *provision.Service {
	return provision.New(a.backend, a.logger)
}

func (a *app) enrichService() (*enrich.Service, error) {
	mappings := make([]record.FieldMapping, 0, len(a.cfg.Enrichment.Fields))
	for _, m := range a.cfg.Enrichment.Fields {
		mappings = append(mappings, record.FieldMapping{Source: m.Source, Vector: m.Vector})
	}
	svc, err := enrich.New(a.embedder, a.backend, enrich.Config{
		Schema:       &a.cfg.Schema,
		Fields:       mappings,
		Workers:      a.cfg.Enrichment.Workers,
		MissingField: enrich.MissingFieldPolicy(a.cfg.Enrichment.MissingField),
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create enrichment service: %w", err)
	}
	return svc, nil
}

// Close releases backend connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
