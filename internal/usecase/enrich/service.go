// Package enrich attaches embedding vectors to source records and uploads the result.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/batch"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/metrics"
)

// MissingFieldPolicy decides what happens when a record lacks a mapped source field.
type MissingFieldPolicy string

const (
	// MissingFail aborts the batch naming the record key and field.
	MissingFail MissingFieldPolicy = "fail"
	// MissingNull stores a null vector so the record still carries every vector field.
	MissingNull MissingFieldPolicy = "null"
)

// IsValid checks if the policy is one of the supported values.
func (p MissingFieldPolicy) IsValid() bool { return p == MissingFail || p == MissingNull }

// DefaultWorkers keeps embedding calls sequential unless configured otherwise.
const DefaultWorkers = 1

// Config describes one enrichment run.
type Config struct {
	Schema       *schema.Index
	Fields       []record.FieldMapping
	Workers      int
	MissingField MissingFieldPolicy
}

// Service enriches record batches and uploads them.
type Service struct {
	embed    Embedder
	uploader DocumentUploader
	keyField string
	fields   []record.FieldMapping
	dims     map[string]int
	workers  int
	missing  MissingFieldPolicy
	logger   *zap.Logger
}

// New validates cfg against its schema and creates a Service.
// Every mapped vector field must be a vector field of the schema.
func New(embed Embedder, uploader DocumentUploader, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.Schema == nil {
		return nil, fmt.Errorf("enrichment requires an index schema: %w", domain.ErrInvalidInput)
	}
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("enrichment requires at least one field mapping: %w", domain.ErrInvalidInput)
	}

	dims := make(map[string]int, len(cfg.Fields))
	for _, m := range cfg.Fields {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		f, ok := cfg.Schema.FieldByName(m.Vector)
		if !ok || !f.IsVector() {
			return nil, fmt.Errorf("vector field %q is not declared in index %q: %w",
				m.Vector, cfg.Schema.Name, domain.ErrInvalidInput)
		}
		if _, dup := dims[m.Vector]; dup {
			return nil, fmt.Errorf("vector field %q is mapped twice: %w", m.Vector, domain.ErrInvalidInput)
		}
		dims[m.Vector] = f.Dimensions
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	missing := cfg.MissingField
	if missing == "" {
		missing = MissingFail
	}
	if !missing.IsValid() {
		return nil, fmt.Errorf("unknown missing-field policy %q: %w", missing, domain.ErrInvalidInput)
	}

	return &Service{
		embed:    embed,
		uploader: uploader,
		keyField: cfg.Schema.KeyField(),
		fields:   cfg.Fields,
		dims:     dims,
		workers:  workers,
		missing:  missing,
		logger:   logger,
	}, nil
}

// Enrich returns a copy of every record with one vector per field mapping, in input order.
// Records may lack a key; duplicate keys are rejected before any embedding call.
// The first failure cancels outstanding work and the whole batch is discarded.
func (s *Service) Enrich(ctx context.Context, records []record.Record, progress ProgressFunc) ([]record.Record, error) {
	keys, err := record.Labels(records, s.keyField)
	if err != nil {
		return nil, fmt.Errorf("validate keys: %w", err)
	}
	if len(records) == 0 {
		return []record.Record{}, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]record.Record, len(records))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i := range records {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			enriched, err := s.enrichOne(ctx, keys[i], records[i])
			if err != nil {
				metrics.EnrichRecordsTotal.WithLabelValues("error").Inc()
				fail(fmt.Errorf("record %q: %w", keys[i], err))
				return
			}
			out[i] = enriched
			metrics.EnrichRecordsTotal.WithLabelValues("ok").Inc()

			mu.Lock()
			done++
			n := done
			if progress != nil {
				progress(n, len(records))
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit record %q: %w", keys[i], submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		s.logger.Error("Enrichment aborted",
			zap.Int("records", len(records)),
			zap.Int("completed", done),
			zap.Error(firstErr),
		)
		return nil, firstErr
	}
	// Parent context cancelled without any task failing.
	if err := ctx.Err(); err != nil && done < len(records) {
		return nil, fmt.Errorf("enrichment interrupted: %w", err)
	}

	s.logger.Info("Enrichment completed",
		zap.Int("records", len(records)),
		zap.Int("vector_fields", len(s.fields)),
	)
	return out, nil
}

func (s *Service) enrichOne(ctx context.Context, key string, rec record.Record) (record.Record, error) {
	out := rec.Clone()
	for _, m := range s.fields {
		text, ok := rec.Text(m.Source)
		if !ok || strings.TrimSpace(text) == "" {
			if s.missing == MissingNull {
				out[m.Vector] = nil
				continue
			}
			return nil, fmt.Errorf("record %q has no text in field %q: %w", key, m.Source, domain.ErrInvalidInput)
		}

		res, err := s.embed.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed field %q: %w", m.Source, err)
		}
		if want := s.dims[m.Vector]; want > 0 && len(res.Embedding) != want {
			return nil, fmt.Errorf("field %q: got %d dimensions, want %d: %w",
				m.Vector, len(res.Embedding), want, domain.ErrVectorDimMismatch)
		}
		out[m.Vector] = res.Embedding
	}
	return out, nil
}

// Upload bulk-uploads records into index. Every record must carry a unique key.
// Rejected documents surface as *domain.UploadError (unwrapping to domain.ErrUpload).
func (s *Service) Upload(ctx context.Context, index string, records []record.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if _, err := record.Keys(records, s.keyField); err != nil {
		return 0, fmt.Errorf("validate keys: %w", err)
	}

	results, err := s.uploader.UploadDocuments(ctx, index, records)
	if err != nil {
		metrics.UploadDocumentsTotal.WithLabelValues("error").Add(float64(len(records)))
		if errors.Is(err, domain.ErrUpload) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}

	ok := batch.Succeeded(results)
	metrics.UploadDocumentsTotal.WithLabelValues("ok").Add(float64(ok))

	if keys, msgs := batch.Failed(results); len(keys) > 0 {
		metrics.UploadDocumentsTotal.WithLabelValues("error").Add(float64(len(keys)))
		s.logger.Error("Documents rejected by index",
			zap.String("index", index),
			zap.Strings("keys", keys),
		)
		return ok, &domain.UploadError{FailedKeys: keys, Messages: msgs}
	}

	s.logger.Info("Documents uploaded", zap.String("index", index), zap.Int("count", ok))
	return ok, nil
}
