// Package provision creates or updates the search index from a declared schema.
package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
)

// Service handles index provisioning.
type Service struct {
	indexes IndexManager
	logger  *zap.Logger
}

// New creates a provisioning service.
func New(indexes IndexManager, logger *zap.Logger) *Service {
	return &Service{indexes: indexes, logger: logger}
}

// Provision validates idx and issues create-or-update. Repeating it with the same schema
// leaves the stored schema unchanged.
// Fields present remotely but absent from idx are logged as a warning; the update still proceeds.
func (s *Service) Provision(ctx context.Context, idx *schema.Index) error {
	if idx == nil {
		return fmt.Errorf("%w: schema is required: %w", domain.ErrProvision, domain.ErrInvalidInput)
	}
	if err := idx.Validate(); err != nil {
		return fmt.Errorf("%w: validate schema: %w: %w", domain.ErrProvision, domain.ErrInvalidInput, err)
	}

	current, err := s.indexes.GetIndex(ctx, idx.Name)
	switch {
	case err == nil:
		if removed := schema.RemovedFields(current, idx); len(removed) > 0 {
			s.logger.Warn("Index update drops existing fields",
				zap.String("index", idx.Name),
				zap.Strings("fields", removed),
			)
		}
	case errors.Is(err, db.ErrIndexNotFound):
		s.logger.Info("Creating index", zap.String("index", idx.Name))
	default:
		// Drift detection is best effort; the write below reports the real failure.
		s.logger.Warn("Could not read current index", zap.String("index", idx.Name), zap.Error(err))
	}

	if err := s.indexes.CreateOrUpdateIndex(ctx, idx); err != nil {
		return fmt.Errorf("%w: create or update %s: %w", domain.ErrProvision, idx.Name, err)
	}

	s.logger.Info("Index provisioned",
		zap.String("index", idx.Name),
		zap.Int("fields", len(idx.Fields)),
		zap.Int("vector_fields", len(idx.VectorFields())),
	)
	return nil
}

// Describe returns the stored schema of the named index.
func (s *Service) Describe(ctx context.Context, name string) (*schema.Index, error) {
	idx, err := s.indexes.GetIndex(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("describe %s: %w", name, domain.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("describe %s: %w", name, err)
	}
	return idx, nil
}
