package provision

import (
	"context"

	"github.com/kailas-cloud/vecbot/internal/domain/schema"
)

// IndexManager defines the backend contract for index lifecycle.
type IndexManager interface {
	CreateOrUpdateIndex(ctx context.Context, idx *schema.Index) error
	GetIndex(ctx context.Context, name string) (*schema.Index, error)
}
