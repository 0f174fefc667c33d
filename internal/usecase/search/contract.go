package search

import (
	"context"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

// Backend defines the index contract for query execution.
type Backend interface {
	Search(ctx context.Context, q *db.Query) (*result.Set, error)
}

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
