package setup

import (
	"context"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/usecase/enrich"
)

// Provisioner creates or updates the index.
type Provisioner interface {
	Provision(ctx context.Context, idx *schema.Index) error
}

// Enricher embeds and uploads record batches.
type Enricher interface {
	Enrich(ctx context.Context, records []record.Record, progress enrich.ProgressFunc) ([]record.Record, error)
	Upload(ctx context.Context, index string, records []record.Record) (int, error)
}

// Embedder vectorizes the sample query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Corpus reads source records and writes JSON output files.
type Corpus interface {
	Load(path string) ([]record.Record, error)
	Persist(path string, records []record.Record) error
	WriteJSON(path string, v any) error
}
