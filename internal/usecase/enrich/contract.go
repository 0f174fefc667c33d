package enrich

import (
	"context"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/batch"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
)

// Embedder vectorizes source text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DocumentUploader bulk-uploads enriched records into the index, replacing documents by key.
type DocumentUploader interface {
	UploadDocuments(ctx context.Context, index string, docs []record.Record) ([]batch.Result, error)
}

// ProgressFunc is called once per finished record with the running count.
type ProgressFunc func(done, total int)
