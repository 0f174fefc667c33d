package db

import (
	"context"

	"github.com/kailas-cloud/vecbot/internal/domain/batch"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

// Backend is the search service facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces they use.
type Backend interface {
	Pinger
	IndexManager
	DocumentWriter
	Searcher
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	// CreateOrUpdateIndex creates the index or replaces its definition.
	CreateOrUpdateIndex(ctx context.Context, idx *schema.Index) error
	// GetIndex returns the stored definition or ErrIndexNotFound.
	GetIndex(ctx context.Context, name string) (*schema.Index, error)
}

// DocumentWriter bulk-upserts documents.
type DocumentWriter interface {
	// UploadDocuments merges or uploads every document and reports one result per document,
	// in input order, keyed by the document key.
	UploadDocuments(ctx context.Context, index string, docs []record.Record) ([]batch.Result, error)
}

// Searcher executes queries.
type Searcher interface {
	Search(ctx context.Context, q *Query) (*result.Set, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
