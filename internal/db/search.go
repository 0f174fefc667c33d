package db

import "github.com/kailas-cloud/vecbot/internal/domain/search/filter"

// Query is a backend-neutral search request.
// Text is empty for vector-only queries; Vector is nil for text-only queries.
type Query struct {
	Index     string
	Text      string
	Vector    *VectorQuery
	Filter    filter.Expression
	RawFilter string
	Select    []string
	Top       int
	Semantic  *SemanticOptions
}

// VectorQuery searches Fields with one query vector, K nearest neighbors per field.
type VectorQuery struct {
	Vector []float32
	Fields []string
	K      int
}

// SemanticOptions enables semantic reranking with extractive captions and answers.
type SemanticOptions struct {
	Configuration string
	Language      string
}
