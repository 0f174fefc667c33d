package vecbot

import (
	"context"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
)

// Embedder vectorizes text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult is one embedding with its token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Mode selects the query shape.
type Mode string

// Query modes.
const (
	ModePureVector       = Mode(mode.PureVector)
	ModeCrossFieldVector = Mode(mode.CrossFieldVector)
	ModeFilteredVector   = Mode(mode.FilteredVector)
	ModeHybrid           = Mode(mode.Hybrid)
	ModeSemanticHybrid   = Mode(mode.SemanticHybrid)
)

// Result is a single hit.
type Result struct {
	Document      map[string]any
	Score         float64
	RerankerScore *float64
	Captions      []string
}

// Text returns a document field as a string, or "" when absent or not a string.
func (r Result) Text(field string) string {
	s, _ := r.Document[field].(string)
	return s
}

// Answer is an extractive answer from semantic reranking.
type Answer struct {
	Key   string
	Text  string
	Score float64
}

// Response is the outcome of one query.
type Response struct {
	Results         []Result
	Answers         []Answer
	EmbeddingTokens int
}

// Errors returned by the client. Test with errors.Is.
var (
	ErrInvalidInput         = domain.ErrInvalidInput
	ErrEmbeddingService     = domain.ErrEmbeddingService
	ErrQuery                = domain.ErrQuery
	ErrIndexNotFound        = domain.ErrIndexNotFound
	ErrSemanticNotSupported = domain.ErrSemanticNotSupported
)

func fromResultSet(set *result.Set, tokens int) *Response {
	resp := &Response{
		Results:         make([]Result, 0, len(set.Results)),
		EmbeddingTokens: tokens,
	}
	for _, r := range set.Results {
		hit := Result{Document: r.Document, Score: r.Score, RerankerScore: r.RerankerScore}
		for _, c := range r.Captions {
			hit.Captions = append(hit.Captions, c.Text)
		}
		resp.Results = append(resp.Results, hit)
	}
	for _, a := range set.Answers {
		resp.Answers = append(resp.Answers, Answer{Key: a.Key, Text: a.Text, Score: a.Score})
	}
	return resp
}
