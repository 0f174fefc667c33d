package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for one HTTP request or one setup run.
// The caller puts a mutable pointer into the context before calling a service;
// embedders write into it, the caller reads it afterwards.
// Safe for concurrent use: the enrichment pool writes from several workers.
type EmbeddingUsage struct {
	mu          sync.Mutex
	totalTokens int
	calls       int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records one embedding call and the tokens it consumed (0 on a cache hit).
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += n
	u.calls++
	u.mu.Unlock()
}

// TotalTokens returns the tokens consumed so far.
func (u *EmbeddingUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}

// Calls returns how many embeddings were produced, cache hits included.
func (u *EmbeddingUsage) Calls() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// Used reports whether any embedding was produced.
func (u *EmbeddingUsage) Used() bool { return u.Calls() > 0 }
