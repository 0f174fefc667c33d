package domain

import (
	"context"
	"fmt"
	"strings"
)

// DefaultDimensions is the output size of text-embedding-ada-002.
const DefaultDimensions = 1536

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// ValidateEmbeddingInput rejects text that would be sent to the provider as an empty input.
func ValidateEmbeddingInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("embedding input is empty: %w", ErrInvalidInput)
	}
	return nil
}
