package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
)

// InstrumentedEmbedder wraps Embedder with logging and per-request usage accounting.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	deployment string
	logger     *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, deployment string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:      inner,
		deployment: deployment,
		logger:     logger,
	}
}

// Embed delegates to the inner embedder and records usage in the context collector.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("deployment", p.deployment),
			zap.Duration("duration", duration),
			zap.Int("text_len", len(text)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("deployment", p.deployment),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
