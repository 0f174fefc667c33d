package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/metrics"
)

// DefaultRetryBaseDelay is the wait before the second attempt; it doubles on each retry.
const DefaultRetryBaseDelay = 200 * time.Millisecond

// RetryingEmbedder repeats failed embedding calls with exponential backoff.
// Invalid input is returned at once: resending the same text cannot succeed.
type RetryingEmbedder struct {
	inner       domain.Embedder
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
	backoff     func() retry.Backoff
}

// NewRetryingEmbedder wraps inner. maxAttempts < 1 is treated as 1 (no retries).
func NewRetryingEmbedder(
	inner domain.Embedder, maxAttempts int, baseDelay time.Duration, logger *zap.Logger,
) *RetryingEmbedder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	r := &RetryingEmbedder{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
	r.backoff = r.exponential
	return r
}

func (r *RetryingEmbedder) exponential() retry.Backoff {
	return retry.WithMaxRetries(uint64(r.maxAttempts-1), retry.NewExponential(r.baseDelay))
}

// Embed calls the inner embedder up to maxAttempts times.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var (
		result  domain.EmbeddingResult
		attempt int
	)

	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		res, err := r.inner.Embed(ctx, text)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("Embedding succeeded after retry", zap.Int("attempt", attempt))
			}
			result = res
			return nil
		}
		if !retryable(err) || attempt >= r.maxAttempts {
			return err
		}

		r.logger.Warn("Embedding failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(err),
		)
		metrics.EmbeddingRetriesTotal.Inc()
		return retry.RetryableError(err)
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

func retryable(err error) bool {
	if errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var svcErr *domain.EmbeddingServiceError
	if errors.As(err, &svcErr) {
		// 4xx other than throttling is a caller problem (bad key, bad deployment).
		if svcErr.Status >= 400 && svcErr.Status < 500 && svcErr.Status != 429 && svcErr.Status != 408 {
			return false
		}
	}
	return true
}
