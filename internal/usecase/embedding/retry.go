package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/metrics"
)

// RetryEmbedder retries transient provider failures with linear backoff.
// Context cancellation and non-transient errors stop retries immediately.
type RetryEmbedder struct {
	inner      domain.Embedder
	model      string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRetryEmbedder wraps an embedder with bounded retries.
func NewRetryEmbedder(
	inner domain.Embedder, model string,
	maxRetries int, backoff time.Duration, logger *zap.Logger,
) *RetryEmbedder {
	return &RetryEmbedder{
		inner:      inner,
		model:      model,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Embed delegates to the inner embedder, retrying transient failures.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var result domain.EmbeddingResult
	err := r.retry(ctx, func() error {
		var innerErr error
		result, innerErr = r.inner.Embed(ctx, text)
		return innerErr
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

// BatchEmbed delegates the whole batch, retrying transient failures.
func (r *RetryEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var result domain.BatchEmbeddingResult
	err := r.retry(ctx, func() error {
		var innerErr error
		result, innerErr = r.batchInner(ctx, texts)
		return innerErr
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return result, nil
}

func (r *RetryEmbedder) batchInner(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := r.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, r.inner, texts)
}

func (r *RetryEmbedder) retry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.EmbeddingRetriesTotal.WithLabelValues(r.model).Inc()
			r.logger.Warn("Retrying embedding request",
				zap.String("model", r.model),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * r.backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(ctx, lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("retries exhausted: %w", lastErr)
}

// isTransient reports whether the error is worth retrying. Cancelled contexts
// never are; everything mapped to ErrEmbedding (timeouts, 5xx, rate limits) is.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, domain.ErrEmbedding)
}
