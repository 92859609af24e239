package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/metrics"
	"github.com/kailas-cloud/chatdex/internal/usecase/prompt"
)

// RetryGenerator retries transient completion failures with linear backoff.
// Context cancellation and non-transient errors stop retries immediately.
type RetryGenerator struct {
	inner      Generator
	model      string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRetryGenerator wraps a generator with bounded retries.
func NewRetryGenerator(
	inner Generator, model string,
	maxRetries int, backoff time.Duration, logger *zap.Logger,
) *RetryGenerator {
	return &RetryGenerator{
		inner:      inner,
		model:      model,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Generate delegates to the inner generator, retrying transient failures.
func (r *RetryGenerator) Generate(ctx context.Context, messages []prompt.Message) (domain.GenerationResult, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.GenerationRetriesTotal.WithLabelValues(r.model).Inc()
			r.logger.Warn("Retrying chat completion",
				zap.String("model", r.model),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)

			select {
			case <-ctx.Done():
				return domain.GenerationResult{}, fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * r.backoff):
			}
		}

		result, err := r.inner.Generate(ctx, messages)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isTransient(ctx, err) {
			return domain.GenerationResult{}, err
		}
	}

	return domain.GenerationResult{}, fmt.Errorf("retries exhausted: %w", lastErr)
}

// isTransient reports whether the error is worth retrying. Cancelled contexts
// never are; everything mapped to ErrGeneration (timeouts, 5xx, rate limits) is.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, domain.ErrGeneration)
}
