package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/logger"
)

// EmbeddingClient wraps an EmbeddingProvider with sub-batching, rate limiting
// and retry. It is safe for concurrent use.
type EmbeddingClient struct {
	provider driven.EmbeddingProvider
	limiter  *RateLimiter
	cfg      domain.RateLimitSettings
	metrics  driven.Metrics

	// dimension is fixed by the provider or by the first vector returned.
	mu        sync.Mutex
	dimension int
}

// NewEmbeddingClient creates a client for the provider.
// Metrics may be nil.
func NewEmbeddingClient(
	provider driven.EmbeddingProvider,
	cfg domain.RateLimitSettings,
	metrics driven.Metrics,
) (*EmbeddingClient, error) {
	if provider == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider.MaxBatchSize() <= 0 {
		return nil, fmt.Errorf("%w: provider %s reports no batch ceiling", domain.ErrInvalidConfig, provider.ModelName())
	}
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}

	return &EmbeddingClient{
		provider:  provider,
		limiter:   NewRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
		cfg:       cfg,
		metrics:   metrics,
		dimension: provider.Dimensions(),
	}, nil
}

// MaxBatchSize returns the provider's batch ceiling.
func (c *EmbeddingClient) MaxBatchSize() int {
	return c.provider.MaxBatchSize()
}

// ModelName returns the provider's model name.
func (c *EmbeddingClient) ModelName() string {
	return c.provider.ModelName()
}

// Dimensions returns the vector size, or 0 before the first call when the
// provider does not know it.
func (c *EmbeddingClient) Dimensions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed embeds a single text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text, in input order.
//
// Texts are sent in sub-batches no larger than the provider's ceiling. When a
// sub-batch exhausts its retries, EmbedBatch returns the vectors produced so
// far together with an *domain.EmbeddingProviderError whose FailedIndex is the
// first text without a vector.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ceiling := c.provider.MaxBatchSize()
	out := make([][]float32, 0, len(texts))

	for offset := 0; offset < len(texts); offset += ceiling {
		end := offset + ceiling
		if end > len(texts) {
			end = len(texts)
		}

		vecs, attempts, err := c.embedWithRetry(ctx, texts[offset:end], task)
		if err != nil {
			return out, &domain.EmbeddingProviderError{
				FailedIndex: offset,
				Attempts:    attempts,
				Err:         err,
			}
		}

		for i, v := range vecs {
			if err := c.checkDimension(v); err != nil {
				var dimErr *domain.DimensionMismatchError
				if errors.As(err, &dimErr) {
					dimErr.ID = fmt.Sprintf("input[%d]", offset+i)
				}
				return out, err
			}
			out = append(out, v)
		}
	}

	return out, nil
}

// embedWithRetry sends one sub-batch, retrying transient failures with
// exponential backoff.
func (c *EmbeddingClient) embedWithRetry(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	// #nosec G115 -- MaxAttempts is validated positive
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx)

	var (
		result   [][]float32
		attempts int
	)

	operation := func() error {
		attempts++

		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		vecs, err := c.provider.Embed(callCtx, texts, task)
		c.metrics.EmbedCall(time.Since(start), len(texts), err)

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			var perr *domain.ProviderError
			if errors.As(err, &perr) && perr.RetryAfter > 0 {
				c.limiter.RecordRateLimitError(perr.RetryAfter)
			}
			return err
		}

		if len(vecs) != len(texts) {
			return backoff.Permanent(fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(texts)))
		}

		result = vecs
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.EmbedRetry()
		logger.Info("embedding attempt %d failed, retrying in %s: %v", attempts, wait, err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, attempts, err
	}
	return result, attempts, nil
}

func (c *EmbeddingClient) checkDimension(v []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dimension == 0 {
		c.dimension = len(v)
		return nil
	}
	if len(v) != c.dimension {
		return &domain.DimensionMismatchError{Expected: c.dimension, Actual: len(v)}
	}
	return nil
}

// isTransient reports whether an error is worth retrying: rate limits,
// per-call timeouts, temporary provider and network errors.
func isTransient(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
