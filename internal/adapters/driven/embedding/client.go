// Package embedding provides the batching embedding client. It wraps any
// driven.EmbeddingProvider and hides batch partitioning, bounded worker
// concurrency, retry with exponential backoff and optional request
// throttling behind a single Embed call.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
)

// Default configuration values.
const (
	DefaultMaxBatchSize = 64
	DefaultMaxWorkers   = 4
	DefaultMaxRetries   = 3
	DefaultBackoffBase  = 500 * time.Millisecond
)

// Config holds configuration for the batching client.
type Config struct {
	// MaxBatchSize is the maximum number of texts per provider call.
	MaxBatchSize int

	// MaxWorkers caps the number of batches dispatched concurrently.
	MaxWorkers int

	// MaxRetries is the number of attempts per batch before the whole
	// call fails.
	MaxRetries int

	// BackoffBase is the unit for exponential backoff between attempts:
	// the wait before attempt n is BackoffBase * 2^(n-1).
	BackoffBase time.Duration

	// RequestsPerSecond throttles provider calls when positive.
	RequestsPerSecond float64
}

// Client embeds texts through a provider with scatter/gather batch
// dispatch. Vectors are returned index-aligned with the input regardless
// of batch completion order; the call fails as a whole if any batch
// exhausts its retries, so callers never see a partial result.
type Client struct {
	provider     driven.EmbeddingProvider
	maxBatchSize int
	maxWorkers   int
	maxRetries   int
	backoffBase  time.Duration
	limiter      *rate.Limiter
	log          *logrus.Entry
}

// NewClient creates a batching client around provider.
func NewClient(provider driven.EmbeddingProvider, cfg Config, log *logrus.Logger) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required: %w", domain.ErrInvalidConfig)
	}
	if cfg.MaxBatchSize < 0 || cfg.MaxWorkers < 0 || cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("batch size, workers and retries must be non-negative: %w", domain.ErrInvalidConfig)
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		provider:     provider,
		maxBatchSize: cfg.MaxBatchSize,
		maxWorkers:   cfg.MaxWorkers,
		maxRetries:   cfg.MaxRetries,
		backoffBase:  cfg.BackoffBase,
		limiter:      limiter,
		log:          log.WithField("component", "embedding"),
	}, nil
}

// Dimensions returns the provider's embedding vector size.
func (c *Client) Dimensions() int {
	return c.provider.Dimensions()
}

// Embed generates one vector per input text, index-aligned with the
// input. Inputs longer than MaxBatchSize are partitioned into consecutive
// batches dispatched by a bounded worker pool; each batch writes its
// vectors into its pre-assigned slot of the result.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	if len(texts) <= c.maxBatchSize {
		batch, err := c.embedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		copy(vectors, batch)
		return vectors, c.checkAlignment(texts, vectors)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)

	for start := 0; start < len(texts); start += c.maxBatchSize {
		end := start + c.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		g.Go(func() error {
			batch, err := c.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch [%d:%d]: %w", start, end, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, c.checkAlignment(texts, vectors)
}

// embedBatch calls the provider for one batch, retrying transient
// failures up to maxRetries attempts with exponential backoff. Permanent
// provider errors abort immediately.
func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffBase << (attempt - 1)
			c.log.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"wait":    wait,
			}).Warn("retrying embedding batch")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vectors, err := c.provider.EmbedBatch(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		if errors.Is(err, domain.ErrProviderPermanent) {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embed batch failed after %d attempts: %w", c.maxRetries, lastErr)
}

// checkAlignment enforces the uniform-dimension invariant: every output
// vector must be present and match the provider's dimension.
func (c *Client) checkAlignment(texts []string, vectors [][]float32) error {
	want := c.provider.Dimensions()
	for i, v := range vectors {
		if v == nil {
			return fmt.Errorf("provider returned no vector for text %d of %d", i, len(texts))
		}
		if want > 0 && len(v) != want {
			return fmt.Errorf("vector %d has dimension %d, provider reports %d", i, len(v), want)
		}
	}
	return nil
}
