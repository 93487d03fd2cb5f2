package genai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/promptdeck/engine/pkg/types"
)

// RateLimiterConfig bounds request rate and retry behavior for a Generator.
type RateLimiterConfig struct {
	RequestsPerMinute int
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// RateLimited wraps a Generator with token-bucket rate limiting and
// exponential-backoff retries on transient errors.
type RateLimited struct {
	inner   Generator
	limiter *rate.Limiter
	cfg     RateLimiterConfig
}

// NewRateLimited creates a rate-limited Generator wrapper.
func NewRateLimited(inner Generator, cfg RateLimiterConfig) (*RateLimited, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limiter: RequestsPerMinute must be positive")
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	limit := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		cfg:     cfg,
	}, nil
}

// do waits for a limiter token and runs fn, retrying with exponential
// backoff up to MaxRetries times. Context cancellation stops retrying.
func (r *RateLimited) do(ctx context.Context, fn func() error) error {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d retries: %w", r.cfg.MaxRetries, lastErr)
}

func (r *RateLimited) GenerateColumn(ctx context.Context, column string, project *types.Project) ([]string, error) {
	var out []string
	err := r.do(ctx, func() error {
		var e error
		out, e = r.inner.GenerateColumn(ctx, column, project)
		return e
	})
	return out, err
}

func (r *RateLimited) GenerateRows(ctx context.Context, project *types.Project, count int) ([]map[string]string, error) {
	var out []map[string]string
	err := r.do(ctx, func() error {
		var e error
		out, e = r.inner.GenerateRows(ctx, project, count)
		return e
	})
	return out, err
}

func (r *RateLimited) GenerateAssertions(ctx context.Context, project *types.Project) ([]types.Assertion, error) {
	var out []types.Assertion
	err := r.do(ctx, func() error {
		var e error
		out, e = r.inner.GenerateAssertions(ctx, project)
		return e
	})
	return out, err
}

func (r *RateLimited) AnalyzeResults(ctx context.Context, results []byte) (string, error) {
	var out string
	err := r.do(ctx, func() error {
		var e error
		out, e = r.inner.AnalyzeResults(ctx, results)
		return e
	})
	return out, err
}
