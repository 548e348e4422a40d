// Package resilience retries idempotent record-store reads and trips a
// breaker when the backend keeps failing. Writes are never retried.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how many times a read is attempted and how long to
// wait between attempts.
type RetryConfig struct {
	// Attempts is the total number of tries. Values below 1 mean a single
	// try with no retry.
	Attempts int

	// Backoff is the delay before the first retry; it doubles per retry up
	// to MaxBackoff. Default: 50ms.
	Backoff time.Duration

	// MaxBackoff caps the delay. Default: 1s.
	MaxBackoff time.Duration

	// Jitter randomizes each delay by ±Jitter of its value (0-1).
	Jitter float64

	// Retryable overrides IsTransient.
	Retryable func(err error) bool

	// OnRetry runs before each wait with the 1-based attempt that failed.
	OnRetry func(attempt int, err error)
}

// NoRetry performs exactly one attempt.
func NoRetry() RetryConfig {
	return RetryConfig{Attempts: 1}
}

// Do runs fn until it succeeds, returns a non-retryable error, the context
// ends, or the attempts are spent.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	var zero T

	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= cfg.Attempts || ctx.Err() != nil || !cfg.Retryable(err) {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.Backoff <= 0 {
		c.Backoff = 50 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Second
	}
	c.Jitter = math.Max(0, math.Min(c.Jitter, 1))
	if c.Retryable == nil {
		c.Retryable = IsTransient
	}
	return c
}

// delay is the wait after the given failed attempt (1-based).
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.Backoff) * math.Pow(2, float64(attempt-1))
	d = math.Min(d, float64(c.MaxBackoff))
	if c.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * c.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// RetryLogger returns an OnRetry callback that logs the failed read.
func RetryLogger(table string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying store read",
			zap.String("table", table),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
