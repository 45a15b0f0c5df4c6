// Package retry runs an operation again with exponential backoff while its error is retryable.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
)

type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one. Zero disables retries.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter spreads each delay by +/- the given fraction (0.0 - 1.0).
	Jitter float64
	// RetryIf defaults to stakingTypes.IsRetryable.
	RetryIf func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
}

// RetryWithValue calls fn until it succeeds, returns an error RetryIf rejects, exhausts
// MaxRetries, or ctx is done. The last error is returned unchanged so callers can still
// classify it.
func RetryWithValue[T any](ctx context.Context, cfg *RetryConfig, fn func(ctx context.Context) (T, error)) (T, *RetryResult) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = stakingTypes.IsRetryable
	}

	var zero T
	result := &RetryResult{}
	start := time.Now()

	for {
		result.Attempts++

		val, err := fn(ctx)
		if err == nil {
			result.LastError = nil
			result.Duration = time.Since(start)
			return val, result
		}
		result.LastError = err

		if !retryIf(err) || result.Attempts > cfg.MaxRetries {
			result.Duration = time.Since(start)
			return zero, result
		}

		delay := calculateDelay(cfg, result.Attempts)
		if cfg.OnRetry != nil {
			cfg.OnRetry(result.Attempts, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = fmt.Errorf("%w: retry interrupted after %d attempts: %v", stakingTypes.ErrRpcUnavailable, result.Attempts, ctx.Err())
			result.Duration = time.Since(start)
			return zero, result
		case <-timer.C:
		}
	}
}

// Retry is RetryWithValue for operations without a result.
func Retry(ctx context.Context, cfg *RetryConfig, fn func(ctx context.Context) error) *RetryResult {
	_, result := RetryWithValue(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return result
}

// calculateDelay is baseDelay * multiplier^(attempt-1), jittered and clamped to MaxDelay.
func calculateDelay(cfg *RetryConfig, attempt int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := float64(cfg.BaseDelay) * math.Pow(multiplier, float64(attempt-1))

	if cfg.Jitter > 0 {
		jitterRange := delay * cfg.Jitter
		delay = delay - jitterRange + (rand.Float64() * 2 * jitterRange)
	}
	if cfg.MaxDelay > 0 && time.Duration(delay) > cfg.MaxDelay {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
