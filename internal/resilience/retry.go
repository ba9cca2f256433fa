// Package resilience retries transient failures and sheds calls to a
// failing dependency.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig describes how often and how patiently an operation is retried.
// Zero fields take the values from DefaultRetryConfig.
type RetryConfig struct {
	MaxAttempts    int           // total tries, the first included
	InitialBackoff time.Duration // wait before the second try
	MaxBackoff     time.Duration // ceiling for any single wait
	Multiplier     float64       // growth of the wait per try
	JitterFraction float64       // each wait moves by up to this share either way

	// ShouldRetry replaces IsTransient as the retry predicate.
	ShouldRetry func(err error) bool

	// OnRetry observes a failed try just before the wait that follows it.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig is tuned for a save file that the game may still be
// flushing when the watcher first reads it.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.2,
	}
}

// Do calls fn until it succeeds. It gives up on the first error the retry
// predicate rejects, after MaxAttempts tries, or once ctx ends, and then
// returns the most recent error.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for a function with a result. The zero value accompanies any
// returned error.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		switch {
		case err == nil:
			return val, nil
		case attempt >= cfg.MaxAttempts, ctx.Err() != nil, !retryable(err):
			var zero T
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if !sleep(ctx, backoff(attempt-1, cfg)) {
			var zero T
			return zero, err
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	cfg.JitterFraction = max(cfg.JitterFraction, 0)
	return cfg
}

// backoff is the wait after the given zero-based retry.
func backoff(retry int, cfg RetryConfig) time.Duration {
	wait := float64(cfg.InitialBackoff)
	ceiling := float64(cfg.MaxBackoff)
	for i := 0; i < retry && wait < ceiling; i++ {
		wait *= cfg.Multiplier
	}
	wait = min(wait, ceiling)
	if cfg.JitterFraction > 0 {
		wait *= 1 + cfg.JitterFraction*(2*rand.Float64()-1)
	}
	return time.Duration(max(wait, 0))
}

// RetryLogger logs every retried failure of operation against target.
func RetryLogger(operation, target string) func(int, error) {
	log := zap.L().With(zap.String("operation", operation), zap.String("target", target))
	return func(attempt int, err error) {
		log.Warn("resilience: retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
}
