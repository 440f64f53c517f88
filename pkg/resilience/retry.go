package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig shapes the exponential backoff. Zero fields take defaults.
// Retryable, when set, ends the loop early for errors a later attempt
// cannot fix.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Retryable      func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	return c
}

// backoff returns the wait after the given failed attempt (1-based),
// jittered and capped at MaxDelay.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	d += d * c.JitterFraction * (2*rand.Float64() - 1)
	switch {
	case d > float64(c.MaxDelay):
		d = float64(c.MaxDelay)
	case d < 0:
		d = float64(c.InitialDelay)
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, attempts run out, Retryable rejects the
// error or ctx ends. The last error is wrapped in the result.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return fmt.Errorf("%s failed permanently on attempt %d: %w", name, attempt, err)
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay := cfg.backoff(attempt)
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", err, "next_delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
}
