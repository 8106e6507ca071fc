// Package retry re-runs operations that fail with errors marked retryable,
// such as a tool that could not be launched or was killed by a signal.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/vk/mrtpipelines/internal/ctxlog"
)

// Config controls how often and how patiently an operation is retried.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Multiplier grows the delay between consecutive attempts.
	Multiplier float64
	// JitterRatio spreads each delay by up to this fraction either way.
	JitterRatio float64
}

// DefaultConfig suits external tools that occasionally fail to launch on
// busy cluster nodes.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  2,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		JitterRatio: 0.1,
	}
}

// transientError marks a failure worth another attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt. It returns nil for nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsRetryable reports whether err, or an error it wraps, was marked with
// Retryable.
func IsRetryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Do calls fn until it succeeds, fails with an error not marked retryable,
// or runs out of attempts. A retryable error that exhausts the attempts is
// returned without its mark.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	logger := ctxlog.FromContext(ctx)
	attempts := cfg.MaxRetries + 1

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		var t *transientError
		if !errors.As(err, &t) {
			return result, err
		}
		if attempt >= attempts {
			return zero, t.err
		}

		wait := cfg.Backoff(attempt - 1)
		logger.Info("🔁 Retrying after transient failure", "attempt", attempt+1, "of", attempts, "wait", wait, "error", t.err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff is the wait before retry number n, counting from zero.
func (c Config) Backoff(n int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(n))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.JitterRatio > 0 {
		d += d * c.JitterRatio * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}
