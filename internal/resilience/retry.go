package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first one.
	// 1 means no retries.
	Attempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// Factor scales the delay after each attempt.
	Factor float64

	// Jitter adds random noise as a fraction of the computed delay.
	Jitter float64

	// Classify overrides the default Retryable check when set.
	Classify func(err error) bool

	// OnAttempt is called before each retry sleep.
	OnAttempt func(attempt int, err error)
}

// DefaultPolicy returns the retry policy used for fetch source calls.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  20 * time.Second,
		Factor:    2.0,
		Jitter:    0.25,
	}
}

// Retry runs fn until it succeeds, exhausts the policy's attempts, or hits
// a non-retryable error. Context cancellation stops retries immediately.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = withDefaults(p)

	classify := p.Classify
	if classify == nil {
		classify = Retryable
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !classify(lastErr) {
			return zero, lastErr
		}
		if attempt >= p.Attempts-1 {
			break
		}

		if p.OnAttempt != nil {
			p.OnAttempt(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func withDefaults(p Policy) Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 20 * time.Second
	}
	if p.Factor <= 0 {
		p.Factor = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

func backoff(attempt int, p Policy) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// LogAttempts returns an OnAttempt callback that logs each retry.
func LogAttempts(source string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying fetch",
			zap.String("source", source),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
