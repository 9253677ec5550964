package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	// StateClosed is normal operation, calls flow through.
	StateClosed BreakerState = iota
	// StateOpen rejects calls immediately after repeated failures.
	StateOpen
	// StateHalfOpen lets a single probe through to test recovery.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected by an open breaker.
var ErrBreakerOpen = eris.New("resilience: circuit breaker open")

// Breaker is a per-source circuit breaker. After Threshold consecutive
// failures it rejects calls for Cooldown, then allows one probe.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	lastFail time.Time

	now func() time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Call runs fn through the breaker, returning ErrBreakerOpen when the
// breaker is rejecting calls.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the breaker's current state, accounting for cooldown expiry.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.lastFail) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFail) >= b.cooldown {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFail = b.now()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
	}
}
