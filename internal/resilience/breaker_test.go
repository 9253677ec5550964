package resilience

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(err error) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) { return 0, err }
}

func succeeding(v int) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) { return v, nil }
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	ctx := context.Background()
	boom := eris.New("source down")

	for i := 0; i < 3; i++ {
		_, err := Call(ctx, b, failing(boom))
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, b.State())

	_, err := Call(ctx, b, succeeding(1))
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = Call(ctx, b, failing(eris.New("flake")))
	}
	_, err := Call(ctx, b, succeeding(1))
	require.NoError(t, err)

	// The failure streak restarted, so two more failures stay closed.
	for i := 0; i < 2; i++ {
		_, _ = Call(ctx, b, failing(eris.New("flake")))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	ctx := context.Background()
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	_, _ = Call(ctx, b, failing(eris.New("down")))
	assert.Equal(t, StateOpen, b.State())

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, b.State())

	// A successful probe closes the breaker.
	v, err := Call(ctx, b, succeeding(7))
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	ctx := context.Background()
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	_, _ = Call(ctx, b, failing(eris.New("down")))
	clock = clock.Add(2 * time.Minute)

	_, _ = Call(ctx, b, failing(eris.New("still down")))
	assert.Equal(t, StateOpen, b.State())

	// The fresh failure restarted the cooldown.
	_, err := Call(ctx, b, succeeding(1))
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(1, time.Hour)
	_, _ = Call(context.Background(), b, failing(eris.New("down")))
	assert.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())

	v, err := Call(context.Background(), b, succeeding(3))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(MarkRetryable(eris.New("503"), 503)))
	assert.True(t, Retryable(eris.Wrap(syscall.ECONNREFUSED, "dial")))
	assert.True(t, Retryable(eris.New("read tcp: i/o timeout")))
	assert.False(t, Retryable(eris.New("invalid API key")))
	assert.False(t, Retryable(nil))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, RetryableStatus(code), "code %d", code)
	}
}
