package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = NewTransientError(errors.New("resend: unavailable"), 503)

func newTestBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{Name: "resend", FailureThreshold: threshold, Cooldown: time.Minute})
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(context.Context) error { return errUpstream }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, CircuitOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(2)
	rejected := errors.New("resend: status 422: invalid recipient")

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Execute(context.Background(), func(context.Context) error { return rejected }), rejected)
	}
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(1)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, CircuitOpen, b.State())

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, b.State())

	// A failed probe reopens.
	require.Error(t, b.Execute(ctx, fail))
	assert.Equal(t, CircuitOpen, b.State())

	*now = now.Add(2 * time.Minute)
	require.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, b.State())
}

func TestGuard_ReturnsValue(t *testing.T) {
	b, _ := newTestBreaker(3)
	id, err := Guard(context.Background(), b, func(context.Context) (string, error) {
		return "msg-1", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
