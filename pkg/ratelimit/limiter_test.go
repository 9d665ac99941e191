package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestPerMinuteBurst(t *testing.T) {
	g := PerMinute(3)

	for i := 0; i < 3; i++ {
		assert.True(t, g.Allow(), "request %d", i+1)
	}
	assert.False(t, g.Allow())
	assert.InDelta(t, 0.05, float64(g.Limit()), 1e-9)

	g.Reset()
	assert.True(t, g.Allow())
}

func TestGateWait(t *testing.T) {
	g := NewGate(rate.Every(20*time.Millisecond), 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestGateWaitCancelled(t *testing.T) {
	g := NewGate(rate.Every(time.Hour), 1)
	require.True(t, g.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, g.Wait(ctx))
}

func TestPerMinuteClampsToOne(t *testing.T) {
	g := PerMinute(0)
	assert.True(t, g.Allow())
	assert.False(t, g.Allow())
}

func TestGateSlow(t *testing.T) {
	g := PerMinute(60)
	require.InDelta(t, 1.0, float64(g.Limit()), 1e-9)

	g.Slow()
	assert.InDelta(t, 0.5, float64(g.Limit()), 1e-9)

	for i := 0; i < 10; i++ {
		g.Slow()
	}
	assert.InDelta(t, 0.125, float64(g.Limit()), 1e-9)

	g.Reset()
	assert.InDelta(t, 1.0, float64(g.Limit()), 1e-9)
}

var _ Slower = (*Gate)(nil)

func TestThrottle(t *testing.T) {
	var slept []time.Duration
	th := NewThrottle(100, time.Second)
	th.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	for i := 0; i < 250; i++ {
		require.NoError(t, th.Tick(context.Background()))
	}

	assert.Equal(t, 2, th.Pauses())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
}

func TestThrottleExactBatchDoesNotPause(t *testing.T) {
	th := NewThrottle(100, time.Second)
	th.Sleep = func(context.Context, time.Duration) error { return nil }
	for i := 0; i < 100; i++ {
		require.NoError(t, th.Tick(context.Background()))
	}
	assert.Zero(t, th.Pauses())
	require.NoError(t, th.Tick(context.Background()))
	assert.Equal(t, 1, th.Pauses())
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(0, time.Second)
	th.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("disabled throttle must not sleep")
		return nil
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, th.Tick(context.Background()))
	}
	assert.Zero(t, th.Pauses())
}

func TestThrottleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	th := NewThrottle(1, time.Hour)
	require.NoError(t, th.Tick(ctx))
	assert.ErrorIs(t, th.Tick(ctx), context.Canceled)
}
