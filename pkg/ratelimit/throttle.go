package ratelimit

import (
	"context"
	"time"
)

// Throttle pauses once every Every items. Tick is called before handling
// each item, so the pause falls between item Every and item Every+1 and a
// run of exactly Every items never pauses.
type Throttle struct {
	Every int
	Pause time.Duration
	// Sleep defaults to a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error

	count  int
	pauses int
}

// NewThrottle creates a throttle; every <= 0 disables it
func NewThrottle(every int, pause time.Duration) *Throttle {
	return &Throttle{Every: every, Pause: pause}
}

// Tick is called before each item and sleeps when a batch boundary is reached
func (t *Throttle) Tick(ctx context.Context) error {
	processed := t.count
	t.count++
	if t.Every <= 0 || processed == 0 || processed%t.Every != 0 {
		return nil
	}
	t.pauses++

	sleep := t.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return sleep(ctx, t.Pause)
}

// Pauses returns how many times the throttle has paused
func (t *Throttle) Pauses() int {
	return t.pauses
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
