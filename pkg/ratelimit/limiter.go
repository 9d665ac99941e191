package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the configured rate and a full burst
	Reset()
}

// Slower is implemented by limiters that back off when the API signals
// rate limiting
type Slower interface {
	Slow()
}

// Gate is a token bucket that halves its rate each time the API answers
// with 429, down to an eighth of the configured rate
type Gate struct {
	mu    sync.Mutex
	lim   *rate.Limiter
	base  rate.Limit
	min   rate.Limit
	burst int
}

// NewGate creates a gate refilling at limit tokens per second with room
// for burst requests at once
func NewGate(limit rate.Limit, burst int) *Gate {
	if burst < 1 {
		burst = 1
	}
	return &Gate{
		lim:   rate.NewLimiter(limit, burst),
		base:  limit,
		min:   limit / 8,
		burst: burst,
	}
}

// PerMinute creates a gate for the configured requests-per-minute budget
func PerMinute(requests int) *Gate {
	if requests < 1 {
		requests = 1
	}
	return NewGate(rate.Every(time.Minute/time.Duration(requests)), requests)
}

func (g *Gate) limiter() *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lim
}

func (g *Gate) Allow() bool {
	return g.limiter().Allow()
}

func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter().Wait(ctx)
}

// Limit returns the current refill rate
func (g *Gate) Limit() rate.Limit {
	return g.limiter().Limit()
}

// Slow halves the refill rate
func (g *Gate) Slow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.lim.Limit() / 2
	if n < g.min {
		n = g.min
	}
	g.lim.SetLimit(n)
}

func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lim = rate.NewLimiter(g.base, g.burst)
}
