package extractor

import (
	"context"
	"sync"
	"time"
)

// RateGate enforces a process-wide minimum interval between agent calls.
// It is shared by every caller of the agentic strategy; a call arriving
// sooner than the interval blocks until it elapses. Modeled as an
// explicit struct rather than global state so tests can inject a clock.
type RateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateGate creates a gate with the given minimum interval.
func NewRateGate(interval time.Duration) *RateGate {
	return &RateGate{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// NextAllowed returns the earliest time the next call may start.
func (g *RateGate) NextAllowed() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last.IsZero() {
		return g.now()
	}
	return g.last.Add(g.interval)
}

// Record marks a call as having started now.
func (g *RateGate) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = g.now()
}

// Wait blocks until the interval since the last recorded call has
// elapsed, then records this call. Returns early only on context
// cancellation.
func (g *RateGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := g.now()
		var d time.Duration
		if !g.last.IsZero() {
			d = g.last.Add(g.interval).Sub(now)
		}
		if d <= 0 {
			g.last = now
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		if err := g.sleep(ctx, d); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
