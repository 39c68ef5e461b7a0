package extractor

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a RateGate without real sleeping.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func newTestGate(interval time.Duration, clock *fakeClock) *RateGate {
	g := NewRateGate(interval)
	g.now = clock.Now
	g.sleep = clock.Sleep
	return g
}

func TestRateGateFirstCallImmediate(t *testing.T) {
	clock := newFakeClock()
	gate := newTestGate(7*time.Second, clock)

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if clock.sleeps != 0 {
		t.Errorf("first call slept %d times, want 0", clock.sleeps)
	}
}

func TestRateGateEnforcesInterval(t *testing.T) {
	clock := newFakeClock()
	gate := newTestGate(7*time.Second, clock)

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	first := clock.now

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait() error = %v", err)
	}
	if got := clock.now.Sub(first); got < 7*time.Second {
		t.Errorf("second call started %v after first, want >= 7s", got)
	}
}

func TestRateGateElapsedIntervalNeedsNoSleep(t *testing.T) {
	clock := newFakeClock()
	gate := newTestGate(7*time.Second, clock)

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	clock.now = clock.now.Add(10 * time.Second)
	sleepsBefore := clock.sleeps

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if clock.sleeps != sleepsBefore {
		t.Errorf("slept despite interval having elapsed")
	}
}

func TestRateGateCancelledContext(t *testing.T) {
	clock := newFakeClock()
	gate := newTestGate(7*time.Second, clock)

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gate.Wait(ctx); err == nil {
		t.Fatal("Wait() on cancelled context returned nil, want error")
	}
}

func TestRateGateNextAllowed(t *testing.T) {
	clock := newFakeClock()
	gate := newTestGate(7*time.Second, clock)

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	want := clock.now.Add(7 * time.Second)
	if got := gate.NextAllowed(); !got.Equal(want) {
		t.Errorf("NextAllowed() = %v, want %v", got, want)
	}
}
