// Package testkit provides shared test helpers used across the backtesting
// engine's packages: clocks, fixtures, golden-snapshot comparison, and
// determinism harnesses.
package testkit

import (
	"context"
	"time"
)

// Clock provides time to any component that needs it, so production code
// can depend on Clock rather than calling time.Now directly and tests can
// supply a fixed or manually-advanced clock.
type Clock interface {
	Now() time.Time
}

// SystemClock uses real wall-clock time. Never used inside a backtest run
// itself — the simulated clock in internal/engine owns that — but useful
// for ambient tooling (CLI timestamps, log rotation) that does run live.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (fc FixedClock) Now() time.Time {
	return fc.T
}

// ManualClock is advanced explicitly by the caller — the shape a
// deterministic-replay test needs to drive a component tick by tick.
type ManualClock struct {
	current time.Time
}

// NewManualClock creates a new manual clock with the given start time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{current: start}
}

func (mc *ManualClock) Now() time.Time {
	return mc.current
}

// Advance moves the clock forward by the given duration.
func (mc *ManualClock) Advance(d time.Duration) {
	mc.current = mc.current.Add(d)
}

// Set sets the clock to a specific time.
func (mc *ManualClock) Set(t time.Time) {
	mc.current = t
}

type clockKey struct{}

// WithClock returns a new context carrying the given clock.
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

// ClockFromContext retrieves the clock from the context, defaulting to
// SystemClock if none was set.
func ClockFromContext(ctx context.Context) Clock {
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		return c
	}
	return SystemClock{}
}

// Now is a convenience function that reads the current time off the
// context's clock.
func Now(ctx context.Context) time.Time {
	return ClockFromContext(ctx).Now()
}
