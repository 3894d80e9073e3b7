// Package latency models the simulation's three independent delay
// streams — order transmission, market-data dissemination, and
// execution — as seeded random-distribution draws, so a run is
// reproducible end to end from one master seed.
package latency

import (
	"math"
	"math/rand"
	"time"
)

// Distribution draws a non-negative delay from a seeded source.
type Distribution interface {
	Draw(rng *rand.Rand) time.Duration
}

// Fixed always returns the same delay.
type Fixed struct {
	Delay time.Duration
}

func (f Fixed) Draw(_ *rand.Rand) time.Duration { return f.Delay }

// Uniform draws uniformly from [Min, Max).
type Uniform struct {
	Min, Max time.Duration
}

func (u Uniform) Draw(rng *rand.Rand) time.Duration {
	if u.Max <= u.Min {
		return u.Min
	}
	span := u.Max - u.Min
	return u.Min + time.Duration(rng.Int63n(int64(span)))
}

// Normal draws from a normal distribution with the given mean/stddev,
// floored at zero (a latency can't be negative).
type Normal struct {
	Mean, StdDev time.Duration
}

func (n Normal) Draw(rng *rand.Rand) time.Duration {
	d := float64(n.Mean) + rng.NormFloat64()*float64(n.StdDev)
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// LogNormal draws from a log-normal distribution parameterized by the
// underlying normal's mu/sigma (in nanosecond-log-space).
type LogNormal struct {
	Mu, Sigma float64
}

func (l LogNormal) Draw(rng *rand.Rand) time.Duration {
	v := math.Exp(l.Mu + rng.NormFloat64()*l.Sigma)
	return time.Duration(v)
}

// Exponential draws from an exponential distribution with the given
// mean delay.
type Exponential struct {
	Mean time.Duration
}

func (e Exponential) Draw(rng *rand.Rand) time.Duration {
	if e.Mean <= 0 {
		return 0
	}
	lambda := 1.0 / float64(e.Mean)
	return time.Duration(rng.ExpFloat64() / lambda)
}

// Streams bundles the three independently-configured delay streams the
// engine applies at different points in the order/data lifecycle.
type Streams struct {
	OrderTransmission Distribution
	MarketData        Distribution
	Execution         Distribution

	rng *rand.Rand
}

// NewStreams builds a Streams bundle seeded from the run's master seed,
// so repeated runs with the same seed draw identical delay sequences.
func NewStreams(seed int64, orderTx, marketData, execution Distribution) *Streams {
	return &Streams{
		OrderTransmission: orderTx,
		MarketData:        marketData,
		Execution:         execution,
		rng:               rand.New(rand.NewSource(seed)),
	}
}

// OrderDelay draws the next order-transmission delay.
func (s *Streams) OrderDelay() time.Duration {
	if s.OrderTransmission == nil {
		return 0
	}
	return s.OrderTransmission.Draw(s.rng)
}

// DataDelay draws the next market-data dissemination delay.
func (s *Streams) DataDelay() time.Duration {
	if s.MarketData == nil {
		return 0
	}
	return s.MarketData.Draw(s.rng)
}

// ExecutionDelay draws the next execution delay.
func (s *Streams) ExecutionDelay() time.Duration {
	if s.Execution == nil {
		return 0
	}
	return s.Execution.Draw(s.rng)
}
