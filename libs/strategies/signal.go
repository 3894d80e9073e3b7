package strategies

import (
	"time"

	"simulor/libs/marketdata"
)

// Signal is the AlphaModel's output: a directional, confidence-weighted
// opinion on one instrument. Strength is in [-1, 1] (negative is bearish),
// Confidence in [0, 1].
type Signal struct {
	Instrument marketdata.Instrument
	Strength   float64
	Confidence float64
	Timestamp  time.Time
	Metadata   map[string]any
}

// TargetPortfolio maps instrument to signed fractional weight (portion of
// strategy capital). Produced pre-risk by PortfolioConstruction and
// post-risk by RiskModel; the engine diffs the post-risk result against
// current positions to drive ExecutionModel.
type TargetPortfolio map[marketdata.Instrument]float64

// AbsWeightSum returns the sum of absolute weights, used to enforce the
// leverage cap invariant (sum of absolute weights <= leverage cap).
func (t TargetPortfolio) AbsWeightSum() float64 {
	sum := 0.0
	for _, w := range t {
		if w < 0 {
			sum -= w
		} else {
			sum += w
		}
	}
	return sum
}
