package strategies

import (
	"simulor/libs/marketdata"
)

// MACrossover is an AlphaModel that reads golden-cross / death-cross
// alignment across three SMA lengths (fast, mid, slow) from the Data
// Context. It is stateless across ticks: every SMA is recomputed from the
// bar window visible at ctx.Now(), since the engine guarantees the window
// never includes look-ahead bars.
type MACrossover struct {
	Fast, Mid, Slow int
	Resolution      marketdata.Resolution
	MinConfidence   float64
}

// NewMACrossover builds an MACrossover with the conventional 20/50/200 bar
// windows.
func NewMACrossover(res marketdata.Resolution) *MACrossover {
	return &MACrossover{Fast: 20, Mid: 50, Slow: 200, Resolution: res, MinConfidence: 0.65}
}

func (m *MACrossover) OnData(ctx PipelineContext, event marketdata.MarketEvent, universe []marketdata.Instrument) ([]Signal, error) {
	var out []Signal
	for _, inst := range universe {
		bars := ctx.Data().GetBars(inst, m.Resolution, m.Slow+1)
		if len(bars) < m.Slow {
			continue
		}
		fast, ok1 := sma(bars, m.Fast)
		mid, ok2 := sma(bars, m.Mid)
		slow, ok3 := sma(bars, m.Slow)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		price, _ := bars[len(bars)-1].Close.Float64()

		switch {
		case fast > mid && mid > slow && price > fast:
			out = append(out, Signal{
				Instrument: inst,
				Strength:   1,
				Confidence: m.confidence(fast, mid, slow, true),
				Timestamp:  event.Timestamp,
			})
		case fast < mid && mid < slow && price < fast:
			out = append(out, Signal{
				Instrument: inst,
				Strength:   -1,
				Confidence: m.confidence(fast, mid, slow, false),
				Timestamp:  event.Timestamp,
			})
		}
	}
	return out, nil
}

func (m *MACrossover) confidence(fast, mid, slow float64, bullish bool) float64 {
	confidence := m.MinConfidence
	if bullish {
		if sep := (fast - slow) / slow; sep > 0.05 {
			confidence += 0.10
		}
	} else {
		if sep := (slow - fast) / slow; sep > 0.05 {
			confidence += 0.10
		}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
