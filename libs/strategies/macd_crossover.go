package strategies

import (
	"simulor/libs/marketdata"
)

// MACDCrossover is an AlphaModel signalling on MACD/signal-line crossovers
// with a non-zero histogram, recomputed from the visible bar window at
// every tick.
type MACDCrossover struct {
	Fast, Slow, Signal int
	Resolution         marketdata.Resolution
	MinHistogram       float64
	MinConfidence      float64
}

// NewMACDCrossover builds a MACDCrossover with the conventional 12/26/9
// bar windows.
func NewMACDCrossover(res marketdata.Resolution) *MACDCrossover {
	return &MACDCrossover{Fast: 12, Slow: 26, Signal: 9, Resolution: res, MinConfidence: 0.6}
}

func (m *MACDCrossover) OnData(ctx PipelineContext, event marketdata.MarketEvent, universe []marketdata.Instrument) ([]Signal, error) {
	var out []Signal
	for _, inst := range universe {
		bars := ctx.Data().GetBars(inst, m.Resolution, m.Slow+m.Signal+5)
		macd, signal, histogram, ok := macdLine(bars, m.Fast, m.Slow, m.Signal)
		if !ok {
			continue
		}

		switch {
		case histogram > m.MinHistogram && macd > signal:
			out = append(out, Signal{
				Instrument: inst,
				Strength:   1,
				Confidence: m.confidence(histogram, true),
				Timestamp:  event.Timestamp,
				Metadata:   map[string]any{"macd": macd, "signal": signal, "histogram": histogram},
			})
		case histogram < -m.MinHistogram && macd < signal:
			out = append(out, Signal{
				Instrument: inst,
				Strength:   -1,
				Confidence: m.confidence(histogram, false),
				Timestamp:  event.Timestamp,
				Metadata:   map[string]any{"macd": macd, "signal": signal, "histogram": histogram},
			})
		}
	}
	return out, nil
}

func (m *MACDCrossover) confidence(histogram float64, _ bool) float64 {
	confidence := m.MinConfidence
	if absf(histogram) > 0.5 {
		confidence += 0.10
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
