package strategies

import (
	"simulor/libs/marketdata"
)

// RSIMomentum is a mean-reversion AlphaModel signalling buy on oversold
// RSI and sell on overbought RSI, each scaled by distance from the
// oversold/overbought thresholds.
type RSIMomentum struct {
	Period          int
	Resolution      marketdata.Resolution
	OversoldLevel   float64
	OverboughtLevel float64
	MinConfidence   float64
}

// NewRSIMomentum builds an RSIMomentum with the conventional 14-bar
// period and 30/70 thresholds.
func NewRSIMomentum(res marketdata.Resolution) *RSIMomentum {
	return &RSIMomentum{Period: 14, Resolution: res, OversoldLevel: 30, OverboughtLevel: 70, MinConfidence: 0.6}
}

func (m *RSIMomentum) OnData(ctx PipelineContext, event marketdata.MarketEvent, universe []marketdata.Instrument) ([]Signal, error) {
	var out []Signal
	for _, inst := range universe {
		bars := ctx.Data().GetBars(inst, m.Resolution, m.Period+1)
		value, ok := rsi(bars, m.Period)
		if !ok {
			continue
		}

		switch {
		case value < m.OversoldLevel:
			conf := m.MinConfidence
			if value < 20 {
				conf += 0.15
			}
			if conf > 1.0 {
				conf = 1.0
			}
			out = append(out, Signal{
				Instrument: inst,
				Strength:   1,
				Confidence: conf,
				Timestamp:  event.Timestamp,
				Metadata:   map[string]any{"rsi": value},
			})
		case value > m.OverboughtLevel:
			conf := m.MinConfidence
			if value > 80 {
				conf += 0.15
			}
			if conf > 1.0 {
				conf = 1.0
			}
			out = append(out, Signal{
				Instrument: inst,
				Strength:   -1,
				Confidence: conf,
				Timestamp:  event.Timestamp,
				Metadata:   map[string]any{"rsi": value},
			})
		}
	}
	return out, nil
}
