package costengine

import (
	"math"

	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// LinearImpact adjusts price by ImpactBps basis points per unit of
// ParticipationRate (size / AvgVolume), pushing buys up and sells down —
// a simple linear market-impact model.
type LinearImpact struct {
	ImpactBps    decimal.Decimal
	AvgVolume    decimal.Decimal
}

func (a LinearImpact) Adjust(draft FillDraft) decimal.Decimal {
	if a.AvgVolume.IsZero() {
		return draft.Price
	}
	participation := draft.Size.Div(a.AvgVolume)
	bps := a.ImpactBps.Mul(participation)
	adj := draft.Price.Mul(bps).Div(decimal.NewFromInt(10000))
	if draft.Side == orders.Buy {
		return draft.Price.Add(adj)
	}
	return draft.Price.Sub(adj)
}

// SqrtImpact models impact as proportional to the square root of
// participation rate, the conventional shape for temporary market impact
// on larger orders (impact grows sublinearly with size).
type SqrtImpact struct {
	ImpactBps decimal.Decimal
	AvgVolume decimal.Decimal
}

func (a SqrtImpact) Adjust(draft FillDraft) decimal.Decimal {
	if a.AvgVolume.IsZero() {
		return draft.Price
	}
	participation := draft.Size.Div(a.AvgVolume)
	pF, _ := participation.Float64()
	bps := a.ImpactBps.Mul(decimal.NewFromFloat(math.Sqrt(pF)))
	adj := draft.Price.Mul(bps).Div(decimal.NewFromInt(10000))
	if draft.Side == orders.Buy {
		return draft.Price.Add(adj)
	}
	return draft.Price.Sub(adj)
}

// FixedSlippage adds a constant number of basis points against the
// trader, useful for a conservative backtest-only buffer independent of
// size or volume.
func FixedSlippage(bps decimal.Decimal) PriceAdjuster {
	return func(draft FillDraft) decimal.Decimal {
		adj := draft.Price.Mul(bps).Div(decimal.NewFromInt(10000))
		if draft.Side == orders.Buy {
			return draft.Price.Add(adj)
		}
		return draft.Price.Sub(adj)
	}
}

// AsAdjuster adapts a model with an Adjust method to the PriceAdjuster
// function type.
func AsAdjuster(model interface{ Adjust(draft FillDraft) decimal.Decimal }) PriceAdjuster {
	return model.Adjust
}
