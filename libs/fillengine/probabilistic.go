package fillengine

import (
	"math/rand"

	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// Probabilistic computes a per-tick fill probability from the order's
// distance from mid (in spread units), its size relative to average
// volume, and a configured base rate, then draws from the seeded RNG to
// decide whether this tick fills.
type Probabilistic struct {
	BaseRate decimal.Decimal // e.g. 0.3: base fill probability per tick when at the touch
	RNG      *rand.Rand      // must be seeded deterministically by the caller
}

func (p Probabilistic) ProposeFill(o *orders.Order, snap MarketSnapshot) (*Proposal, error) {
	ok, price := crosses(o, snap)
	if ok {
		// Already marketable: fill outright, same as Instant.
		return &Proposal{Price: price, Size: o.RemainingQty()}, nil
	}
	if o.Spec.Type == orders.Market {
		return nil, nil
	}

	spread := snap.Ask.Sub(snap.Bid)
	if spread.LessThanOrEqual(decimal.Zero) {
		spread = decimal.NewFromFloat(0.01)
	}
	mid := snap.mid()
	targetPrice := o.Spec.LimitPrice
	if o.Spec.Type == orders.Stop || o.Spec.Type == orders.StopLimit {
		targetPrice = o.Spec.StopPrice
	}
	distanceSpreadUnits := targetPrice.Sub(mid).Abs().Div(spread)

	sizeFactor := decimal.NewFromInt(1)
	if snap.AvgVolume.IsPositive() {
		ratio := o.RemainingQty().Div(snap.AvgVolume)
		sizeFactor = decimal.NewFromInt(1).Sub(ratio)
		if sizeFactor.IsNegative() {
			sizeFactor = decimal.Zero
		}
		if sizeFactor.GreaterThan(decimal.NewFromInt(1)) {
			sizeFactor = decimal.NewFromInt(1)
		}
	}

	distanceDecay := decimal.NewFromInt(1).Div(decimal.NewFromInt(1).Add(distanceSpreadUnits))
	probability := p.BaseRate.Mul(distanceDecay).Mul(sizeFactor)
	probF, _ := probability.Float64()

	draw := 0.5
	if p.RNG != nil {
		draw = p.RNG.Float64()
	}
	if draw > probF {
		return nil, nil
	}
	return &Proposal{Price: mid, Size: o.RemainingQty()}, nil
}
