package fillengine

import (
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// TradeTape gates fills on the observed TradeTick stream: an order fills
// against the next trade whose price crosses its condition, sized as the
// participation-capped minimum of remaining quantity and
// (participation_rate * tick size). Since the engine feeds one TradeTick
// event at a time, walking "successive ticks" is simply the engine calling
// ProposeFill once per tick; this policy carries no cross-tick state of
// its own.
type TradeTape struct {
	ParticipationRate decimal.Decimal
}

func (p TradeTape) ProposeFill(o *orders.Order, snap MarketSnapshot) (*Proposal, error) {
	if !snap.HasTrade {
		return nil, nil
	}
	ok, price := tradeCrosses(o, snap.Last)
	if !ok {
		return nil, nil
	}
	cap := p.ParticipationRate.Mul(snap.TradeSize)
	size := decimal.Min(o.RemainingQty(), cap)
	if !size.IsPositive() {
		return nil, nil
	}
	return &Proposal{Price: price, Size: size}, nil
}

func tradeCrosses(o *orders.Order, last decimal.Decimal) (bool, decimal.Decimal) {
	switch o.Spec.Type {
	case orders.Market:
		return true, last
	case orders.Limit:
		if o.Spec.Side == orders.Buy {
			return last.LessThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
		}
		return last.GreaterThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
	case orders.Stop:
		if o.Spec.Side == orders.Buy {
			return last.GreaterThanOrEqual(o.Spec.StopPrice), last
		}
		return last.LessThanOrEqual(o.Spec.StopPrice), last
	case orders.StopLimit:
		triggered := false
		if o.Spec.Side == orders.Buy {
			triggered = last.GreaterThanOrEqual(o.Spec.StopPrice)
		} else {
			triggered = last.LessThanOrEqual(o.Spec.StopPrice)
		}
		if !triggered {
			return false, decimal.Zero
		}
		if o.Spec.Side == orders.Buy {
			return last.LessThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
		}
		return last.GreaterThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
	}
	return false, decimal.Zero
}
