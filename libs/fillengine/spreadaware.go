package fillengine

import (
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// SpreadAware fills market buys at the ask and market sells at the bid
// (rather than mid), and applies an optional additional slippage in basis
// points to limit fills once they cross.
type SpreadAware struct {
	LimitSlippageBps decimal.Decimal
}

func (p SpreadAware) ProposeFill(o *orders.Order, snap MarketSnapshot) (*Proposal, error) {
	if o.Spec.Type == orders.Market {
		price := snap.oppositeSide(o.Spec.Side)
		return &Proposal{Price: price, Size: o.RemainingQty()}, nil
	}

	ok, price := crosses(o, snap)
	if !ok {
		return nil, nil
	}
	if !p.LimitSlippageBps.IsZero() {
		adj := price.Mul(p.LimitSlippageBps).Div(decimal.NewFromInt(10000))
		if o.Spec.Side == orders.Buy {
			price = price.Add(adj)
		} else {
			price = price.Sub(adj)
		}
	}
	return &Proposal{Price: price, Size: o.RemainingQty(), SlippageBps: p.LimitSlippageBps}, nil
}
