package fillengine

import "simulor/libs/orders"

// Instant fills market orders at mid-price (quote mid, or bar/trade
// reference price absent a quote) and limit orders immediately on cross,
// with no spread or slippage modeling — the simplest policy, useful for
// first-pass strategy iteration.
type Instant struct{}

func (Instant) ProposeFill(o *orders.Order, snap MarketSnapshot) (*Proposal, error) {
	ok, price := crosses(o, snap)
	if !ok {
		return nil, nil
	}
	return &Proposal{Price: price, Size: o.RemainingQty()}, nil
}
