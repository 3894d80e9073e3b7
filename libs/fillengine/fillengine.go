// Package fillengine implements the pluggable fill models described in
// spec §4.6: Instant, SpreadAware, TradeTape, OrderBook (L2), and
// Probabilistic, each satisfying the same Policy contract so the Engine
// can swap them without touching the run loop.
package fillengine

import (
	"time"

	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// BarFillPrice resolves Open Question 2 from spec §9: which bar-resolution
// price a fill policy uses when only a bar (not a quote/trade tick) is
// available.
type BarFillPrice int

const (
	FillAtClose BarFillPrice = iota
	FillAtOpen
)

// MarketSnapshot is the single, shared view of the market all policies
// evaluate working orders against at a given tick (tie-break rule i).
type MarketSnapshot struct {
	Timestamp time.Time

	HasQuote bool
	Bid      decimal.Decimal
	Ask      decimal.Decimal

	HasTrade  bool
	Last      decimal.Decimal
	TradeSize decimal.Decimal

	HasBar   bool
	BarOpen  decimal.Decimal
	BarClose decimal.Decimal
	BarHigh  decimal.Decimal
	BarLow   decimal.Decimal
	BarFill  BarFillPrice

	AvgVolume decimal.Decimal // for probabilistic sizing
	Book      *Book           // L2 snapshot, nil unless the OrderBook policy is in use
}

// PriceLevel is one price/size rung of a reconstructed L2 book.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Book is a reconstructed Level-2 order book: Bids sorted highest-first,
// Asks sorted lowest-first.
type Book struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// referencePrice is the single price used for market/crossing checks when
// no quote is present: the configured bar-resolution price, falling back
// to last trade.
func (s MarketSnapshot) referencePrice() decimal.Decimal {
	if s.HasBar {
		if s.BarFill == FillAtOpen {
			return s.BarOpen
		}
		return s.BarClose
	}
	if s.HasTrade {
		return s.Last
	}
	return decimal.Zero
}

func (s MarketSnapshot) mid() decimal.Decimal {
	if s.HasQuote {
		return s.Bid.Add(s.Ask).Div(decimal.NewFromInt(2))
	}
	return s.referencePrice()
}

// Proposal is a policy's answer for one order at one tick: nil means no
// fill this tick. Size may be less than RemainingQty for a partial fill.
type Proposal struct {
	Price       decimal.Decimal
	Size        decimal.Decimal
	SlippageBps decimal.Decimal
}

// Policy is the contract every fill model satisfies.
type Policy interface {
	ProposeFill(o *orders.Order, snap MarketSnapshot) (*Proposal, error)
}

// crosses reports whether side/type/price conditions are met against snap,
// using non-strict comparison per the Open Question 1 ruling (limit at
// exactly the opposite-side quote fills).
func crosses(o *orders.Order, snap MarketSnapshot) (bool, decimal.Decimal) {
	switch o.Spec.Type {
	case orders.Market:
		return true, snap.marketPrice(o.Spec.Side)
	case orders.Limit:
		ref := snap.oppositeSide(o.Spec.Side)
		if o.Spec.Side == orders.Buy {
			return ref.LessThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
		}
		return ref.GreaterThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
	case orders.Stop:
		last := snap.referencePrice()
		if snap.HasTrade {
			last = snap.Last
		}
		if o.Spec.Side == orders.Buy {
			return last.GreaterThanOrEqual(o.Spec.StopPrice), snap.marketPrice(o.Spec.Side)
		}
		return last.LessThanOrEqual(o.Spec.StopPrice), snap.marketPrice(o.Spec.Side)
	case orders.StopLimit:
		last := snap.referencePrice()
		triggered := false
		if o.Spec.Side == orders.Buy {
			triggered = last.GreaterThanOrEqual(o.Spec.StopPrice)
		} else {
			triggered = last.LessThanOrEqual(o.Spec.StopPrice)
		}
		if !triggered {
			return false, decimal.Zero
		}
		ref := snap.oppositeSide(o.Spec.Side)
		if o.Spec.Side == orders.Buy {
			return ref.LessThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
		}
		return ref.GreaterThanOrEqual(o.Spec.LimitPrice), o.Spec.LimitPrice
	}
	return false, decimal.Zero
}

// marketPrice is the Instant policy's mid-price rule: mid of quote, or
// bar/trade reference price when no quote is present.
func (s MarketSnapshot) marketPrice(_ orders.Side) decimal.Decimal {
	return s.mid()
}

// oppositeSide returns the quote side a resting order of side checks
// against to determine whether it is crossed: a buy checks the ask, a sell
// checks the bid. Falls back to the reference price when no quote exists.
func (s MarketSnapshot) oppositeSide(side orders.Side) decimal.Decimal {
	if s.HasQuote {
		if side == orders.Buy {
			return s.Ask
		}
		return s.Bid
	}
	return s.referencePrice()
}
