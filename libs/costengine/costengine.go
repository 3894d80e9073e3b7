// Package costengine composes commission, fee, slippage and market-impact
// adjustments applied to a proposed fill before it reaches the ledger.
package costengine

import (
	"simulor/libs/marketdata"
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// FillDraft is the proposed fill before cost adjustments, the input every
// Component reads from.
type FillDraft struct {
	Instrument   marketdata.Instrument
	Side         orders.Side
	Price        decimal.Decimal
	Size         decimal.Decimal
	ArrivalPrice decimal.Decimal
}

// PositionSnapshot is the minimal position context a fee component may
// need (e.g. a short-sale-only regulatory fee).
type PositionSnapshot struct {
	CurrentQty decimal.Decimal
}

// Component is one fee/cost contributor: commission, exchange fee,
// regulatory fee. It returns the charge in cash terms (always
// non-negative; the engine subtracts it).
type Component func(draft FillDraft, pos PositionSnapshot) decimal.Decimal

// PriceAdjuster applies a slippage/impact adjustment to the fill price
// itself, before commission is computed on the adjusted notional.
type PriceAdjuster func(draft FillDraft) decimal.Decimal

// Engine composes price adjusters and fee components, then rounds per
// spec §4.7: half-even to the instrument's quote precision on price, to
// cents on cash.
type Engine struct {
	Adjusters      []PriceAdjuster
	Components     []Component
	QuoteExponent  int32 // e.g. -2 for cents-precision quotes
	CashExponent   int32 // always -2 (cents) per spec
}

// NewEngine builds an Engine with the conventional cents-precision cash
// rounding and the given quote precision.
func NewEngine(quoteExponent int32) *Engine {
	return &Engine{QuoteExponent: quoteExponent, CashExponent: -2}
}

// Result is the engine's output: the cost-adjusted price and total
// commission/fees to subtract from cash.
type Result struct {
	Price      decimal.Decimal
	Commission decimal.Decimal
}

// Apply runs every adjuster then every fee component, rounding both per
// the configured exponents.
func (e *Engine) Apply(draft FillDraft, pos PositionSnapshot) Result {
	price := draft.Price
	for _, adj := range e.Adjusters {
		price = adj(FillDraft{
			Instrument:   draft.Instrument,
			Side:         draft.Side,
			Price:        price,
			Size:         draft.Size,
			ArrivalPrice: draft.ArrivalPrice,
		})
	}
	price = price.RoundBank(-e.QuoteExponent)

	total := decimal.Zero
	adjustedDraft := draft
	adjustedDraft.Price = price
	for _, c := range e.Components {
		total = total.Add(c(adjustedDraft, pos))
	}
	total = total.RoundBank(-e.CashExponent)

	return Result{Price: price, Commission: total}
}
