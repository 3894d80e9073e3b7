// Package ledger implements the portfolio/accounting core: positions, the
// cash account and settlement queue, buying power, and realized/unrealized
// P&L, plus the invariants the engine enforces on every fill.
package ledger

import (
	"time"

	"simulor/libs/marketdata"

	"github.com/shopspring/decimal"
)

// Position is a single instrument's signed holding.
type Position struct {
	Instrument    marketdata.Instrument
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
	LastMarkPrice decimal.Decimal
	LastMarkAt    time.Time
}

// MarketValue returns quantity * last mark price.
func (p Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.LastMarkPrice)
}

// UnrealizedPnL returns (mark - avg_entry) * quantity.
func (p Position) UnrealizedPnL() decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return p.LastMarkPrice.Sub(p.AvgEntryPrice).Mul(p.Quantity)
}

// applyFill updates the position for a fill of signedQty (positive for
// buys, negative for sells) at price, returning the realized P&L delta
// attributable to this fill (nonzero only on a reducing/closing fill).
func (p *Position) applyFill(signedQty, price decimal.Decimal) decimal.Decimal {
	realized := decimal.Zero

	sameSign := p.Quantity.Sign() == 0 || p.Quantity.Sign() == signedQty.Sign()
	if sameSign {
		// Opening or increasing: running weighted average entry price.
		newQty := p.Quantity.Add(signedQty)
		if !newQty.IsZero() {
			totalCost := p.AvgEntryPrice.Mul(p.Quantity).Add(price.Mul(signedQty))
			p.AvgEntryPrice = totalCost.Div(newQty).Abs()
		}
		p.Quantity = newQty
		return realized
	}

	// Reducing or flipping: the portion up to min(|signedQty|, |Quantity|)
	// closes against AvgEntryPrice and realizes P&L; sign is the sign of
	// the *existing* position (closing a long by selling realizes
	// (price-entry)*closedQty; closing a short by buying realizes
	// (entry-price)*closedQty).
	closingQty := decimal.Min(signedQty.Abs(), p.Quantity.Abs())
	positionSign := decimal.NewFromInt(int64(p.Quantity.Sign()))
	realized = price.Sub(p.AvgEntryPrice).Mul(closingQty).Mul(positionSign)
	p.RealizedPnL = p.RealizedPnL.Add(realized)

	newQty := p.Quantity.Add(signedQty)
	p.Quantity = newQty
	if newQty.IsZero() {
		p.AvgEntryPrice = decimal.Zero
	} else if newQty.Sign() != 0 && newQty.Sign() != positionSign.Sign() {
		// Flipped through zero: the remainder opens a new position at the
		// fill price.
		p.AvgEntryPrice = price
	}
	return realized
}

// MarkToMarket updates the position's reference price, used by the daily
// session-close task and by unrealized P&L reporting.
func (p *Position) MarkToMarket(price decimal.Decimal, at time.Time) {
	p.LastMarkPrice = price
	p.LastMarkAt = at
}
