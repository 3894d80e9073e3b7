package costengine

import "github.com/shopspring/decimal"

// ExchangeFee charges a flat Rate per share (e.g. an ECN take fee),
// regardless of side.
func ExchangeFee(rate decimal.Decimal) Component {
	return func(draft FillDraft, _ PositionSnapshot) decimal.Decimal {
		return draft.Size.Mul(rate)
	}
}

// RegulatoryFee charges Rate per dollar of notional, on sells only (the
// SEC Section 31 transaction fee model).
func RegulatoryFee(rate decimal.Decimal) Component {
	return func(draft FillDraft, _ PositionSnapshot) decimal.Decimal {
		if draft.Side.String() != "sell" {
			return decimal.Zero
		}
		return draft.Size.Mul(draft.Price).Mul(rate)
	}
}

// ShortBorrowFee charges an ad-valorem daily-equivalent rate on the
// notional of a fill that increases a short position, approximating the
// first day's accrued stock-loan cost at execution time; ongoing accrual
// while the position is held is the ledger's responsibility.
func ShortBorrowFee(dailyRate decimal.Decimal) Component {
	return func(draft FillDraft, pos PositionSnapshot) decimal.Decimal {
		if draft.Side.String() != "sell" || pos.CurrentQty.GreaterThanOrEqual(decimal.Zero) {
			return decimal.Zero
		}
		notional := draft.Size.Mul(draft.Price)
		return notional.Mul(dailyRate)
	}
}
