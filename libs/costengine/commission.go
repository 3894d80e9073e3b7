package costengine

import "github.com/shopspring/decimal"

// PerShare is a commission of Rate per unit traded, floored at Minimum.
type PerShare struct {
	Rate    decimal.Decimal
	Minimum decimal.Decimal
}

// Commission satisfies Component.
func (c PerShare) Commission(draft FillDraft, _ PositionSnapshot) decimal.Decimal {
	charge := draft.Size.Mul(c.Rate)
	if charge.LessThan(c.Minimum) {
		return c.Minimum
	}
	return charge
}

// Percentage is a commission of Rate (e.g. 0.0005 for 5bps) of notional,
// floored at Minimum.
type Percentage struct {
	Rate    decimal.Decimal
	Minimum decimal.Decimal
}

func (c Percentage) Commission(draft FillDraft, _ PositionSnapshot) decimal.Decimal {
	notional := draft.Size.Mul(draft.Price)
	charge := notional.Mul(c.Rate)
	if charge.LessThan(c.Minimum) {
		return c.Minimum
	}
	return charge
}

// TierBreak is one step of a Tiered commission schedule: volume at or
// above Threshold (cumulative shares for this fill) pays Rate per share.
type TierBreak struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// Tiered charges the rate of the highest tier whose threshold the fill
// size reaches, floored at Minimum. Tiers must be supplied in ascending
// Threshold order.
type Tiered struct {
	Tiers   []TierBreak
	Minimum decimal.Decimal
}

func (c Tiered) Commission(draft FillDraft, _ PositionSnapshot) decimal.Decimal {
	rate := decimal.Zero
	for _, tier := range c.Tiers {
		if draft.Size.GreaterThanOrEqual(tier.Threshold) {
			rate = tier.Rate
		}
	}
	charge := draft.Size.Mul(rate)
	if charge.LessThan(c.Minimum) {
		return c.Minimum
	}
	return charge
}

// AsComponent adapts any commission model's Commission method to the
// Component signature used by Engine.
func AsComponent(model interface {
	Commission(draft FillDraft, pos PositionSnapshot) decimal.Decimal
}) Component {
	return model.Commission
}
