package strategies

import (
	"simulor/libs/marketdata"
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// DiffExecution is an ExecutionModel that diffs post-risk target weights
// against current positions and emits market orders to close the gap. It
// holds no state of its own: every call recomputes the delta from the
// context's live position and capital snapshot.
type DiffExecution struct {
	// Resolution is the bar granularity used to look up a reference price
	// when no trade/quote tick is available for an instrument.
	Resolution marketdata.Resolution
	// MinOrderNotional suppresses orders below this dollar size, avoiding
	// churn from rounding-noise rebalances.
	MinOrderNotional decimal.Decimal
}

func (d DiffExecution) Execute(ctx PipelineContext, postRisk TargetPortfolio) ([]orders.Spec, error) {
	capital := ctx.Capital()
	var specs []orders.Spec

	seen := make(map[marketdata.Instrument]bool, len(postRisk))
	for inst, weight := range postRisk {
		seen[inst] = true
		price := d.referencePrice(ctx, inst)
		if price.IsZero() {
			continue
		}
		targetNotional := capital.Mul(decimal.NewFromFloat(weight))
		targetQty := targetNotional.Div(price)

		currentQty := decimal.Zero
		if pos, ok := ctx.Position(inst); ok {
			currentQty = pos.Quantity
		}
		delta := targetQty.Sub(currentQty)
		if spec, ok := d.buildSpec(inst, delta, price); ok {
			specs = append(specs, spec)
		}
	}

	// Flatten any position no longer present in the post-risk target set.
	for _, pos := range ctx.Positions() {
		if seen[pos.Instrument] || pos.Quantity.IsZero() {
			continue
		}
		price := d.referencePrice(ctx, pos.Instrument)
		if price.IsZero() {
			continue
		}
		if spec, ok := d.buildSpec(pos.Instrument, pos.Quantity.Neg(), price); ok {
			specs = append(specs, spec)
		}
	}

	return specs, nil
}

func (d DiffExecution) buildSpec(inst marketdata.Instrument, delta, price decimal.Decimal) (orders.Spec, bool) {
	if delta.IsZero() {
		return orders.Spec{}, false
	}
	notional := delta.Abs().Mul(price)
	if d.MinOrderNotional.IsPositive() && notional.LessThan(d.MinOrderNotional) {
		return orders.Spec{}, false
	}
	side := orders.Buy
	if delta.IsNegative() {
		side = orders.Sell
	}
	return orders.Spec{
		Instrument: inst,
		Side:       side,
		Size:       delta.Abs(),
		Type:       orders.Market,
		TIF:        orders.DAY,
	}, true
}

func (d DiffExecution) referencePrice(ctx PipelineContext, inst marketdata.Instrument) decimal.Decimal {
	if t, ok := ctx.Data().LatestTrade(inst); ok {
		return t.Price
	}
	if q, ok := ctx.Data().LatestQuote(inst); ok {
		return q.Mid()
	}
	if b, ok := ctx.Data().GetBar(inst, d.Resolution); ok {
		return b.Close
	}
	return decimal.Zero
}
