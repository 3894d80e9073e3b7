package marketdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is an aggregated OHLC (trade) or OHLC-quote bar. Timestamp marks the
// *start* of the interval; the bar is "effective at" Timestamp+interval,
// since it represents information only complete once the interval closes.
type Bar struct {
	Timestamp  time.Time
	Instrument Instrument
	Resolution Resolution

	HasTrade bool
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal

	HasQuote bool
	BidOpen  decimal.Decimal
	BidHigh  decimal.Decimal
	BidLow   decimal.Decimal
	BidClose decimal.Decimal
	AskOpen  decimal.Decimal
	AskHigh  decimal.Decimal
	AskLow   decimal.Decimal
	AskClose decimal.Decimal
}

// EffectiveAt is the timestamp at which this bar's information becomes
// knowable to a strategy — the end of the interval it aggregates, not the
// start. The Data Context refuses to expose a bar before this moment.
func (b Bar) EffectiveAt() time.Time {
	d := b.Resolution.Duration()
	if d == 0 {
		return b.Timestamp
	}
	return b.Timestamp.Add(d)
}

// Validate checks the OHLC/quote invariants from the data model: trade
// fields non-negative with low <= open,close <= high, volume >= 0; quote
// fields with bid_close <= ask_close. A bar failing validation is a
// data-quality error and must be rejected by the loader, never silently
// repaired by the engine.
func (b Bar) Validate() error {
	if b.HasTrade {
		if b.Open.IsNegative() || b.High.IsNegative() || b.Low.IsNegative() || b.Close.IsNegative() {
			return fmt.Errorf("marketdata: negative OHLC field on bar %s %s", b.Instrument, b.Timestamp)
		}
		if b.Volume.IsNegative() {
			return fmt.Errorf("marketdata: negative volume on bar %s %s", b.Instrument, b.Timestamp)
		}
		if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) || b.Open.GreaterThan(b.High) || b.Close.GreaterThan(b.High) {
			return fmt.Errorf("marketdata: OHLC ordering violated on bar %s %s", b.Instrument, b.Timestamp)
		}
	}
	if b.HasQuote {
		if b.BidClose.GreaterThan(b.AskClose) {
			return fmt.Errorf("marketdata: bid_close > ask_close on bar %s %s", b.Instrument, b.Timestamp)
		}
	}
	if !b.HasTrade && !b.HasQuote {
		return fmt.Errorf("marketdata: bar %s %s has neither trade nor quote fields", b.Instrument, b.Timestamp)
	}
	return nil
}

// Mid returns the quote midpoint of the bar close, falling back to the
// trade close when no quote side is present.
func (b Bar) Mid() decimal.Decimal {
	if b.HasQuote {
		return b.BidClose.Add(b.AskClose).Div(decimal.NewFromInt(2))
	}
	return b.Close
}
