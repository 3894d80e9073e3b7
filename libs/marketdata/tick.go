package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickDirection classifies a trade tick relative to the prevailing quote.
type TickDirection int

const (
	DirUnknown TickDirection = iota
	DirUp
	DirDown
)

// TradeTick is a single executed trade, sub-bar granularity.
type TradeTick struct {
	Timestamp  time.Time
	Instrument Instrument
	Price      decimal.Decimal
	Size       decimal.Decimal
	Direction  TickDirection
}

// QuoteTick is a top-of-book quote update, sub-bar granularity.
type QuoteTick struct {
	Timestamp  time.Time
	Instrument Instrument
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	BidSize    decimal.Decimal
	AskSize    decimal.Decimal
}

// Mid returns the quote midpoint.
func (q QuoteTick) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}
