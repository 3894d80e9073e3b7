package marketdata

import "time"

// EventKind tags which payload field of a MarketEvent is populated.
type EventKind int

const (
	EventBar EventKind = iota
	EventTrade
	EventQuote
)

func (k EventKind) String() string {
	switch k {
	case EventBar:
		return "bar"
	case EventTrade:
		return "trade"
	case EventQuote:
		return "quote"
	default:
		return "unknown"
	}
}

// MarketEvent is the tuple (timestamp, instrument, resolution, payload)
// delivered by the Clock & Event Stream. Exactly one payload field is set,
// selected by Kind. Timestamp is the event's effective timestamp — for a
// Bar this is Bar.EffectiveAt(), not Bar.Timestamp.
type MarketEvent struct {
	Timestamp  time.Time
	Instrument Instrument
	Resolution Resolution
	Kind       EventKind

	Bar   *Bar
	Trade *TradeTick
	Quote *QuoteTick
}

// NewBarEvent builds a MarketEvent from a completed bar, stamped at the
// bar's effective timestamp rather than its start.
func NewBarEvent(b Bar) MarketEvent {
	return MarketEvent{
		Timestamp:  b.EffectiveAt(),
		Instrument: b.Instrument,
		Resolution: b.Resolution,
		Kind:       EventBar,
		Bar:        &b,
	}
}

// NewTradeEvent builds a MarketEvent from a trade tick.
func NewTradeEvent(t TradeTick) MarketEvent {
	return MarketEvent{
		Timestamp:  t.Timestamp,
		Instrument: t.Instrument,
		Resolution: ResTick,
		Kind:       EventTrade,
		Trade:      &t,
	}
}

// NewQuoteEvent builds a MarketEvent from a quote tick.
func NewQuoteEvent(q QuoteTick) MarketEvent {
	return MarketEvent{
		Timestamp:  q.Timestamp,
		Instrument: q.Instrument,
		Resolution: ResTick,
		Kind:       EventQuote,
		Quote:      &q,
	}
}
