// Package marketdata defines the instrument, bar, tick and event types that
// flow through the simulation clock, plus the point-in-time Data Context
// that strategies read from.
package marketdata

import (
	"fmt"
	"time"
)

// AssetClass identifies what kind of instrument this is.
type AssetClass int

const (
	Equity AssetClass = iota
	Option
	Future
	Forex
	Crypto
)

func (a AssetClass) String() string {
	switch a {
	case Equity:
		return "equity"
	case Option:
		return "option"
	case Future:
		return "future"
	case Forex:
		return "forex"
	case Crypto:
		return "crypto"
	default:
		return "unknown"
	}
}

// OptionRight distinguishes calls from puts. Zero value is unused for
// non-option instruments.
type OptionRight int

const (
	NoRight OptionRight = iota
	Call
	Put
)

// Instrument is an immutable symbolic identifier. Two instruments are equal
// iff every field matches; the zero value of optional fields (Expiry,
// Strike, Right) means "not applicable" for that asset class.
type Instrument struct {
	Symbol        string
	Class         AssetClass
	Expiry        time.Time
	Strike        float64
	Right         OptionRight
	QuoteCurrency string

	// ListedAt and DelistedAt bound point-in-time availability. Zero value
	// for DelistedAt means "still listed as of the last known composition
	// update".
	ListedAt   time.Time
	DelistedAt time.Time
}

// Key returns a value usable as a map key; Instrument itself is comparable
// (all fields are comparable), so Key just documents that contract.
func (i Instrument) Key() Instrument { return i }

func (i Instrument) String() string {
	if i.Class == Option {
		return fmt.Sprintf("%s %s %s %.2f", i.Symbol, i.Expiry.Format("2006-01-02"), rightStr(i.Right), i.Strike)
	}
	return i.Symbol
}

func rightStr(r OptionRight) string {
	if r == Call {
		return "C"
	}
	return "P"
}

// TradableAt reports whether the instrument existed as of t, per its listing
// window. An Instrument with a zero ListedAt is treated as always listed
// (used by fixtures and tests that do not model delisting).
func (i Instrument) TradableAt(t time.Time) bool {
	if !i.ListedAt.IsZero() && t.Before(i.ListedAt) {
		return false
	}
	if !i.DelistedAt.IsZero() && t.After(i.DelistedAt) {
		return false
	}
	return true
}
