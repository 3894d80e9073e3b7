package marketdata

import (
	"context"
	"time"
)

// Provider is the data provider boundary (spec §6): a read-only source of
// market events. Implementations decode CSV, Parquet, or a live wire
// protocol; the engine does not care which — it only ever sees this
// interface. CSVProvider (csv.go) is the one concrete implementation this
// module ships; Parquet and live-wire decoding are explicitly out of scope
// and left to external collaborators.
type Provider interface {
	// Enumerate streams every MarketEvent the provider can produce, in
	// non-decreasing timestamp order, onto the returned channel. The
	// channel is closed when the provider is exhausted or ctx is
	// cancelled.
	Enumerate(ctx context.Context) (<-chan MarketEvent, error)

	// Subscribe registers interest in (instrument, resolution); providers
	// that stream live data use this to scope what they fetch, while a
	// historical provider may treat it as a no-op handle.
	Subscribe(i Instrument, r Resolution) (Handle, error)

	// Warmup returns the Bars available strictly before start, oldest
	// first, for (instrument, resolution) — used to pre-populate the Data
	// Context's ring before the run's nominal start so warm-up-dependent
	// indicators are populated without submitting orders on look-ahead
	// data.
	Warmup(ctx context.Context, i Instrument, r Resolution, start time.Time) ([]Bar, error)
}

// Handle identifies an active subscription returned by Provider.Subscribe.
type Handle struct {
	Instrument Instrument
	Resolution Resolution
}
