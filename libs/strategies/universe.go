package strategies

import "simulor/libs/marketdata"

// StaticUniverse is a UniverseSelection stage for a fixed instrument list,
// e.g. a single-name or small manually curated basket. It still enforces
// the point-in-time listing-window contract: an instrument is excluded on
// any rebalance where it has not yet listed, or has already delisted, as
// of ctx.Now().
type StaticUniverse struct {
	Instruments []marketdata.Instrument
}

func (u StaticUniverse) SelectUniverse(ctx PipelineContext) ([]marketdata.Instrument, error) {
	now := ctx.Now()
	out := make([]marketdata.Instrument, 0, len(u.Instruments))
	for _, inst := range u.Instruments {
		if inst.TradableAt(now) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// CompositionSource supplies the full candidate list a ListedUniverse
// filters on each rebalance, e.g. an index membership table or a static
// watchlist loaded at strategy setup. It is queried fresh on every
// rebalance so membership itself can change over time, independent of the
// per-instrument listing window.
type CompositionSource interface {
	Constituents() []marketdata.Instrument
}

// StaticComposition is a CompositionSource over a fixed slice, used when
// index membership does not change over the backtest's horizon.
type StaticComposition []marketdata.Instrument

func (s StaticComposition) Constituents() []marketdata.Instrument { return s }

// ListedUniverse is a calendar-aware UniverseSelection stage: on each
// rebalance it asks its CompositionSource for the current candidate set,
// then drops any instrument whose listing window does not cover ctx.Now().
// This is the stage the engine's point-in-time guarantee depends on for a
// dynamic universe — Source may return instruments that have not listed
// yet or have already delisted, and this stage is where those get cut.
type ListedUniverse struct {
	Source CompositionSource
}

func (u ListedUniverse) SelectUniverse(ctx PipelineContext) ([]marketdata.Instrument, error) {
	now := ctx.Now()
	candidates := u.Source.Constituents()
	out := make([]marketdata.Instrument, 0, len(candidates))
	for _, inst := range candidates {
		if inst.TradableAt(now) {
			out = append(out, inst)
		}
	}
	return out, nil
}
