// Package strategies defines the five-stage strategy pipeline contract
// (UniverseSelection -> AlphaModel -> PortfolioConstruction -> RiskModel ->
// ExecutionModel) and a handful of built-in stage implementations. Stages
// are composed by value into a Strategy; there is no base class to extend.
package strategies

import (
	"time"

	"simulor/libs/ledger"
	"simulor/libs/marketdata"
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// PipelineContext is the read-only view every stage receives instead of
// reaching into engine internals directly. Stages never mutate the ledger
// or Data Context; all mutation happens in the engine, between stage
// invocations.
type PipelineContext interface {
	Now() time.Time
	Data() *marketdata.DataContext
	Position(i marketdata.Instrument) (ledger.Position, bool)
	Positions() []ledger.Position
	SettledCash() decimal.Decimal
	BuyingPower() decimal.Decimal
	Capital() decimal.Decimal
}

// UniverseSelection returns the set of instruments currently tradable. It
// runs on a rebalance schedule, not per tick; it must never return an
// instrument that did not exist (per its listing window) at ctx.Now().
type UniverseSelection interface {
	SelectUniverse(ctx PipelineContext) ([]marketdata.Instrument, error)
}

// AlphaModel is given the triggering event and the active universe and
// returns zero or more Signals. It must be pure with respect to the Data
// Context: it may read from ctx.Data() and its own retained indicator
// state, but must never call into order or portfolio state.
type AlphaModel interface {
	OnData(ctx PipelineContext, event marketdata.MarketEvent, universe []marketdata.Instrument) ([]Signal, error)
}

// PortfolioConstruction turns signals into a pre-risk TargetPortfolio.
type PortfolioConstruction interface {
	CreateTargets(ctx PipelineContext, signals []Signal) (TargetPortfolio, error)
}

// RiskModel applies position caps, leverage caps, drawdown halts and
// concentration limits to pre-risk targets, returning post-risk targets. It
// may return an empty TargetPortfolio to halt all new exposure.
type RiskModel interface {
	ApplyRisk(ctx PipelineContext, preRisk TargetPortfolio) (TargetPortfolio, error)
}

// ExecutionModel is the only stage that produces orders: it diffs
// post-risk targets against current positions and returns the OrderSpecs
// needed to close the gap.
type ExecutionModel interface {
	Execute(ctx PipelineContext, postRisk TargetPortfolio) ([]orders.Spec, error)
}

// Strategy bundles the five pluggable stages under a stable ID. Stages are
// composed by value; a strategy is data, not an inheritance tree.
type Strategy struct {
	ID         string
	Universe   UniverseSelection
	Alpha      AlphaModel
	Construct  PortfolioConstruction
	Risk       RiskModel
	Execute    ExecutionModel
	WarmupBars int // bars of history required before orders are permitted
}
