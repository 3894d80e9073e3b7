package engine

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"simulor/libs/costengine"
	"simulor/libs/eventlog"
	"simulor/libs/fillengine"
	"simulor/libs/latency"
	"simulor/libs/ledger"
	"simulor/libs/marketdata"
	"simulor/libs/orders"
	"simulor/libs/strategies"

	"github.com/shopspring/decimal"
)

// visibleItem is a raw clock event waiting out its market-data
// dissemination delay before it becomes visible to strategies.
type visibleItem struct {
	at    time.Time
	event marketdata.MarketEvent
}

type visibleHeap []visibleItem

func (h visibleHeap) Len() int            { return len(h) }
func (h visibleHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h visibleHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *visibleHeap) Push(x any)         { *h = append(*h, x.(visibleItem)) }
func (h *visibleHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Engine is the top-level run loop: it owns every stateful component a
// backtest needs and drives the per-tick data flow spec §4 describes —
// Clock emits an event, the Filter selects recipients, the Data Context
// updates, the Scheduler fires any due callbacks, each subscribed
// strategy runs its five-stage pipeline, the Order Manager accepts new
// orders subject to latency, the Fill Engine matches working orders
// against the current market, the Cost Engine adjusts the fill, the
// Ledger applies it, and the Event Log records every step.
type Engine struct {
	Clock     *Clock
	Filter    *SubscriptionFilter
	Scheduler *Scheduler
	dataCtx   *marketdata.DataContext

	Strategies map[string]*strategies.Strategy
	barsSeen   map[string]int
	universe   map[string][]marketdata.Instrument

	Orders  *orders.Manager
	Ledger  *ledger.Ledger
	Matcher *fillengine.Matcher
	Cost    *costengine.Engine
	Latency *latency.Streams
	Monitor *latency.Monitor
	Log     *eventlog.Log

	// ShortBorrowDailyRate and OvernightFinancingDailyRate are the daily
	// rates SessionClose charges/credits. Left at their decimal.Decimal
	// zero value, both are no-ops.
	ShortBorrowDailyRate        decimal.Decimal
	OvernightFinancingDailyRate decimal.Decimal

	visible visibleHeap
	tick    time.Time
}

// New builds an Engine from its already-constructed parts. Strategies are
// registered separately via AddStrategy so their (instrument, resolution)
// subscriptions can be wired into Filter at the same time.
func New(clock *Clock, filter *SubscriptionFilter, sched *Scheduler, data *marketdata.DataContext,
	mgr *orders.Manager, led *ledger.Ledger, matcher *fillengine.Matcher, cost *costengine.Engine,
	streams *latency.Streams, monitor *latency.Monitor, log *eventlog.Log) *Engine {
	return &Engine{
		Clock:      clock,
		Filter:     filter,
		Scheduler:  sched,
		dataCtx:    data,
		Strategies: make(map[string]*strategies.Strategy),
		barsSeen:   make(map[string]int),
		universe:   make(map[string][]marketdata.Instrument),
		Orders:     mgr,
		Ledger:     led,
		Matcher:    matcher,
		Cost:       cost,
		Latency:    streams,
		Monitor:    monitor,
		Log:        log,
	}
}

// AddStrategy registers strat and subscribes it to every (instrument,
// resolution) pair in subscriptions.
func (e *Engine) AddStrategy(strat *strategies.Strategy, subscriptions []marketdata.Handle) {
	e.Strategies[strat.ID] = strat
	for _, h := range subscriptions {
		e.Filter.Subscribe(strat.ID, h.Instrument, h.Resolution)
	}
}

// RebalanceUniverse re-runs a strategy's UniverseSelection stage and caches
// the result, per spec's "rebalance-scheduled, not per-tick" contract: a
// caller (typically a Scheduler callback registered at strategy setup)
// invokes this on whatever cadence the strategy's universe should refresh
// on; every other pipeline invocation reuses the cached set.
func (e *Engine) RebalanceUniverse(strategyID string) error {
	strat, ok := e.Strategies[strategyID]
	if !ok {
		return fmt.Errorf("engine: unknown strategy %s", strategyID)
	}
	universe, err := strat.Universe.SelectUniverse(e)
	if err != nil {
		return fmt.Errorf("engine: strategy %s universe selection: %w", strategyID, err)
	}
	e.universe[strategyID] = universe
	return nil
}

// SessionClose runs spec §4.9's end-of-day housekeeping: advances the
// settlement queue by one business day, accrues short-borrow and overnight
// financing, and marks every open position to its session-close reference
// price. It does none of that itself on a tick boundary — a Scheduler
// DailyAt callback registered at run setup is what invokes it, so a run
// with no such callback wired simply never settles pending cash, matching
// SettleT0 mode's "nothing to settle" semantics.
func (e *Engine) SessionClose(now time.Time) {
	e.Ledger.AdvanceSettlement(now)
	e.Ledger.AccrueShortBorrow(e.ShortBorrowDailyRate, now)
	e.Ledger.AccrueOvernightFinancing(e.OvernightFinancingDailyRate, now)
	for _, p := range e.Ledger.AllPositions() {
		if p.Quantity.IsZero() {
			continue
		}
		e.Ledger.MarkToMarket(p.Instrument, e.referencePrice(p.Instrument), now)
	}
}

// strategies.PipelineContext implementation -- the engine itself is the
// context every stage reads through, so stages never reach into engine
// internals they shouldn't mutate.

func (e *Engine) Now() time.Time { return e.tick }

// Data satisfies strategies.PipelineContext.
func (e *Engine) Data() *marketdata.DataContext { return e.dataCtx }

func (e *Engine) Position(i marketdata.Instrument) (ledger.Position, bool) {
	return e.Ledger.Position(i)
}

func (e *Engine) Positions() []ledger.Position { return e.Ledger.AllPositions() }

func (e *Engine) SettledCash() decimal.Decimal { return e.Ledger.Cash.Settled }

func (e *Engine) BuyingPower() decimal.Decimal { return e.Ledger.BuyingPower() }

func (e *Engine) Capital() decimal.Decimal { return e.Ledger.NetLiquidation() }

// Run drives the event loop to completion, sealing the event log whether
// it finishes cleanly or aborts on an invariant violation.
func (e *Engine) Run(ctx context.Context) error {
	defer e.Log.Seal()

	heap.Init(&e.visible)
	for {
		raw, ok, err := e.Clock.Next(ctx)
		if err != nil {
			return err
		}
		if ok {
			delay := e.Latency.DataDelay()
			e.Monitor.RecordMarketData(delay, raw.Timestamp)
			heap.Push(&e.visible, visibleItem{at: raw.Timestamp.Add(delay), event: raw})
		}
		for e.visible.Len() > 0 && (!ok || !e.visible[0].at.After(raw.Timestamp)) {
			item := heap.Pop(&e.visible).(visibleItem)
			if err := e.processTick(item.at, item.event); err != nil {
				return err
			}
		}
		if !ok {
			break
		}
	}
	return nil
}

// processTick runs one event through the full data flow: Data Context
// update, scheduler, strategy pipelines, order acceptance, fill matching,
// cost adjustment, ledger application, and event-log recording.
func (e *Engine) processTick(at time.Time, event marketdata.MarketEvent) error {
	e.tick = at
	e.dataCtx.Advance(at)
	switch event.Kind {
	case marketdata.EventBar:
		e.dataCtx.PutBar(*event.Bar)
	case marketdata.EventTrade:
		e.dataCtx.PutTrade(*event.Trade)
	case marketdata.EventQuote:
		e.dataCtx.PutQuote(*event.Quote)
	}

	e.Scheduler.Fire(at)

	for _, id := range e.Filter.Route(event) {
		strat := e.Strategies[id]
		if strat == nil {
			continue
		}
		if err := e.runPipeline(strat, event); err != nil {
			return err
		}
	}

	if err := e.matchFills(at, event); err != nil {
		return err
	}

	if err := e.Ledger.CheckInvariants(e.Orders.All()); err != nil {
		if _, logErr := e.Log.Append(at, eventlog.KindViolation, map[string]string{"error": err.Error()}); logErr != nil {
			return logErr
		}
		return err
	}
	return nil
}

func (e *Engine) runPipeline(strat *strategies.Strategy, event marketdata.MarketEvent) error {
	e.barsSeen[strat.ID]++

	universe, ok := e.universe[strat.ID]
	if !ok {
		if err := e.RebalanceUniverse(strat.ID); err != nil {
			return err
		}
		universe = e.universe[strat.ID]
	}

	signals, err := strat.Alpha.OnData(e, event, universe)
	if err != nil {
		return fmt.Errorf("engine: strategy %s alpha model: %w", strat.ID, err)
	}

	if e.barsSeen[strat.ID] < strat.WarmupBars {
		return nil
	}

	preRisk, err := strat.Construct.CreateTargets(e, signals)
	if err != nil {
		return fmt.Errorf("engine: strategy %s portfolio construction: %w", strat.ID, err)
	}

	postRisk, err := strat.Risk.ApplyRisk(e, preRisk)
	if err != nil {
		return fmt.Errorf("engine: strategy %s risk model: %w", strat.ID, err)
	}

	specs, err := strat.Execute.Execute(e, postRisk)
	if err != nil {
		return fmt.Errorf("engine: strategy %s execution model: %w", strat.ID, err)
	}

	for _, spec := range specs {
		if err := e.submit(spec); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) submit(spec orders.Spec) error {
	arrival := e.referencePrice(spec.Instrument)
	o, err := e.Orders.Submit(spec, arrival, e.tick)
	if err != nil {
		return fmt.Errorf("engine: order submit: %w", err)
	}

	delay := e.Latency.OrderDelay()
	e.Monitor.RecordOrder(delay, e.tick)
	if o.State == orders.Working || o.State == orders.Accepted {
		if err := e.Orders.SetEligibleAt(o.ID, e.tick.Add(delay)); err != nil {
			return err
		}
	}

	_, err = e.Log.Append(e.tick, eventlog.KindOrderSubmit, map[string]any{
		"order_id":   o.ID,
		"instrument": spec.Instrument.Symbol,
		"side":       spec.Side.String(),
		"type":       spec.Type.String(),
		"size":       spec.Size.String(),
		"state":      o.State.String(),
	})
	return err
}

// referencePrice follows the same order as strategies.DiffExecution's
// fallback chain (last trade, then quote mid, then most recent bar close).
// Where DiffExecution reads bars only at its configured resolution, this
// tries minute, then hour, then day bars and uses the first it finds.
func (e *Engine) referencePrice(inst marketdata.Instrument) decimal.Decimal {
	if t, ok := e.dataCtx.LatestTrade(inst); ok {
		return t.Price
	}
	if q, ok := e.dataCtx.LatestQuote(inst); ok {
		return q.Mid()
	}
	for _, r := range []marketdata.Resolution{marketdata.ResMinute, marketdata.ResHour, marketdata.ResDay} {
		if b, ok := e.dataCtx.GetBar(inst, r); ok {
			return b.Close
		}
	}
	return decimal.Zero
}

// matchFills runs the Fill Engine against every working order on
// event.Instrument -- the only instrument the current tick's snapshot is
// fresh for -- then routes each proposal through the Cost Engine and into
// the Ledger.
func (e *Engine) matchFills(at time.Time, event marketdata.MarketEvent) error {
	snap := e.snapshot(event)

	var candidates []*orders.Order
	for _, o := range e.Orders.Working(at) {
		if o.Spec.Instrument == event.Instrument {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	proposals := e.Matcher.Match(candidates, snap)
	for _, o := range candidates {
		prop, ok := proposals[o.ID]
		if !ok {
			continue
		}

		pos, _ := e.Ledger.Position(o.Spec.Instrument)
		draft := costengine.FillDraft{
			Instrument:   o.Spec.Instrument,
			Side:         o.Spec.Side,
			Price:        prop.Price,
			Size:         prop.Size,
			ArrivalPrice: e.referencePrice(o.Spec.Instrument),
		}
		result := e.Cost.Apply(draft, costengine.PositionSnapshot{CurrentQty: pos.Quantity})

		execDelay := e.Latency.ExecutionDelay()
		e.Monitor.RecordExecution(execDelay, at)

		fill := orders.Fill{
			OrderID:      o.ID,
			Timestamp:    at,
			Price:        result.Price,
			Size:         prop.Size,
			Commission:   result.Commission,
			SlippageBps:  prop.SlippageBps,
			ArrivalPrice: draft.ArrivalPrice,
			MarketBid:    snap.Bid,
			MarketAsk:    snap.Ask,
			MarketLast:   snap.Last,
		}

		if err := e.Orders.ApplyFill(o.ID, fill, at); err != nil {
			return fmt.Errorf("engine: apply fill to order manager: %w", err)
		}
		if err := e.Ledger.ApplyFill(o, fill, at); err != nil {
			return err
		}
		e.Ledger.MarkToMarket(o.Spec.Instrument, result.Price, at)

		if _, err := e.Log.Append(at, eventlog.KindFill, map[string]any{
			"order_id":   o.ID,
			"price":      fill.Price.String(),
			"size":       fill.Size.String(),
			"commission": fill.Commission.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) snapshot(event marketdata.MarketEvent) fillengine.MarketSnapshot {
	snap := fillengine.MarketSnapshot{Timestamp: event.Timestamp}

	if q, ok := e.dataCtx.LatestQuote(event.Instrument); ok {
		snap.HasQuote = true
		snap.Bid = q.Bid
		snap.Ask = q.Ask
	}
	if t, ok := e.dataCtx.LatestTrade(event.Instrument); ok {
		snap.HasTrade = true
		snap.Last = t.Price
		snap.TradeSize = t.Size
	}
	if event.Kind == marketdata.EventBar && event.Bar != nil {
		snap.HasBar = true
		snap.BarOpen = event.Bar.Open
		snap.BarClose = event.Bar.Close
		snap.BarHigh = event.Bar.High
		snap.BarLow = event.Bar.Low
	}
	return snap
}
