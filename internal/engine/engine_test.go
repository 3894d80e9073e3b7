package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"simulor/libs/calendar"
	"simulor/libs/costengine"
	"simulor/libs/eventlog"
	"simulor/libs/fillengine"
	"simulor/libs/latency"
	"simulor/libs/ledger"
	"simulor/libs/marketdata"
	"simulor/libs/microstructure"
	"simulor/libs/orders"
	"simulor/libs/strategies"
	"simulor/libs/testkit"

	"github.com/shopspring/decimal"
)

// buyOnceAlpha emits one long signal on the first bar it observes, then
// stays silent.
type buyOnceAlpha struct{ fired bool }

func (a *buyOnceAlpha) OnData(_ strategies.PipelineContext, _ marketdata.MarketEvent, universe []marketdata.Instrument) ([]strategies.Signal, error) {
	if a.fired || len(universe) == 0 {
		return nil, nil
	}
	a.fired = true
	return []strategies.Signal{{Instrument: universe[0], Strength: 1, Confidence: 1}}, nil
}

type staticUniverse struct{ instruments []marketdata.Instrument }

func (u staticUniverse) SelectUniverse(strategies.PipelineContext) ([]marketdata.Instrument, error) {
	return u.instruments, nil
}

// fullWeightConstruction assigns a fixed weight to any instrument it
// receives a signal for and retains that target on subsequent calls with
// no new signals, mirroring how a real PortfolioConstruction holds a
// position open between rebalance signals instead of flattening it.
type fullWeightConstruction struct {
	targets strategies.TargetPortfolio
}

func (c *fullWeightConstruction) CreateTargets(_ strategies.PipelineContext, signals []strategies.Signal) (strategies.TargetPortfolio, error) {
	if c.targets == nil {
		c.targets = strategies.TargetPortfolio{}
	}
	for _, s := range signals {
		c.targets[s.Instrument] = 0.5
	}
	out := strategies.TargetPortfolio{}
	for k, v := range c.targets {
		out[k] = v
	}
	return out, nil
}

type passthroughRisk struct{}

func (passthroughRisk) ApplyRisk(_ strategies.PipelineContext, preRisk strategies.TargetPortfolio) (strategies.TargetPortfolio, error) {
	return preRisk, nil
}

func buildLedgerBackedEngine(t *testing.T, logPath string) (*Engine, marketdata.Instrument) {
	t.Helper()

	aapl := marketdata.Instrument{Symbol: "AAPL", Class: marketdata.Equity}
	cal := calendar.NewMarketCalendar(map[calendar.Venue]calendar.VenueSchedule{
		"NYSE": calendar.DefaultEquitySchedule(),
	})

	data := marketdata.NewDataContext(100, nil)
	led := ledger.New(decimal.NewFromInt(100000), "USD", ledger.CashAccountType, ledger.SettleT0, cal, "NYSE")
	mgr := orders.NewManager(led, nil)
	matcher := &fillengine.Matcher{Policy: fillengine.Instant{}}
	cost := costengine.NewEngine(-2)
	streams := latency.NewStreams(1, latency.Fixed{Delay: 0}, latency.Fixed{Delay: 0}, latency.Fixed{Delay: 0})
	monitor := latency.NewMonitor(microstructure.DefaultLatencyTrackerConfig())

	log, err := eventlog.Open(logPath, func() time.Time { return time.Unix(0, 0) })
	if err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}

	sched := NewScheduler(cal)
	filter := NewSubscriptionFilter()

	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	bars := []marketdata.MarketEvent{
		bar(aapl, t0, marketdata.ResMinute),
		bar(aapl, t0.Add(time.Minute), marketdata.ResMinute),
		bar(aapl, t0.Add(2*time.Minute), marketdata.ResMinute),
	}
	src := chanOf(bars...)
	clock := NewClock(cal, "NYSE", src)

	e := New(clock, filter, sched, data, mgr, led, matcher, cost, streams, monitor, log)

	strat := &strategies.Strategy{
		ID:        "buy-once",
		Universe:  staticUniverse{instruments: []marketdata.Instrument{aapl}},
		Alpha:     &buyOnceAlpha{},
		Construct: &fullWeightConstruction{},
		Risk:      passthroughRisk{},
		Execute:   strategies.DiffExecution{Resolution: marketdata.ResMinute},
	}
	e.AddStrategy(strat, []marketdata.Handle{{Instrument: aapl, Resolution: marketdata.ResMinute}})

	return e, aapl
}

func TestEngineRunFillsAnOrderAndUpdatesTheLedger(t *testing.T) {
	dir := t.TempDir()
	e, aapl := buildLedgerBackedEngine(t, filepath.Join(dir, "run.eventlog"))

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pos, ok := e.Ledger.Position(aapl)
	if !ok || pos.Quantity.IsZero() {
		t.Fatalf("expected a non-zero AAPL position after the run, got %+v (ok=%v)", pos, ok)
	}
	if pos.Quantity.Sign() <= 0 {
		t.Fatalf("expected a long position, got quantity %s", pos.Quantity)
	}

	records, err := eventlog.ReadAll(filepath.Join(dir, "run.eventlog"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var sawSubmit, sawFill bool
	for _, r := range records {
		switch r.Kind {
		case eventlog.KindOrderSubmit:
			sawSubmit = true
		case eventlog.KindFill:
			sawFill = true
		}
	}
	if !sawSubmit || !sawFill {
		t.Fatalf("expected both an order-submit and a fill record in the event log, got %d records", len(records))
	}
}

func TestEngineRunIsDeterministicGivenTheSameSeed(t *testing.T) {
	var aapl marketdata.Instrument
	run := 0
	testkit.AssertDeterministic(t, func() any {
		run++
		dir := t.TempDir()
		e, inst := buildLedgerBackedEngine(t, filepath.Join(dir, fmt.Sprintf("run%d.eventlog", run)))
		aapl = inst
		if err := e.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		pos, _ := e.Ledger.Position(aapl)
		return struct {
			Quantity string
			Entry    string
		}{pos.Quantity.String(), pos.AvgEntryPrice.String()}
	})
}
