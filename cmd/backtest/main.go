// cmd/backtest runs a single deterministic backtest from a RunConfig JSON
// document end to end: loads historical bars, drives the engine's event
// loop, and leaves a sealed event log behind for later analysis.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"simulor/internal/config"
	"simulor/internal/engine"
	"simulor/libs/calendar"
	"simulor/libs/costengine"
	"simulor/libs/eventlog"
	"simulor/libs/fillengine"
	"simulor/libs/latency"
	"simulor/libs/ledger"
	"simulor/libs/marketdata"
	"simulor/libs/microstructure"
	"simulor/libs/observability"
	"simulor/libs/orders"
	"simulor/libs/risk"
	"simulor/libs/strategies"

	"github.com/shopspring/decimal"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the run config JSON document")
	flag.Parse()

	if configPath == "" {
		fmt.Println("Missing -config")
		os.Exit(2)
	}

	if err := run(configPath); err != nil {
		log.Fatalf("backtest: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := observability.WithRunInfo(context.Background(), observability.RunInfo{RunID: observability.NewRunID()})

	observability.LogEvent(ctx, "info", "backtest_starting", map[string]any{
		"version":    version,
		"build_time": buildTime,
	})
	observability.LogEvent(ctx, "info", "run_window", map[string]any{
		"start": cfg.Start.Format(time.RFC3339),
		"end":   cfg.End.Format(time.RFC3339),
		"venue": cfg.CalendarVenue,
		"seed":  cfg.MasterSeed,
	})

	cal := calendar.NewMarketCalendar(map[calendar.Venue]calendar.VenueSchedule{
		cfg.CalendarVenue: calendar.DefaultEquitySchedule(),
	})

	capital, err := decimal.NewFromString(cfg.Capital)
	if err != nil {
		return fmt.Errorf("parse capital: %w", err)
	}
	led := ledger.New(capital, cfg.Currency, cfg.AccountType, cfg.Settlement, cal, cfg.CalendarVenue)
	observability.LogEvent(ctx, "info", "ledger_opened", map[string]any{"capital": cfg.Capital, "currency": cfg.Currency})

	policy, err := risk.LoadPolicy(cfg.RiskPolicyPath)
	if err != nil {
		return fmt.Errorf("load risk policy: %w", err)
	}
	riskModel := risk.NewModel(policy)

	mgr := orders.NewManager(led, nil)

	rng := rand.New(rand.NewSource(cfg.MasterSeed))
	fillPolicy, err := buildFillPolicy(cfg.FillPolicy, rng)
	if err != nil {
		return fmt.Errorf("build fill policy: %w", err)
	}
	matcher := &fillengine.Matcher{Policy: fillPolicy}
	observability.LogEvent(ctx, "info", "fill_policy_selected", map[string]any{"kind": cfg.FillPolicy.Kind})

	cost, err := buildCostEngine(cfg.CostPolicy)
	if err != nil {
		return fmt.Errorf("build cost engine: %w", err)
	}

	streams, err := buildLatencyStreams(cfg.LatencyPolicy, cfg.MasterSeed)
	if err != nil {
		return fmt.Errorf("build latency streams: %w", err)
	}
	monitor := latency.NewMonitor(microstructure.DefaultLatencyTrackerConfig())

	// A fixed wall clock keeps WallTime, and so the whole log, identical
	// across runs of the same config and seed.
	logFile, err := eventlog.Open(cfg.EventLogPath, func() time.Time { return time.Unix(0, 0).UTC() })
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	observability.LogEvent(ctx, "info", "event_log_opened", map[string]any{"path": cfg.EventLogPath})

	sched := engine.NewScheduler(cal)
	filter := engine.NewSubscriptionFilter()
	data := marketdata.NewDataContext(500, nil)

	sources, universe, err := loadDataSources(ctx, cfg, data)
	if err != nil {
		return fmt.Errorf("load data sources: %w", err)
	}
	observability.LogEvent(ctx, "info", "data_sources_loaded", map[string]any{
		"sources":     len(sources),
		"instruments": len(universe),
	})

	clock := engine.NewClock(cal, cfg.CalendarVenue, sources...)
	eng := engine.New(clock, filter, sched, data, mgr, led, matcher, cost, streams, monitor, logFile)

	eng.ShortBorrowDailyRate, err = decimalOrZero(cfg.ShortBorrowDailyRate)
	if err != nil {
		return fmt.Errorf("parse shortBorrowDailyRate: %w", err)
	}
	eng.OvernightFinancingDailyRate, err = decimalOrZero(cfg.OvernightFinancingDailyRate)
	if err != nil {
		return fmt.Errorf("parse overnightFinancingDailyRate: %w", err)
	}

	strat, handles, err := buildStrategy(cfg.Strategy, universe)
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}
	strat.Risk = riskModel
	eng.AddStrategy(strat, handles)
	observability.LogEvent(ctx, "info", "strategy_attached", map[string]any{
		"id":          strat.ID,
		"instruments": len(universe),
	})

	if err := scheduleDailyTasks(sched, cal, cfg, eng, strat.ID); err != nil {
		return fmt.Errorf("schedule daily tasks: %w", err)
	}

	observability.LogEvent(ctx, "info", "run_started", nil)
	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	positions := led.AllPositions()
	observability.LogEvent(ctx, "info", "run_complete", map[string]any{
		"net_liquidation": led.NetLiquidation().String(),
		"open_positions":  len(positions),
	})
	for _, p := range positions {
		observability.LogEvent(ctx, "info", "final_position", map[string]any{
			"instrument": p.Instrument,
			"quantity":   p.Quantity.String(),
			"avg_entry":  p.AvgEntryPrice.String(),
			"unrealized": p.UnrealizedPnL().String(),
		})
	}

	var metricsBuf bytes.Buffer
	runSummaryMetrics(led, positions).WriteText(&metricsBuf)
	fmt.Print(metricsBuf.String())
	return nil
}

// runSummaryMetrics builds a small Prometheus-format snapshot of the run's
// final book state. cmd/backtest has no long-lived server to scrape, so it
// is printed once at exit rather than served over HTTP.
func runSummaryMetrics(led *ledger.Ledger, positions []ledger.Position) *observability.Registry {
	reg := observability.NewRegistry()
	liquidation := reg.NewGauge("backtest_net_liquidation", "final net liquidation value of the ledger")
	netLiq, _ := led.NetLiquidation().Float64()
	liquidation.Set(netLiq)
	reg.NewGauge("backtest_open_positions", "count of open positions at run end").Set(float64(len(positions)))
	return reg
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// scheduleDailyTasks arms the Scheduler with the run's recurring work:
// Engine.SessionClose at every session close (settlement advancement,
// borrow/financing accrual, end-of-day mark-to-market), and, if the
// strategy config asks for it, a daily universe rebalance at session open.
// Both are session-bound: a callback landing on a weekend or holiday is
// skipped forward to the next trading day.
func scheduleDailyTasks(sched *engine.Scheduler, cal *calendar.MarketCalendar, cfg config.RunConfig, eng *engine.Engine, strategyID string) error {
	firstClose, err := cal.SessionCloseOn(cfg.Start, cfg.CalendarVenue)
	if err != nil {
		return fmt.Errorf("resolve first session close: %w", err)
	}
	if !firstClose.After(cfg.Start) {
		firstClose = firstClose.AddDate(0, 0, 1)
	}
	sched.Schedule(engine.Callback{
		At:           firstClose,
		Recurrence:   engine.DailyAt,
		SessionBound: true,
		Venue:        cfg.CalendarVenue,
		Fn:           eng.SessionClose,
	})

	if cfg.Strategy.RebalanceDaily {
		firstOpen, err := cal.NextSessionOpen(cfg.Start.Add(-time.Nanosecond), cfg.CalendarVenue)
		if err != nil {
			return fmt.Errorf("resolve first session open: %w", err)
		}
		sched.Schedule(engine.Callback{
			At:           firstOpen,
			Recurrence:   engine.DailyAt,
			SessionBound: true,
			Venue:        cfg.CalendarVenue,
			Fn: func(now time.Time) {
				_ = eng.RebalanceUniverse(strategyID)
			},
		})
	}
	return nil
}

// loadDataSources builds one marketdata.Provider per DataSourceConfig,
// preloads the Data Context with every bar available strictly before
// cfg.Start via Warmup, and returns a clock-ready channel per source
// filtered to [cfg.Start, cfg.End] alongside the resolved instrument
// universe.
func loadDataSources(ctx context.Context, cfg config.RunConfig, data *marketdata.DataContext) ([]<-chan marketdata.MarketEvent, []marketdata.Instrument, error) {
	sources := make([]<-chan marketdata.MarketEvent, 0, len(cfg.DataSources))
	universe := make([]marketdata.Instrument, 0, len(cfg.DataSources))

	for _, src := range cfg.DataSources {
		res, err := parseResolution(src.Resolution)
		if err != nil {
			return nil, nil, fmt.Errorf("data source %s: %w", src.Symbol, err)
		}
		inst := marketdata.Instrument{Symbol: src.Symbol, Class: marketdata.Equity}

		provider, err := marketdata.LoadCSVProvider(src.Path, inst, res)
		if err != nil {
			return nil, nil, fmt.Errorf("data source %s: %w", src.Symbol, err)
		}

		warmup, err := provider.Warmup(ctx, inst, res, cfg.Start)
		if err != nil {
			return nil, nil, fmt.Errorf("data source %s: warmup: %w", src.Symbol, err)
		}
		for _, b := range warmup {
			data.Advance(b.EffectiveAt())
			data.PutBar(b)
		}

		raw, err := provider.Enumerate(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("data source %s: enumerate: %w", src.Symbol, err)
		}
		sources = append(sources, windowed(raw, cfg.Start, cfg.End))
		universe = append(universe, inst)
	}
	return sources, universe, nil
}

// windowed filters a provider's event stream down to [start, end],
// letting the Warmup call own everything strictly before start instead of
// replaying it twice.
func windowed(in <-chan marketdata.MarketEvent, start, end time.Time) <-chan marketdata.MarketEvent {
	out := make(chan marketdata.MarketEvent)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Timestamp.Before(start) || ev.Timestamp.After(end) {
				continue
			}
			out <- ev
		}
	}()
	return out
}

func parseResolution(s string) (marketdata.Resolution, error) {
	switch s {
	case "tick":
		return marketdata.ResTick, nil
	case "minute":
		return marketdata.ResMinute, nil
	case "hour":
		return marketdata.ResHour, nil
	case "day", "":
		return marketdata.ResDay, nil
	default:
		return 0, fmt.Errorf("unknown resolution %q", s)
	}
}

// buildStrategy resolves the configured strategy ID against the built-in
// registry and scopes it to universe.
func buildStrategy(cfg config.StrategyConfig, universe []marketdata.Instrument) (*strategies.Strategy, []marketdata.Handle, error) {
	res, err := parseResolution(cfg.Resolution)
	if err != nil {
		return nil, nil, err
	}

	registry := strategies.NewRegistry()
	if err := registerBuiltins(registry, res); err != nil {
		return nil, nil, err
	}

	id := cfg.ID
	if id == "" {
		id = "ma_crossover"
	}
	strat, err := registry.Get(id)
	if err != nil {
		return nil, nil, err
	}
	strat.ID = id
	strat.Universe = strategies.StaticUniverse{Instruments: universe}

	handles := make([]marketdata.Handle, 0, len(universe))
	for _, inst := range universe {
		handles = append(handles, marketdata.Handle{Instrument: inst, Resolution: res})
	}
	return &strat, handles, nil
}

func registerBuiltins(registry *strategies.Registry, res marketdata.Resolution) error {
	builtins := []strategies.Strategy{
		{
			ID:         "ma_crossover",
			Alpha:      strategies.NewMACrossover(res),
			Construct:  strategies.EqualWeight{GrossTarget: 1.0},
			Execute:    strategies.DiffExecution{Resolution: res},
			WarmupBars: 200,
		},
		{
			ID:         "macd_crossover",
			Alpha:      strategies.NewMACDCrossover(res),
			Construct:  strategies.EqualWeight{GrossTarget: 1.0},
			Execute:    strategies.DiffExecution{Resolution: res},
			WarmupBars: 35,
		},
		{
			ID:         "rsi_momentum",
			Alpha:      strategies.NewRSIMomentum(res),
			Construct:  strategies.ConfidenceWeighted{GrossTarget: 1.0},
			Execute:    strategies.DiffExecution{Resolution: res},
			WarmupBars: 15,
		},
	}
	for _, strat := range builtins {
		if err := registry.Register(strat); err != nil {
			return err
		}
	}
	return nil
}

// fillPolicyParams is the parameter blob for whichever fill policy
// cfg.FillPolicy.Kind names; unused fields for the selected kind are
// simply ignored.
type fillPolicyParams struct {
	LimitSlippageBps  string `json:"limitSlippageBps"`
	ParticipationRate string `json:"participationRate"`
	BaseRate          string `json:"baseRate"`
	Queue             string `json:"queue"`
}

func buildFillPolicy(cfg config.FillPolicyConfig, rng *rand.Rand) (fillengine.Policy, error) {
	var p fillPolicyParams
	if len(cfg.Parameters) > 0 {
		if err := json.Unmarshal(cfg.Parameters, &p); err != nil {
			return nil, fmt.Errorf("fill policy parameters: %w", err)
		}
	}

	switch cfg.Kind {
	case config.FillInstant:
		return fillengine.Instant{}, nil
	case config.FillSpreadAware:
		bps := decimal.Zero
		if p.LimitSlippageBps != "" {
			d, err := decimal.NewFromString(p.LimitSlippageBps)
			if err != nil {
				return nil, err
			}
			bps = d
		}
		return fillengine.SpreadAware{LimitSlippageBps: bps}, nil
	case config.FillTradeTape:
		rate := decimal.NewFromFloat(0.1)
		if p.ParticipationRate != "" {
			d, err := decimal.NewFromString(p.ParticipationRate)
			if err != nil {
				return nil, err
			}
			rate = d
		}
		return fillengine.TradeTape{ParticipationRate: rate}, nil
	case config.FillOrderBook:
		queue := fillengine.QueueBack
		switch p.Queue {
		case "random":
			queue = fillengine.QueueRandom
		case "front":
			queue = fillengine.QueueFront
		}
		return fillengine.NewOrderBook(queue, rng), nil
	case config.FillProbabilistic:
		rate := decimal.NewFromFloat(0.3)
		if p.BaseRate != "" {
			d, err := decimal.NewFromString(p.BaseRate)
			if err != nil {
				return nil, err
			}
			rate = d
		}
		return fillengine.Probabilistic{BaseRate: rate, RNG: rng}, nil
	default:
		return nil, fmt.Errorf("unknown fill policy kind %q", cfg.Kind)
	}
}

func buildCostEngine(cfg config.CostPolicyConfig) (*costengine.Engine, error) {
	ce := costengine.NewEngine(-2)

	commission, err := buildCommission(cfg.Commission)
	if err != nil {
		return nil, fmt.Errorf("commission: %w", err)
	}
	ce.Components = append(ce.Components, commission)

	fees, err := buildFees(cfg.Fees)
	if err != nil {
		return nil, fmt.Errorf("fees: %w", err)
	}
	ce.Components = append(ce.Components, fees...)

	adjusters, err := buildSlippage(cfg.Slippage)
	if err != nil {
		return nil, fmt.Errorf("slippage: %w", err)
	}
	ce.Adjusters = append(ce.Adjusters, adjusters...)

	return ce, nil
}

type commissionParams struct {
	Kind    string `json:"kind"` // "per_share" (default) or "percentage"
	Rate    string `json:"rate"`
	Minimum string `json:"minimum"`
}

func buildCommission(raw json.RawMessage) (costengine.Component, error) {
	rate := decimal.NewFromFloat(0.005)
	minimum := decimal.NewFromInt(1)
	kind := "per_share"

	if len(raw) > 0 {
		var p commissionParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.Kind != "" {
			kind = p.Kind
		}
		if p.Rate != "" {
			d, err := decimal.NewFromString(p.Rate)
			if err != nil {
				return nil, err
			}
			rate = d
		}
		if p.Minimum != "" {
			d, err := decimal.NewFromString(p.Minimum)
			if err != nil {
				return nil, err
			}
			minimum = d
		}
	}

	switch kind {
	case "percentage":
		return costengine.AsComponent(costengine.Percentage{Rate: rate, Minimum: minimum}), nil
	default:
		return costengine.AsComponent(costengine.PerShare{Rate: rate, Minimum: minimum}), nil
	}
}

type feeParams struct {
	ExchangeRate   string `json:"exchangeRate"`
	RegulatoryRate string `json:"regulatoryRate"`
}

func buildFees(raw json.RawMessage) ([]costengine.Component, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var p feeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	var comps []costengine.Component
	if p.ExchangeRate != "" {
		d, err := decimal.NewFromString(p.ExchangeRate)
		if err != nil {
			return nil, err
		}
		comps = append(comps, costengine.ExchangeFee(d))
	}
	if p.RegulatoryRate != "" {
		d, err := decimal.NewFromString(p.RegulatoryRate)
		if err != nil {
			return nil, err
		}
		comps = append(comps, costengine.RegulatoryFee(d))
	}
	return comps, nil
}

type slippageParams struct {
	FixedBps string `json:"fixedBps"`
}

func buildSlippage(raw json.RawMessage) ([]costengine.PriceAdjuster, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var p slippageParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	var adjusters []costengine.PriceAdjuster
	if p.FixedBps != "" {
		d, err := decimal.NewFromString(p.FixedBps)
		if err != nil {
			return nil, err
		}
		adjusters = append(adjusters, costengine.FixedSlippage(d))
	}
	return adjusters, nil
}

func buildLatencyStreams(cfg config.LatencyPolicyConfig, seed int64) (*latency.Streams, error) {
	orderTx, err := buildDistribution(cfg.OrderTransmission)
	if err != nil {
		return nil, fmt.Errorf("orderTransmission: %w", err)
	}
	marketData, err := buildDistribution(cfg.MarketData)
	if err != nil {
		return nil, fmt.Errorf("marketData: %w", err)
	}
	execution, err := buildDistribution(cfg.Execution)
	if err != nil {
		return nil, fmt.Errorf("execution: %w", err)
	}
	return latency.NewStreams(seed, orderTx, marketData, execution), nil
}

type distributionParams struct {
	Kind   string  `json:"kind"` // "fixed" (default), "uniform", "normal", "lognormal", "exponential"
	Delay  string  `json:"delay"`
	Min    string  `json:"min"`
	Max    string  `json:"max"`
	Mean   string  `json:"mean"`
	StdDev string  `json:"stdDev"`
	Mu     float64 `json:"mu"`
	Sigma  float64 `json:"sigma"`
}

func buildDistribution(raw json.RawMessage) (latency.Distribution, error) {
	if len(raw) == 0 {
		return latency.Fixed{}, nil
	}
	var p distributionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	switch p.Kind {
	case "uniform":
		min, err := time.ParseDuration(p.Min)
		if err != nil {
			return nil, err
		}
		max, err := time.ParseDuration(p.Max)
		if err != nil {
			return nil, err
		}
		return latency.Uniform{Min: min, Max: max}, nil
	case "normal":
		mean, err := time.ParseDuration(p.Mean)
		if err != nil {
			return nil, err
		}
		stdDev, err := time.ParseDuration(p.StdDev)
		if err != nil {
			return nil, err
		}
		return latency.Normal{Mean: mean, StdDev: stdDev}, nil
	case "lognormal":
		return latency.LogNormal{Mu: p.Mu, Sigma: p.Sigma}, nil
	case "exponential":
		mean, err := time.ParseDuration(p.Mean)
		if err != nil {
			return nil, err
		}
		return latency.Exponential{Mean: mean}, nil
	default:
		if p.Delay == "" {
			return latency.Fixed{}, nil
		}
		delay, err := time.ParseDuration(p.Delay)
		if err != nil {
			return nil, err
		}
		return latency.Fixed{Delay: delay}, nil
	}
}
