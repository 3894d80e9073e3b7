// Package config loads the single RunConfig JSON document that fully
// parameterizes a backtest run: everything the engine needs to reproduce a
// run byte-for-byte given the same seed lives here, not scattered across
// flags or environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"simulor/libs/calendar"
	"simulor/libs/ledger"
)

// ExecutionMode selects what the broker boundary does with order flow.
type ExecutionMode string

const (
	ModeBacktest ExecutionMode = "backtest"
	ModePaper    ExecutionMode = "paper"
	ModeLive     ExecutionMode = "live"
)

// FillPolicyKind names one of the five fill models in libs/fillengine.
type FillPolicyKind string

const (
	FillInstant      FillPolicyKind = "instant"
	FillSpreadAware  FillPolicyKind = "spread_aware"
	FillTradeTape    FillPolicyKind = "trade_tape"
	FillOrderBook    FillPolicyKind = "order_book"
	FillProbabilistic FillPolicyKind = "probabilistic"
)

// BarFillPrice names which bar field a bar-resolution fill uses. It is
// parsed and defaulted here, but cmd/backtest does not pass it to the
// engine: bar-resolution fills always use the bar close.
type BarFillPrice string

const (
	BarFillOpen  BarFillPrice = "open"
	BarFillClose BarFillPrice = "close"
)

// WarmupPolicy records how many bars of a given resolution must be
// observed before the strategy pipeline may submit orders. cmd/backtest
// parses it but does not apply it; the engine's warm-up gate is each
// strategy's WarmupBars, counted over every event routed to that strategy.
type WarmupPolicy struct {
	Resolution string `json:"resolution"`
	Bars       int    `json:"bars"`
}

// FillPolicyConfig names the fill model and carries its parameters as a
// raw JSON blob, decoded by the concrete policy constructor the engine
// selects for Kind.
type FillPolicyConfig struct {
	Kind       FillPolicyKind  `json:"kind"`
	BarFill    BarFillPrice    `json:"barFillPrice"`
	Parameters json.RawMessage `json:"parameters"`
}

// CostPolicyConfig names the commission/fee/slippage components to wire
// into a libs/costengine.Engine, each identified by string and configured
// via its own parameter blob.
type CostPolicyConfig struct {
	Commission json.RawMessage `json:"commission"`
	Fees       json.RawMessage `json:"fees"`
	Slippage   json.RawMessage `json:"slippage"`
}

// LatencyPolicyConfig configures the three independent libs/latency
// distributions by name and parameters.
type LatencyPolicyConfig struct {
	OrderTransmission json.RawMessage `json:"orderTransmission"`
	MarketData        json.RawMessage `json:"marketData"`
	Execution         json.RawMessage `json:"execution"`
}

// DataSourceConfig names one CSV-backed market data feed the engine's
// Clock subscribes to.
type DataSourceConfig struct {
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"` // "tick", "minute", "hour", "day"
	Path       string `json:"path"`
}

// StrategyConfig selects a strategies.Registry entry and the instrument(s)
// it trades.
type StrategyConfig struct {
	ID         string   `json:"id"`
	Symbols    []string `json:"symbols"`
	Resolution string   `json:"resolution"`
	// RebalanceDaily controls how often UniverseSelection re-runs. false
	// (the default) reuses the bootstrap universe for the life of the run;
	// true re-runs it once per trading day at the session open.
	RebalanceDaily bool `json:"rebalanceDaily"`
}

// RunConfig is the complete, self-contained description of one backtest
// run: two runs built from byte-identical RunConfig JSON and the same
// master seed must reproduce byte-identical event logs.
type RunConfig struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	CalendarVenue calendar.Venue `json:"calendarVenue"`

	Mode        ExecutionMode        `json:"mode"`
	Settlement  ledger.SettlementMode `json:"settlement"`
	AccountType ledger.AccountType    `json:"accountType"`
	Capital     string               `json:"capital"` // decimal string, parsed by the caller
	Currency    string               `json:"currency"`

	FillPolicy    FillPolicyConfig    `json:"fillPolicy"`
	CostPolicy    CostPolicyConfig    `json:"costPolicy"`
	LatencyPolicy LatencyPolicyConfig `json:"latencyPolicy"`

	RiskPolicyPath string `json:"riskPolicyPath"` // empty uses risk.DefaultPolicy

	// ShortBorrowDailyRate and OvernightFinancingDailyRate are decimal
	// strings applied at each session close (see Engine.SessionClose).
	// Empty means zero -- no accrual.
	ShortBorrowDailyRate        string `json:"shortBorrowDailyRate"`
	OvernightFinancingDailyRate string `json:"overnightFinancingDailyRate"`

	DataSources []DataSourceConfig `json:"dataSources"`
	Strategy    StrategyConfig     `json:"strategy"`

	MasterSeed int64          `json:"masterSeed"`
	Warmup     []WarmupPolicy `json:"warmup"`

	EventLogPath string `json:"eventLogPath"`
}

// Load reads and decodes a RunConfig from path, applying defaults for any
// field the document omits. Unknown fields are rejected: a typo in a
// hand-edited config document should fail loudly, not silently no-op.
func Load(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg RunConfig
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return RunConfig{}, fmt.Errorf("config: %q: %w", path, err)
	}

	return cfg, nil
}

func applyDefaults(cfg *RunConfig) {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBacktest
	}
	if cfg.FillPolicy.Kind == "" {
		cfg.FillPolicy.Kind = FillSpreadAware
	}
	if cfg.FillPolicy.BarFill == "" {
		cfg.FillPolicy.BarFill = BarFillClose
	}
	if cfg.EventLogPath == "" {
		cfg.EventLogPath = "run.eventlog"
	}
}

func validate(cfg RunConfig) error {
	if cfg.Start.IsZero() || cfg.End.IsZero() {
		return fmt.Errorf("start and end timestamps are required")
	}
	if !cfg.End.After(cfg.Start) {
		return fmt.Errorf("end must be after start")
	}
	if cfg.CalendarVenue == "" {
		return fmt.Errorf("calendarVenue is required")
	}
	if cfg.Capital == "" {
		return fmt.Errorf("capital is required")
	}
	switch cfg.FillPolicy.Kind {
	case FillInstant, FillSpreadAware, FillTradeTape, FillOrderBook, FillProbabilistic:
	default:
		return fmt.Errorf("unknown fill policy kind %q", cfg.FillPolicy.Kind)
	}
	return nil
}
