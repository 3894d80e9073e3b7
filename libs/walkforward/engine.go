// Package walkforward implements rolling out-of-sample (OOS) validation to
// detect strategy overfitting, one of the external collaborators that
// invokes the core simulation engine many times across sliding date
// windows rather than a component of the engine itself.
//
// A walk-forward test splits a historical date range into overlapping
// windows. Each window has an in-sample (IS) period for calibration and an
// out-of-sample (OOS) period for forward testing. The harness runs a fresh,
// independent simulation instance for each OOS slice, then aggregates the
// results.
//
// The key metric is the WF Efficiency Ratio (WFER):
//
//	WFER = mean(OOS annualised return) / IS annualised return
//
// A WFER > 0.5 is generally considered sufficient for a strategy to be
// deployable. A WFER < 0 means the OOS periods lost money.
package walkforward

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"
)

// ─── RunResult / RunFunc ──────────────────────────────────────────────────────

// RunResult holds the outcome metrics of one simulation instance, however
// the caller chooses to derive them (from a ledger snapshot, an event log
// replay, or both). walkforward never touches internal/engine directly — a
// RunFunc owns constructing and running an instance so every window stays a
// fully independent simulation with its own RNG derivation, which is what
// lets sweeps run data-parallel with no shared mutable state.
type RunResult struct {
	TotalTrades  int
	WinRate      float64
	TotalReturn  float64 // absolute return over the run, same units as InitialCapital
	MaxDrawdown  float64
	SharpeRatio  float64
	FinalCapital float64
}

// RunFunc executes one independent simulation instance over [start, end]
// seeded with seed and reports its outcome.
type RunFunc func(ctx context.Context, start, end time.Time, seed int64) (RunResult, error)

// ─── Config ───────────────────────────────────────────────────────────────────

// Config defines a single walk-forward validation run.
type Config struct {
	// FullStart / FullEnd bound the entire date range to split.
	FullStart time.Time
	FullEnd   time.Time
	// ISPeriod is the length of each in-sample window.
	// Defaults to 252 calendar days (~1 trading year) when zero.
	ISPeriod time.Duration
	// OOSPeriod is the length of each out-of-sample window.
	// Defaults to 63 calendar days (~1 trading quarter) when zero.
	OOSPeriod time.Duration
	// InitialCapital defaults to 100 000 when zero. Only used to express
	// TotalReturn as a fraction for annualisation; RunFunc owns actual
	// capital accounting.
	InitialCapital float64
	// Seed derives the per-window master seed: window i uses Seed+i, so a
	// sweep that reruns the same Config reproduces byte-identical windows.
	Seed int64
}

// ─── Window ───────────────────────────────────────────────────────────────────

// Window describes one IS/OOS pair.
type Window struct {
	Index    int
	ISStart  time.Time
	ISEnd    time.Time
	OOSStart time.Time
	OOSEnd   time.Time
}

// ─── WindowResult ─────────────────────────────────────────────────────────────

// WindowResult holds the outcomes for one walk-forward window.
type WindowResult struct {
	Window
	TotalTrades   int
	WinRate       float64
	TotalReturn   float64
	AnnualisedRet float64
	MaxDrawdown   float64
	SharpeRatio   float64
	FinalCapital  float64
}

// ─── Result ───────────────────────────────────────────────────────────────────

// Result is the aggregate output of a walk-forward validation run.
type Result struct {
	Config Config

	// Windows contains per-window OOS results in chronological order.
	Windows []WindowResult

	// ISResult is the full IS range run, used as the WFER denominator.
	ISResult *RunResult

	MeanOOSReturn  float64 // mean of AnnualisedRet across windows
	WFER           float64 // WF Efficiency Ratio = MeanOOSReturn / IS annualised return
	PassRate       float64 // fraction of windows with positive OOS return
	TotalOOSTrades int

	// StabilityScore in [0, 1]: fraction of windows beating 0 return,
	// weighted by trade count.
	StabilityScore float64
}

// ─── Engine ───────────────────────────────────────────────────────────────────

// Engine orchestrates walk-forward validation over an arbitrary simulation
// instance factory.
type Engine struct {
	run RunFunc
}

// New creates a new walk-forward Engine driven by run.
func New(run RunFunc) *Engine {
	return &Engine{run: run}
}

// Run executes a full walk-forward validation.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.ISPeriod == 0 {
		cfg.ISPeriod = 252 * 24 * time.Hour
	}
	if cfg.OOSPeriod == 0 {
		cfg.OOSPeriod = 63 * 24 * time.Hour
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100_000
	}

	log.Printf("[wf] starting IS=%v OOS=%v range=%s→%s",
		cfg.ISPeriod, cfg.OOSPeriod,
		cfg.FullStart.Format("2006-01-02"), cfg.FullEnd.Format("2006-01-02"))

	windows := buildWindows(cfg.FullStart, cfg.FullEnd, cfg.ISPeriod, cfg.OOSPeriod)
	if len(windows) == 0 {
		return nil, fmt.Errorf("walkforward: date range too short to form a single IS+OOS window (need ≥%v)",
			cfg.ISPeriod+cfg.OOSPeriod)
	}

	// ── Full IS run (reference) ────────────────────────────────────────────
	isEnd := windows[len(windows)-1].ISEnd
	isRef, err := e.run(ctx, cfg.FullStart, isEnd, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("walkforward: IS reference run: %w", err)
	}
	isAnnualised := annualise(isRef.TotalReturn/cfg.InitialCapital, cfg.FullStart, isEnd)

	// ── OOS windows ───────────────────────────────────────────────────────
	var winResults []WindowResult
	for _, w := range windows {
		res, err := e.run(ctx, w.OOSStart, w.OOSEnd, cfg.Seed+int64(w.Index))
		if err != nil {
			log.Printf("[wf] window %d OOS run failed: %v (skipping)", w.Index, err)
			continue
		}

		oosRet := res.TotalReturn / cfg.InitialCapital
		oosAnn := annualise(oosRet, w.OOSStart, w.OOSEnd)

		wr := WindowResult{
			Window:        w,
			TotalTrades:   res.TotalTrades,
			WinRate:       res.WinRate,
			TotalReturn:   res.TotalReturn,
			AnnualisedRet: oosAnn,
			MaxDrawdown:   res.MaxDrawdown,
			SharpeRatio:   res.SharpeRatio,
			FinalCapital:  res.FinalCapital,
		}
		winResults = append(winResults, wr)

		log.Printf("[wf] window %d OOS %s→%s trades=%d annRet=%.2f%%",
			w.Index, w.OOSStart.Format("2006-01-02"), w.OOSEnd.Format("2006-01-02"),
			res.TotalTrades, oosAnn*100)
	}

	if len(winResults) == 0 {
		return nil, fmt.Errorf("walkforward: all OOS windows failed to produce results")
	}

	result := &Result{
		Config:   cfg,
		Windows:  winResults,
		ISResult: &isRef,
	}

	var sumRet float64
	var sumTrades int
	var positiveWindows int
	var weightedPositive float64
	var totalWeight float64

	for _, w := range winResults {
		sumRet += w.AnnualisedRet
		sumTrades += w.TotalTrades
		if w.AnnualisedRet > 0 {
			positiveWindows++
		}
		weight := math.Max(float64(w.TotalTrades), 1)
		totalWeight += weight
		if w.AnnualisedRet > 0 {
			weightedPositive += weight
		}
	}

	result.MeanOOSReturn = sumRet / float64(len(winResults))
	result.TotalOOSTrades = sumTrades
	result.PassRate = float64(positiveWindows) / float64(len(winResults))
	if totalWeight > 0 {
		result.StabilityScore = weightedPositive / totalWeight
	}
	if isAnnualised != 0 {
		result.WFER = result.MeanOOSReturn / isAnnualised
	}

	log.Printf("[wf] done windows=%d WFER=%.2f passRate=%.0f%% stabilityScore=%.2f",
		len(winResults), result.WFER, result.PassRate*100, result.StabilityScore)

	return result, nil
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// buildWindows generates IS/OOS window pairs anchored to fullStart.
// Each subsequent window slides forward by OOSPeriod.
func buildWindows(fullStart, fullEnd time.Time, is, oos time.Duration) []Window {
	var windows []Window
	idx := 0
	for {
		isStart := fullStart.Add(time.Duration(idx) * oos)
		isEnd := isStart.Add(is)
		oosStart := isEnd
		oosEnd := oosStart.Add(oos)

		if oosEnd.After(fullEnd) {
			break
		}

		windows = append(windows, Window{
			Index:    idx,
			ISStart:  isStart,
			ISEnd:    isEnd,
			OOSStart: oosStart,
			OOSEnd:   oosEnd,
		})
		idx++
	}
	return windows
}

// annualise converts a fractional return over a date span to an annualised rate.
// The calendar conversion uses 252 trading days ≈ 1 year.
func annualise(ret float64, start, end time.Time) float64 {
	days := end.Sub(start).Hours() / 24
	if days <= 0 {
		return 0
	}
	tradingYears := days / 252
	if tradingYears <= 0 {
		return 0
	}
	return math.Pow(1+ret, 1/tradingYears) - 1
}

// WFERVerdict returns a human-readable summary of the walk-forward quality.
func WFERVerdict(r *Result) string {
	switch {
	case r.WFER >= 0.7:
		return "EXCELLENT — strategy transfers to OOS data well"
	case r.WFER >= 0.5:
		return "GOOD — strategy is deployable"
	case r.WFER >= 0.0:
		return "MARGINAL — live performance likely to underperform IS"
	default:
		return "FAIL — strategy loses money out-of-sample; do not deploy"
	}
}
