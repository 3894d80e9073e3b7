package latency

import (
	"time"

	"simulor/libs/microstructure"
)

// Monitor wraps a microstructure.LatencyTracker to record the delays
// Streams draws, exposing percentile stats and a trading-pause signal
// the engine can check before routing new orders. This is purely
// observational — it never feeds back into Streams' own draws, keeping
// delay generation reproducible regardless of what gets recorded.
type Monitor struct {
	tracker *microstructure.LatencyTracker
}

// NewMonitor builds a Monitor with the given pause thresholds.
func NewMonitor(cfg microstructure.LatencyTrackerConfig) *Monitor {
	return &Monitor{tracker: microstructure.NewLatencyTracker(cfg)}
}

// RecordOrder records an observed order-transmission delay.
func (m *Monitor) RecordOrder(d time.Duration, at time.Time) {
	m.tracker.Record(microstructure.LatencyObservation{Category: "order_submit", Latency: d, RecordedAt: at})
}

// RecordMarketData records an observed market-data dissemination delay.
func (m *Monitor) RecordMarketData(d time.Duration, at time.Time) {
	m.tracker.Record(microstructure.LatencyObservation{Category: "market_data", Latency: d, RecordedAt: at})
}

// RecordExecution records an observed execution delay.
func (m *Monitor) RecordExecution(d time.Duration, at time.Time) {
	m.tracker.Record(microstructure.LatencyObservation{Category: "execution", Latency: d, RecordedAt: at})
}

// Paused reports whether any tracked category has breached its P99
// pause threshold, and why.
func (m *Monitor) Paused() (bool, string) {
	return m.tracker.TradingPaused()
}

// Stats returns percentile latency stats for one of the three
// categories: "order_submit", "market_data", "execution".
func (m *Monitor) Stats(category string) microstructure.LatencyStats {
	return m.tracker.Stats(category)
}
