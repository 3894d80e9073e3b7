package marketdata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

var aapl = Instrument{Symbol: "AAPL", Class: Equity}

// TestGetBarHidesABarUntilItsEffectiveTime is the structural defense
// against look-ahead bias the Data Context claims to provide: a bar whose
// Timestamp has arrived is still invisible until Timestamp+interval, the
// instant the bar's information is actually knowable.
func TestGetBarHidesABarUntilItsEffectiveTime(t *testing.T) {
	dc := NewDataContext(10, nil)
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	bar := Bar{Timestamp: start, Instrument: aapl, Resolution: ResMinute, HasTrade: true, Open: d("100"), High: d("101"), Low: d("99"), Close: d("100.5"), Volume: d("1000")}

	dc.Advance(start)
	dc.PutBar(bar)

	if _, ok := dc.GetBar(aapl, ResMinute); ok {
		t.Fatalf("bar should not be visible before its effective time (start + interval)")
	}

	dc.Advance(bar.EffectiveAt().Add(-time.Nanosecond))
	if _, ok := dc.GetBar(aapl, ResMinute); ok {
		t.Fatalf("bar should not be visible one nanosecond before its effective time")
	}

	dc.Advance(bar.EffectiveAt())
	got, ok := dc.GetBar(aapl, ResMinute)
	if !ok {
		t.Fatalf("expected the bar to be visible at its effective time")
	}
	if !got.Close.Equal(d("100.5")) {
		t.Fatalf("got close %s, want 100.5", got.Close)
	}
}

func TestGetBarsOnlyReturnsVisibleBarsOldestFirst(t *testing.T) {
	dc := NewDataContext(10, nil)
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	bars := []Bar{
		{Timestamp: start, Instrument: aapl, Resolution: ResMinute, HasTrade: true, Open: d("1"), High: d("1"), Low: d("1"), Close: d("1"), Volume: d("1")},
		{Timestamp: start.Add(time.Minute), Instrument: aapl, Resolution: ResMinute, HasTrade: true, Open: d("2"), High: d("2"), Low: d("2"), Close: d("2"), Volume: d("1")},
		{Timestamp: start.Add(2 * time.Minute), Instrument: aapl, Resolution: ResMinute, HasTrade: true, Open: d("3"), High: d("3"), Low: d("3"), Close: d("3"), Volume: d("1")},
	}
	for _, b := range bars {
		dc.PutBar(b)
	}

	// Only the first two bars' effective times (start+1m, start+2m) have
	// arrived; the third (effective at start+3m) has not.
	dc.Advance(start.Add(2 * time.Minute))
	visible := dc.GetBars(aapl, ResMinute, 10)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible bars, got %d", len(visible))
	}
	if !visible[0].Close.Equal(d("1")) || !visible[1].Close.Equal(d("2")) {
		t.Fatalf("expected oldest-to-newest order, got closes %s, %s", visible[0].Close, visible[1].Close)
	}
}

func TestPutBarEvictsOldestBeyondRingSize(t *testing.T) {
	dc := NewDataContext(2, nil)
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		dc.PutBar(Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute), Instrument: aapl, Resolution: ResMinute,
			HasTrade: true, Open: d("1"), High: d("1"), Low: d("1"), Close: decimal.NewFromInt(int64(i)), Volume: d("1"),
		})
	}
	dc.Advance(start.Add(10 * time.Minute))

	visible := dc.GetBars(aapl, ResMinute, 10)
	if len(visible) != 2 {
		t.Fatalf("expected the ring to hold only 2 bars, got %d", len(visible))
	}
	if !visible[0].Close.Equal(decimal.NewFromInt(1)) || !visible[1].Close.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected the oldest bar to have been evicted, got closes %s, %s", visible[0].Close, visible[1].Close)
	}
}

func TestLatestQuoteAndTradeReturnMostRecentIngested(t *testing.T) {
	dc := NewDataContext(10, nil)
	now := time.Now()

	dc.PutQuote(QuoteTick{Timestamp: now, Instrument: aapl, Bid: d("99"), Ask: d("101")})
	dc.PutQuote(QuoteTick{Timestamp: now.Add(time.Second), Instrument: aapl, Bid: d("99.5"), Ask: d("100.5")})

	q, ok := dc.LatestQuote(aapl)
	if !ok {
		t.Fatalf("expected a quote")
	}
	if !q.Bid.Equal(d("99.5")) {
		t.Fatalf("expected the most recently ingested quote, got bid %s", q.Bid)
	}

	dc.PutTrade(TradeTick{Timestamp: now, Instrument: aapl, Price: d("100"), Size: d("10")})
	tr, ok := dc.LatestTrade(aapl)
	if !ok || !tr.Price.Equal(d("100")) {
		t.Fatalf("expected the ingested trade, got %+v (ok=%v)", tr, ok)
	}
}
