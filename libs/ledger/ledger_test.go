package ledger

import (
	"testing"
	"time"

	"simulor/libs/calendar"
	"simulor/libs/marketdata"
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

var (
	aapl = marketdata.Instrument{Symbol: "AAPL", Class: marketdata.Equity}
	msft = marketdata.Instrument{Symbol: "MSFT", Class: marketdata.Equity}
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func nyseCalendar() *calendar.MarketCalendar {
	return calendar.NewMarketCalendar(map[calendar.Venue]calendar.VenueSchedule{
		"NYSE": calendar.DefaultEquitySchedule(),
	})
}

func buyOrder(inst marketdata.Instrument, size, price string, id string) (*orders.Order, orders.Fill) {
	spec := orders.Spec{Instrument: inst, Side: orders.Buy, Size: d(size), Type: orders.Market}
	o := orders.NewOrder(spec, time.Time{}, 1)
	o.ID = id
	return o, orders.Fill{OrderID: id, Price: d(price), Size: d(size)}
}

func sellOrder(inst marketdata.Instrument, size, price string, id string) (*orders.Order, orders.Fill) {
	spec := orders.Spec{Instrument: inst, Side: orders.Sell, Size: d(size), Type: orders.Market}
	o := orders.NewOrder(spec, time.Time{}, 1)
	o.ID = id
	return o, orders.Fill{OrderID: id, Price: d(price), Size: d(size)}
}

// mondayAt returns a UTC Monday so AdvanceBusinessDays math stays clear of
// weekend boundaries in these tests.
func mondayAt(h int) time.Time {
	return time.Date(2024, 1, 8, h, 0, 0, 0, time.UTC)
}

func TestApplyFillSettleT0AppliesCashImmediately(t *testing.T) {
	l := New(d("100000"), "USD", CashAccountType, SettleT0, nyseCalendar(), "NYSE")
	o, f := buyOrder(aapl, "100", "50", "o1")
	f.Timestamp = mondayAt(10)

	if err := l.ApplyFill(o, f, f.Timestamp); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if !l.Cash.Settled.Equal(d("95000")) {
		t.Fatalf("settled cash: got %s, want 95000 (100000 - 100*50)", l.Cash.Settled)
	}
	if len(l.Cash.Pending) != 0 {
		t.Fatalf("T0 settlement should never enqueue pending cash, got %d entries", len(l.Cash.Pending))
	}
}

// TestApplyFillSettleRealisticEnqueuesUntilEffectiveDate covers spec §8
// Scenario C: a realistic-settlement buy's cash impact sits in the pending
// queue until its effective date, and AdvanceSettlement is what promotes it.
func TestApplyFillSettleRealisticEnqueuesUntilEffectiveDate(t *testing.T) {
	l := New(d("100000"), "USD", CashAccountType, SettleRealistic, nyseCalendar(), "NYSE")
	o, f := buyOrder(aapl, "100", "50", "o1")
	f.Timestamp = mondayAt(10)

	if err := l.ApplyFill(o, f, f.Timestamp); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if !l.Cash.Settled.Equal(d("100000")) {
		t.Fatalf("settled cash should be untouched before settlement, got %s", l.Cash.Settled)
	}
	if len(l.Cash.Pending) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(l.Cash.Pending))
	}

	wantEffective, _ := l.Calendar.AdvanceBusinessDays(f.Timestamp, 2, "NYSE")
	if !l.Cash.Pending[0].EffectiveDate.Equal(wantEffective) {
		t.Fatalf("effective date: got %s, want %s (T+2 business days)", l.Cash.Pending[0].EffectiveDate, wantEffective)
	}

	// Day 1 (T+1): not yet settled.
	dayAfter := f.Timestamp.AddDate(0, 0, 1)
	l.AdvanceSettlement(dayAfter)
	if !l.Cash.Settled.Equal(d("100000")) {
		t.Fatalf("settled cash should still be untouched at T+1, got %s", l.Cash.Settled)
	}

	// Day 2 (T+2): settles.
	l.AdvanceSettlement(wantEffective)
	if !l.Cash.Settled.Equal(d("95000")) {
		t.Fatalf("settled cash after T+2 advance: got %s, want 95000", l.Cash.Settled)
	}
	if len(l.Cash.Pending) != 0 {
		t.Fatalf("expected the pending entry to clear once settled, got %d remaining", len(l.Cash.Pending))
	}
}

func TestCheckViolationsFreeRidingWhenSameInstrumentSoldBeforeOwnBuySettles(t *testing.T) {
	l := New(d("1000"), "USD", CashAccountType, SettleRealistic, nyseCalendar(), "NYSE")
	buy, bf := buyOrder(aapl, "100", "50", "buy1") // notional 5000 > 1000 settled: unsettled buy
	bf.Timestamp = mondayAt(10)
	if err := l.ApplyFill(buy, bf, bf.Timestamp); err != nil {
		t.Fatalf("ApplyFill buy: %v", err)
	}

	sell, sf := sellOrder(aapl, "50", "55", "sell1")
	sf.Timestamp = mondayAt(10).Add(time.Hour) // same day, well before T+2 settlement
	if err := l.ApplyFill(sell, sf, sf.Timestamp); err != nil {
		t.Fatalf("ApplyFill sell: %v", err)
	}

	if len(l.Violations) != 1 {
		t.Fatalf("expected exactly one violation, got %d", len(l.Violations))
	}
	if l.Violations[0].Kind != FreeRidingViolation {
		t.Fatalf("expected FreeRidingViolation selling the same unsettled instrument, got %s", l.Violations[0].Kind)
	}
}

func TestCheckViolationsGoodFaithWhenDifferentInstrumentSoldWhileAnotherBuyUnsettled(t *testing.T) {
	l := New(d("1000"), "USD", CashAccountType, SettleRealistic, nyseCalendar(), "NYSE")
	buy, bf := buyOrder(aapl, "100", "50", "buy1") // unsettled AAPL buy
	bf.Timestamp = mondayAt(10)
	if err := l.ApplyFill(buy, bf, bf.Timestamp); err != nil {
		t.Fatalf("ApplyFill buy: %v", err)
	}

	sell, sf := sellOrder(msft, "10", "300", "sell1")
	sf.Timestamp = mondayAt(10).Add(time.Hour)
	if err := l.ApplyFill(sell, sf, sf.Timestamp); err != nil {
		t.Fatalf("ApplyFill sell: %v", err)
	}

	if len(l.Violations) != 1 {
		t.Fatalf("expected exactly one violation, got %d", len(l.Violations))
	}
	if l.Violations[0].Kind != GoodFaithViolation {
		t.Fatalf("expected GoodFaithViolation selling a different instrument than the unsettled buy, got %s", l.Violations[0].Kind)
	}
}

func TestAccrueShortBorrowChargesOnlyShortPositions(t *testing.T) {
	l := New(d("100000"), "USD", CashAccountType, SettleT0, nyseCalendar(), "NYSE")
	o, f := sellOrder(aapl, "100", "50", "short1")
	f.Timestamp = mondayAt(10)
	if err := l.ApplyFill(o, f, f.Timestamp); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	l.MarkToMarket(aapl, d("50"), f.Timestamp)

	before := l.Cash.Settled
	charge := l.AccrueShortBorrow(d("0.0001"), f.Timestamp.Add(24*time.Hour))
	if !charge.Equal(d("0.5")) {
		t.Fatalf("charge: got %s, want 0.5 (100 shares * 50 * 0.0001)", charge)
	}
	if !l.Cash.Settled.Equal(before.Sub(charge)) {
		t.Fatalf("settled cash should be debited by the charge")
	}
}

func TestCheckInvariantsRejectsOverfilledOrder(t *testing.T) {
	l := New(d("100000"), "USD", CashAccountType, SettleT0, nyseCalendar(), "NYSE")
	spec := orders.Spec{Instrument: aapl, Side: orders.Buy, Size: d("10"), Type: orders.Market}
	o := orders.NewOrder(spec, time.Time{}, 1)
	o.FilledQty = d("20")

	err := l.CheckInvariants([]*orders.Order{o})
	if err == nil {
		t.Fatalf("expected an invariant error when filled_qty exceeds requested size")
	}
	invErr, ok := err.(*InvariantError)
	if !ok || invErr.Invariant != "b" {
		t.Fatalf("expected invariant (b) error, got %v", err)
	}
}
