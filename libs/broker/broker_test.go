package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"simulor/libs/calendar"
	"simulor/libs/ledger"
	"simulor/libs/marketdata"
	"simulor/libs/orders"
	"simulor/libs/resilience"

	"github.com/shopspring/decimal"
)

// failingBroker always fails Submit, for exercising the circuit breaker.
type failingBroker struct {
	calls int
}

func (f *failingBroker) Submit(context.Context, orders.Spec) (OrderHandle, error) {
	f.calls++
	return OrderHandle{}, errors.New("venue unreachable")
}
func (f *failingBroker) Cancel(context.Context, string) error { return nil }
func (f *failingBroker) Modify(context.Context, string, *decimal.Decimal, *decimal.Decimal) error {
	return nil
}
func (f *failingBroker) Positions(context.Context) ([]ledger.Position, error) { return nil, nil }
func (f *failingBroker) Account(context.Context) (AccountSnapshot, error)     { return AccountSnapshot{}, nil }

func TestResilientOpensBreakerAfterRepeatedFailures(t *testing.T) {
	inner := &failingBroker{}
	r := &Resilient{inner: inner, cb: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "test-venue",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MaxFailures: 3,
	})}

	spec := orders.Spec{Instrument: marketdata.Instrument{Symbol: "AAPL"}, Side: orders.Buy, Size: decimal.NewFromInt(1), Type: orders.Market}

	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = r.Submit(context.Background(), spec)
	}
	if lastErr == nil {
		t.Fatalf("expected an error after repeated failures")
	}
	if inner.calls >= 5 {
		t.Fatalf("expected breaker to short-circuit before exhausting all 5 calls, inner saw %d", inner.calls)
	}
}

func TestSimulatedBrokerSubmitRejectsZeroSize(t *testing.T) {
	mgr := orders.NewManager(nil, nil)
	led := ledger.New(decimal.NewFromInt(100000), "USD", ledger.CashAccountType, ledger.SettleT0, nil, calendar.Venue("NYSE"))
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	sim := NewSimulated(mgr, led, nil, func() time.Time { return now })

	spec := orders.Spec{Instrument: marketdata.Instrument{Symbol: "AAPL"}, Side: orders.Buy, Size: decimal.Zero, Type: orders.Market}
	handle, err := sim.Submit(context.Background(), spec)
	if err != nil {
		t.Fatalf("Submit returned error (expected a Rejected order, not a Go error): %v", err)
	}
	if handle.State != orders.Rejected {
		t.Fatalf("expected Rejected state for zero-size order, got %v", handle.State)
	}
}

func TestSimulatedBrokerAccountReflectsLedger(t *testing.T) {
	mgr := orders.NewManager(nil, nil)
	led := ledger.New(decimal.NewFromInt(50000), "USD", ledger.CashAccountType, ledger.SettleT0, nil, calendar.Venue("NYSE"))
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	sim := NewSimulated(mgr, led, nil, func() time.Time { return now })

	acct, err := sim.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if !acct.NetLiquidation.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("expected net liquidation 50000, got %s", acct.NetLiquidation)
	}
	if acct.Currency != "USD" {
		t.Fatalf("expected USD, got %s", acct.Currency)
	}
}
