package broker

import (
	"context"
	"fmt"
	"time"

	"simulor/libs/ledger"
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// ReferencePriceFunc supplies the arrival price orders.Manager.Submit
// needs for buying-power checks — the engine's DataContext-backed
// reference price for an instrument at the current tick.
type ReferencePriceFunc func(instrument orders.Spec) decimal.Decimal

// Simulated is the backtest's own Broker: orders.Manager for submission,
// state, and OCO/bracket linkage, and ledger.Ledger for positions and
// account figures. It does not itself run fill matching — the engine
// drives the Fill Engine and Cost Engine and calls Manager.ApplyFill /
// Ledger.ApplyFill on a match, the same way a live adapter would report
// a venue fill asynchronously.
type Simulated struct {
	Manager  *orders.Manager
	Ledger   *ledger.Ledger
	RefPrice ReferencePriceFunc
	Now      func() time.Time
}

// NewSimulated builds a Simulated broker over an existing Manager and
// Ledger pair, typically constructed and shared by the engine.
func NewSimulated(mgr *orders.Manager, led *ledger.Ledger, refPrice ReferencePriceFunc, now func() time.Time) *Simulated {
	return &Simulated{Manager: mgr, Ledger: led, RefPrice: refPrice, Now: now}
}

func (s *Simulated) Submit(_ context.Context, spec orders.Spec) (OrderHandle, error) {
	now := s.Now()
	arrival := decimal.Zero
	if s.RefPrice != nil {
		arrival = s.RefPrice(spec)
	}
	o, err := s.Manager.Submit(spec, arrival, now)
	if err != nil {
		return OrderHandle{}, fmt.Errorf("broker: submit: %w", err)
	}
	return OrderHandle{OrderID: o.ID, State: o.State}, nil
}

func (s *Simulated) Cancel(_ context.Context, orderID string) error {
	return s.Manager.Cancel(orderID, s.Now())
}

// Modify is not supported by the backtest broker: the Order Manager
// models cancel/replace as an explicit cancel followed by a new Submit,
// matching how the Fill Engine sees order book changes.
func (s *Simulated) Modify(_ context.Context, _ string, _ *decimal.Decimal, _ *decimal.Decimal) error {
	return fmt.Errorf("broker: Modify is not supported, cancel and resubmit instead")
}

func (s *Simulated) Positions(_ context.Context) ([]ledger.Position, error) {
	return s.Ledger.AllPositions(), nil
}

func (s *Simulated) Account(_ context.Context) (AccountSnapshot, error) {
	return AccountSnapshot{
		NetLiquidation: s.Ledger.NetLiquidation(),
		BuyingPower:    s.Ledger.BuyingPower(),
		Currency:       s.Ledger.Cash.Currency,
		AsOf:           s.Now(),
	}, nil
}
