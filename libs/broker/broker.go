// Package broker defines the abstract broker boundary (§6): submit,
// cancel, modify, positions, account. The backtest's Fill Engine + Cost
// Engine together constitute one implementation of this boundary; a live
// or paper adapter satisfying the same interface can be swapped in
// without touching the strategy pipeline or engine run loop. Only the
// boundary and a circuit-breaker-wrapped decorator are implemented here
// — no live vendor adapter is in scope.
package broker

import (
	"context"
	"time"

	"simulor/libs/ledger"
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// AccountSnapshot mirrors the account-level figures a strategy or risk
// model needs from the broker boundary, independent of backtest or live
// mode.
type AccountSnapshot struct {
	NetLiquidation decimal.Decimal
	BuyingPower    decimal.Decimal
	Currency       string
	AsOf           time.Time
}

// OrderHandle is the broker's acknowledgement of a submitted order: its
// assigned ID and initial state.
type OrderHandle struct {
	OrderID string
	State   orders.State
}

// Broker is the boundary every execution venue — simulated or live —
// satisfies.
type Broker interface {
	Submit(ctx context.Context, spec orders.Spec) (OrderHandle, error)
	Cancel(ctx context.Context, orderID string) error
	Modify(ctx context.Context, orderID string, newPrice, newSize *decimal.Decimal) error
	Positions(ctx context.Context) ([]ledger.Position, error)
	Account(ctx context.Context) (AccountSnapshot, error)
}
