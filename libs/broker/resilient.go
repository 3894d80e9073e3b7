package broker

import (
	"context"

	"simulor/libs/ledger"
	"simulor/libs/orders"
	"simulor/libs/resilience"

	"github.com/shopspring/decimal"
)

// Resilient wraps any Broker implementation — in practice a live or
// paper adapter, since the backtest path never crosses a real network
// boundary — with a circuit breaker so repeated venue failures pause
// order flow instead of hammering a degraded broker.
type Resilient struct {
	inner Broker
	cb    *resilience.CircuitBreaker
}

// NewResilient builds a Resilient broker wrapping inner with a circuit
// breaker named after the venue, using resilience's default tuning.
func NewResilient(name string, inner Broker) *Resilient {
	return &Resilient{inner: inner, cb: resilience.NewCircuitBreaker(resilience.DefaultConfig(name))}
}

func (r *Resilient) Submit(ctx context.Context, spec orders.Spec) (OrderHandle, error) {
	v, err := r.cb.ExecuteWithContext(ctx, func() (any, error) {
		return r.inner.Submit(ctx, spec)
	})
	if err != nil {
		return OrderHandle{}, err
	}
	return v.(OrderHandle), nil
}

func (r *Resilient) Cancel(ctx context.Context, orderID string) error {
	_, err := r.cb.ExecuteWithContext(ctx, func() (any, error) {
		return nil, r.inner.Cancel(ctx, orderID)
	})
	return err
}

func (r *Resilient) Modify(ctx context.Context, orderID string, newPrice, newSize *decimal.Decimal) error {
	_, err := r.cb.ExecuteWithContext(ctx, func() (any, error) {
		return nil, r.inner.Modify(ctx, orderID, newPrice, newSize)
	})
	return err
}

func (r *Resilient) Positions(ctx context.Context) ([]ledger.Position, error) {
	v, err := r.cb.ExecuteWithContext(ctx, func() (any, error) {
		return r.inner.Positions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]ledger.Position), nil
}

func (r *Resilient) Account(ctx context.Context) (AccountSnapshot, error) {
	v, err := r.cb.ExecuteWithContext(ctx, func() (any, error) {
		return r.inner.Account(ctx)
	})
	if err != nil {
		return AccountSnapshot{}, err
	}
	return v.(AccountSnapshot), nil
}
