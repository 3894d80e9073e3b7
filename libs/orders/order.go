// Package orders implements the order lifecycle state machine: OrderSpec ->
// Order, its transitions, and OCO/bracket linkage semantics.
package orders

import (
	"fmt"
	"time"

	"simulor/libs/marketdata"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Sign returns +1 for Buy, -1 for Sell.
func (s Side) Sign() int64 {
	if s == Buy {
		return 1
	}
	return -1
}

// Type is the order type.
type Type int

const (
	Market Type = iota
	Limit
	Stop
	StopLimit
)

func (t Type) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case Stop:
		return "stop"
	case StopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// TimeInForce controls how long an order remains working.
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
	FOK
	DAY
	MOO
	MOC
)

func (tif TimeInForce) String() string {
	switch tif {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case DAY:
		return "DAY"
	case MOO:
		return "MOO"
	case MOC:
		return "MOC"
	default:
		return "unknown"
	}
}

// LinkageKind groups an order with siblings for OCO or bracket semantics.
type LinkageKind int

const (
	NoLinkage LinkageKind = iota
	Bracket
	OCO
)

// Spec is the ExecutionModel's output: an instruction to the Order Manager.
// It carries no identity or state — those are assigned when the Manager
// accepts it as an Order.
type Spec struct {
	Instrument  marketdata.Instrument
	Side        Side
	Size        decimal.Decimal
	Type        Type
	LimitPrice  decimal.Decimal
	StopPrice   decimal.Decimal
	TIF         TimeInForce
	ParentID    string
	Linkage     LinkageKind
	LinkGroupID string // shared by all members of an OCO/bracket group
}

// State is a position in the order lifecycle state machine:
//
//	Pending -> Submitted -> {Accepted|Rejected}
//	Accepted -> Working -> {PartiallyFilled -> {Filled|Cancelled}, Filled, Cancelled}
type State int

const (
	Pending State = iota
	Submitted
	Accepted
	Rejected
	Working
	PartiallyFilled
	Filled
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Submitted:
		return "submitted"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Working:
		return "working"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == Rejected || s == Filled || s == Cancelled
}

// Fill is a single execution against an order.
type Fill struct {
	OrderID        string
	Timestamp      time.Time
	Price          decimal.Decimal
	Size           decimal.Decimal
	Commission     decimal.Decimal
	SlippageBps    decimal.Decimal
	ArrivalPrice   decimal.Decimal
	MarketBid      decimal.Decimal
	MarketAsk      decimal.Decimal
	MarketLast     decimal.Decimal
}

// Order is a Spec plus identity, state, and fill history.
type Order struct {
	ID        string
	Spec      Spec
	State     State
	FilledQty decimal.Decimal
	// RemainingQty = requested size - FilledQty - CancelledQty.
	CancelledQty   decimal.Decimal
	AvgFillPrice   decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
	AcceptedAt     time.Time
	EligibleAt     time.Time // latency-gated: not matched before this tick
	Commission     decimal.Decimal
	RejectReason   string
	Fills          []Fill
	ChildOrderIDs  []string
	SubmissionSeq  int64 // submission order, used for same-tick tie-breaks
}

// RemainingQty is the unfilled, uncancelled portion of the order.
func (o *Order) RemainingQty() decimal.Decimal {
	return o.Spec.Size.Sub(o.FilledQty).Sub(o.CancelledQty)
}

// NewOrder constructs a Pending order whose ID is derived from seq, so the
// same submission sequence yields the same IDs on every run.
func NewOrder(spec Spec, now time.Time, seq int64) *Order {
	return &Order{
		ID:            fmt.Sprintf("ord-%d", seq),
		Spec:          spec,
		State:         Pending,
		FilledQty:     decimal.Zero,
		CancelledQty:  decimal.Zero,
		AvgFillPrice:  decimal.Zero,
		Commission:    decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
		SubmissionSeq: seq,
	}
}

func (o *Order) transition(to State, now time.Time) error {
	if o.State.Terminal() {
		return fmt.Errorf("orders: order %s is terminal (%s), cannot transition to %s", o.ID, o.State, to)
	}
	o.State = to
	o.UpdatedAt = now
	return nil
}

// Submit moves Pending -> Submitted.
func (o *Order) Submit(now time.Time) error {
	if o.State != Pending {
		return fmt.Errorf("orders: order %s: Submit requires Pending, got %s", o.ID, o.State)
	}
	return o.transition(Submitted, now)
}

// Accept moves Submitted -> Accepted and records the tick at which the
// order becomes eligible for fill matching after the latency gate.
func (o *Order) Accept(now time.Time, eligibleAt time.Time) error {
	if o.State != Submitted {
		return fmt.Errorf("orders: order %s: Accept requires Submitted, got %s", o.ID, o.State)
	}
	o.AcceptedAt = now
	o.EligibleAt = eligibleAt
	if err := o.transition(Accepted, now); err != nil {
		return err
	}
	return o.transition(Working, now)
}

// Reject moves Submitted -> Rejected, terminal.
func (o *Order) Reject(reason string, now time.Time) error {
	if o.State != Submitted {
		return fmt.Errorf("orders: order %s: Reject requires Submitted, got %s", o.ID, o.State)
	}
	o.RejectReason = reason
	return o.transition(Rejected, now)
}

// ApplyFill records a fill, recomputing FilledQty and AvgFillPrice, and
// advances state to PartiallyFilled or Filled. filled_qty only ever
// increases (monotonicity invariant); it panics if asked to exceed the
// requested size, which is a ledger-level invariant violation, not a
// recoverable error.
func (o *Order) ApplyFill(f Fill) {
	if o.FilledQty.Add(f.Size).GreaterThan(o.Spec.Size) {
		panic(fmt.Sprintf("orders: fill would push filled_qty above requested size for order %s", o.ID))
	}
	totalNotional := o.AvgFillPrice.Mul(o.FilledQty).Add(f.Price.Mul(f.Size))
	o.FilledQty = o.FilledQty.Add(f.Size)
	if !o.FilledQty.IsZero() {
		o.AvgFillPrice = totalNotional.Div(o.FilledQty)
	}
	o.Commission = o.Commission.Add(f.Commission)
	o.Fills = append(o.Fills, f)
	o.UpdatedAt = f.Timestamp

	if o.RemainingQty().IsZero() {
		o.State = Filled
	} else {
		o.State = PartiallyFilled
	}
}

// Cancel moves a non-terminal order to Cancelled, assigning any unfilled
// remainder to CancelledQty so filled+cancelled+remaining reconciles to the
// requested size at terminal state.
func (o *Order) Cancel(now time.Time) error {
	if o.State.Terminal() {
		return fmt.Errorf("orders: order %s is already terminal (%s)", o.ID, o.State)
	}
	o.CancelledQty = o.CancelledQty.Add(o.RemainingQty())
	return o.transition(Cancelled, now)
}
