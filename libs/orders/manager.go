package orders

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BuyingPowerChecker is the minimal view of the ledger the Order Manager
// needs to validate a new order against available capital. It is satisfied
// by *ledger.Ledger; defined here (rather than imported) to keep orders
// free of a dependency on ledger's fuller state.
type BuyingPowerChecker interface {
	BuyingPower() decimal.Decimal
	EstimatedCost(side Side, size, price decimal.Decimal) decimal.Decimal
}

// RiskVetoer lets the engine ask the risk layer whether a submitted order
// should be vetoed pre-trade, e.g. a good-faith-violation policy configured
// to reject rather than warn.
type RiskVetoer interface {
	Veto(o *Order) (reason string, veto bool)
}

// Manager owns every Order for a single portfolio/run: submission
// validation, state transitions, and OCO/bracket linkage. It is the only
// component permitted to mutate an Order after creation.
type Manager struct {
	mu       sync.Mutex
	orders   map[string]*Order
	byGroup  map[string][]string // LinkGroupID -> order IDs, submission order
	seq      int64
	checker  BuyingPowerChecker
	vetoer   RiskVetoer
}

// NewManager builds a Manager backed by checker (buying-power validation)
// and an optional vetoer (nil disables risk vetoes at submission time).
func NewManager(checker BuyingPowerChecker, vetoer RiskVetoer) *Manager {
	return &Manager{
		orders:  make(map[string]*Order),
		byGroup: make(map[string][]string),
		checker: checker,
		vetoer:  vetoer,
	}
}

// Submit validates spec structurally, checks buying power, and — if the
// spec passes — creates a Submitted order eligible for acceptance. A
// structural or buying-power failure returns a Rejected order, never a Go
// error: the strategy observes the rejection on its next pipeline
// invocation, per spec.
func (m *Manager) Submit(spec Spec, arrivalPrice decimal.Decimal, now time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	o := NewOrder(spec, now, m.seq)
	m.orders[o.ID] = o
	if spec.LinkGroupID != "" {
		m.byGroup[spec.LinkGroupID] = append(m.byGroup[spec.LinkGroupID], o.ID)
	}

	// Bracket children stay Pending until the parent fills (see ApplyFill):
	// they are not validated, checked, or submitted here at all.
	if spec.Linkage == Bracket && spec.ParentID != "" {
		return o, nil
	}

	if err := o.Submit(now); err != nil {
		return nil, err
	}

	if reason := validateSpec(spec); reason != "" {
		_ = o.Reject(reason, now)
		return o, nil
	}

	if m.checker != nil {
		cost := m.checker.EstimatedCost(spec.Side, spec.Size, priceForCheck(spec, arrivalPrice))
		if cost.GreaterThan(m.checker.BuyingPower()) {
			_ = o.Reject("insufficient_buying_power", now)
			return o, nil
		}
	}

	if m.vetoer != nil {
		if reason, veto := m.vetoer.Veto(o); veto {
			_ = o.Reject(fmt.Sprintf("risk_veto: %s", reason), now)
			return o, nil
		}
	}

	return o, o.Submit2Accepted(now)
}

// activateChild moves a bracket child from Pending to Working in response
// to its parent filling: the same structural validation Submit would have
// run on a standalone order, deferred until the child actually becomes
// live.
func (m *Manager) activateChild(child *Order, now time.Time) {
	if err := child.Submit(now); err != nil {
		return
	}
	if reason := validateSpec(child.Spec); reason != "" {
		_ = child.Reject(reason, now)
		return
	}
	_ = child.Submit2Accepted(now)
}

// Submit2Accepted finishes Submitted -> Accepted -> Working for an order
// the caller has decided to admit; the latency model sets EligibleAt
// separately via SetEligibleAt once the transmission delay is known.
func (o *Order) Submit2Accepted(now time.Time) error {
	return o.Accept(now, now)
}

func priceForCheck(spec Spec, arrivalPrice decimal.Decimal) decimal.Decimal {
	switch spec.Type {
	case Limit, StopLimit:
		if !spec.LimitPrice.IsZero() {
			return spec.LimitPrice
		}
	case Stop:
		if !spec.StopPrice.IsZero() {
			return spec.StopPrice
		}
	}
	return arrivalPrice
}

func validateSpec(spec Spec) string {
	if spec.Size.LessThanOrEqual(decimal.Zero) {
		return "size_must_be_positive"
	}
	if (spec.Type == Limit || spec.Type == StopLimit) && spec.LimitPrice.LessThanOrEqual(decimal.Zero) {
		return "missing_limit_price"
	}
	if (spec.Type == Stop || spec.Type == StopLimit) && spec.StopPrice.LessThanOrEqual(decimal.Zero) {
		return "missing_stop_price"
	}
	if spec.Instrument.Symbol == "" {
		return "unknown_instrument"
	}
	return ""
}

// SetEligibleAt applies the Latency Model's order-transmission delay: the
// order becomes eligible for fill matching starting at eligibleAt, not at
// AcceptedAt.
func (m *Manager) SetEligibleAt(orderID string, eligibleAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("orders: unknown order %s", orderID)
	}
	o.EligibleAt = eligibleAt
	return nil
}

// Working returns every order currently eligible for fill matching at tick
// now, in submission order (tie-break rule ii).
func (m *Manager) Working(now time.Time) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if (o.State == Working || o.State == PartiallyFilled) && !o.EligibleAt.After(now) {
			out = append(out, o)
		}
	}
	sortBySubmission(out)
	return out
}

func sortBySubmission(os []*Order) {
	for i := 1; i < len(os); i++ {
		for j := i; j > 0 && os[j].SubmissionSeq < os[j-1].SubmissionSeq; j-- {
			os[j], os[j-1] = os[j-1], os[j]
		}
	}
}

// Get returns an order by ID.
func (m *Manager) Get(id string) (*Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

// Cancel transitions a working order to Cancelled.
func (m *Manager) Cancel(id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("orders: unknown order %s", id)
	}
	return o.Cancel(now)
}

// ApplyFill records a fill on order id and, if the fill is OCO-linked,
// cancels every sibling in the same group atomically (same-tick, before
// returning) — satisfying the OCO-atomicity invariant. If the order is a
// bracket parent, its Pending children are activated (moved through
// Submitted and Accepted to Working) in the same call.
func (m *Manager) ApplyFill(id string, f Fill, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("orders: unknown order %s", id)
	}
	o.ApplyFill(f)

	if o.State == Filled {
		if o.Spec.Linkage == OCO && o.Spec.LinkGroupID != "" {
			for _, sibID := range m.byGroup[o.Spec.LinkGroupID] {
				if sibID == o.ID {
					continue
				}
				sib := m.orders[sibID]
				if sib != nil && !sib.State.Terminal() {
					_ = sib.Cancel(now)
				}
			}
		}
		for _, childID := range o.ChildOrderIDs {
			child := m.orders[childID]
			if child != nil && child.State == Pending {
				m.activateChild(child, now)
			}
		}
	}
	return nil
}

// LinkChildren records parent -> children linkage for bracket orders so
// ApplyFill can activate them on parent fill.
func (m *Manager) LinkChildren(parentID string, childIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.orders[parentID]
	if !ok {
		return fmt.Errorf("orders: unknown parent order %s", parentID)
	}
	p.ChildOrderIDs = append(p.ChildOrderIDs, childIDs...)
	return nil
}

// All returns every order the manager has ever created, for event-log
// reconciliation and tests.
func (m *Manager) All() []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out
}
