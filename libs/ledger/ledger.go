package ledger

import (
	"fmt"
	"time"

	"simulor/libs/calendar"
	"simulor/libs/marketdata"
	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// AccountType selects the buying-power formula.
type AccountType int

const (
	CashAccountType AccountType = iota
	RegTMargin
	PortfolioMargin
)

// SettlementMode controls when a fill's cash delta becomes spendable.
type SettlementMode int

const (
	SettleT0 SettlementMode = iota
	SettleRealistic
)

// RiskBasedRequirement computes the portfolio-margin requirement from the
// current position set; pluggable per spec §4.9.
type RiskBasedRequirement func(positions map[marketdata.Instrument]*Position) decimal.Decimal

// InvariantError marks a ledger invariant violation. It is always fatal:
// the engine seals the event log and aborts the run on sight of one.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger: invariant %s violated: %s", e.Invariant, e.Detail)
}

// Ledger is the single per-portfolio serial point through which every
// position, cash, and violation mutation funnels.
type Ledger struct {
	Capital        decimal.Decimal
	Positions      map[marketdata.Instrument]*Position
	Cash           CashAccount
	AccountType    AccountType
	Settlement     SettlementMode
	SettlementDays map[marketdata.AssetClass]int
	Calendar       *calendar.MarketCalendar
	Venue          calendar.Venue
	RiskFn         RiskBasedRequirement

	Violations      []Violation
	RejectOnViolation bool

	lastClockTime time.Time
}

// New builds a Ledger with the given starting capital, fully settled.
func New(capital decimal.Decimal, currency string, accountType AccountType, settlement SettlementMode, cal *calendar.MarketCalendar, venue calendar.Venue) *Ledger {
	return &Ledger{
		Capital:     capital,
		Positions:   make(map[marketdata.Instrument]*Position),
		Cash:        NewCashAccount(capital, currency),
		AccountType: accountType,
		Settlement:  settlement,
		SettlementDays: map[marketdata.AssetClass]int{
			marketdata.Equity: 2,
			marketdata.Option: 1,
			marketdata.Future: 1,
			marketdata.Forex:  2,
			marketdata.Crypto: 0,
		},
		Calendar: cal,
		Venue:    venue,
	}
}

func (l *Ledger) position(i marketdata.Instrument) *Position {
	p, ok := l.Positions[i]
	if !ok {
		p = &Position{Instrument: i}
		l.Positions[i] = p
	}
	return p
}

// Position returns a read-only snapshot of the position for i.
func (l *Ledger) Position(i marketdata.Instrument) (Position, bool) {
	p, ok := l.Positions[i]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// AllPositions returns a snapshot of every tracked position.
func (l *Ledger) AllPositions() []Position {
	out := make([]Position, 0, len(l.Positions))
	for _, p := range l.Positions {
		out = append(out, *p)
	}
	return out
}

// ApplyFill applies a fill to the ledger: position quantity/avg-entry,
// realized P&L, cash delta (settled immediately or enqueued per
// settlement mode), and commission. It enforces invariant (c): no
// state-changing event may reference a timestamp earlier than the clock's
// current time.
func (l *Ledger) ApplyFill(o *orders.Order, f orders.Fill, now time.Time) error {
	if f.Timestamp.Before(l.lastClockTime) {
		return &InvariantError{Invariant: "c", Detail: fmt.Sprintf("fill at %s precedes clock time %s", f.Timestamp, l.lastClockTime)}
	}
	l.lastClockTime = f.Timestamp

	signedQty := f.Size.Mul(decimal.NewFromInt(o.Spec.Side.Sign()))
	pos := l.position(o.Spec.Instrument)
	pos.applyFill(signedQty, f.Price)

	notional := f.Price.Mul(f.Size)
	cashDelta := notional.Mul(decimal.NewFromInt(-o.Spec.Side.Sign())).Sub(f.Commission)

	settledFundsUsed := true
	if o.Spec.Side == orders.Buy {
		settledFundsUsed = l.Cash.Settled.GreaterThanOrEqual(notional.Add(f.Commission))
	}

	switch l.Settlement {
	case SettleT0:
		l.Cash.ApplyImmediate(cashDelta)
	case SettleRealistic:
		days := l.SettlementDays[o.Spec.Instrument.Class]
		effDate := f.Timestamp
		if l.Calendar != nil {
			if d, err := l.Calendar.AdvanceBusinessDays(f.Timestamp, days, l.Venue); err == nil {
				effDate = d
			}
		} else {
			effDate = f.Timestamp.AddDate(0, 0, days)
		}
		l.Cash.Enqueue(CashEntry{
			Amount:           cashDelta,
			EffectiveDate:    effDate,
			Kind:             EntryTrade,
			SettledFundsUsed: settledFundsUsed,
			OrderID:          o.ID,
			Instrument:       o.Spec.Instrument,
		})
		if o.Spec.Side == orders.Sell {
			l.checkViolations(o, now)
		}
	}
	return nil
}

// checkViolations detects good-faith/free-riding breaches: selling out of a
// position whose opening buy was funded (wholly or partly) by cash that has
// not yet settled. Closing the very same instrument whose unsettled buy
// funded the position is free-riding (the shares were never paid for with
// settled cash); closing a different position bought off the back of
// still-unsettled proceeds is a good-faith violation.
func (l *Ledger) checkViolations(sellOrder *orders.Order, now time.Time) {
	for _, e := range l.Cash.Pending {
		if e.Kind != EntryTrade || e.SettledFundsUsed || !e.EffectiveDate.After(now) {
			continue
		}
		kind := GoodFaithViolation
		description := "position bought with unsettled proceeds, sold again before they settled"
		if e.Instrument == sellOrder.Spec.Instrument {
			kind = FreeRidingViolation
			description = "bought without sufficient settled funds and sold before settlement"
		}
		l.Violations = append(l.Violations, Violation{
			Kind:        kind,
			OrderID:     sellOrder.ID,
			DetectedAt:  now,
			Description: description,
		})
	}
}

// BuyingPower computes available buying power per the account type's
// formula (spec §4.9).
func (l *Ledger) BuyingPower() decimal.Decimal {
	switch l.AccountType {
	case RegTMargin:
		longMV := decimal.Zero
		currentPositionsValue := decimal.Zero
		for _, p := range l.Positions {
			mv := p.MarketValue()
			currentPositionsValue = currentPositionsValue.Add(mv.Abs())
			if p.Quantity.IsPositive() {
				longMV = longMV.Add(mv)
			}
		}
		unsettled := l.Cash.UnsettledTotal()
		base := l.Cash.Settled.Add(unsettled).Add(longMV.Mul(decimal.NewFromFloat(0.5)))
		return base.Mul(decimal.NewFromInt(2)).Sub(currentPositionsValue)
	case PortfolioMargin:
		netLiq := l.NetLiquidation()
		req := decimal.Zero
		if l.RiskFn != nil {
			req = l.RiskFn(l.Positions)
		}
		return netLiq.Sub(req)
	default: // CashAccountType
		return l.Cash.Settled.Sub(l.Cash.Reserved)
	}
}

// NetLiquidation returns settled cash + unsettled + market value of all
// positions.
func (l *Ledger) NetLiquidation() decimal.Decimal {
	total := l.Cash.Settled.Add(l.Cash.UnsettledTotal())
	for _, p := range l.Positions {
		total = total.Add(p.MarketValue())
	}
	return total
}

// EstimatedCost satisfies orders.BuyingPowerChecker: the cash required to
// open/extend a position of size at price, ignoring proceeds from closing
// an existing opposite position (a conservative estimate).
func (l *Ledger) EstimatedCost(side orders.Side, size, price decimal.Decimal) decimal.Decimal {
	if side == orders.Sell {
		return decimal.Zero
	}
	return size.Mul(price)
}

// MarkToMarket updates every tracked position's reference price for
// instrument i.
func (l *Ledger) MarkToMarket(i marketdata.Instrument, price decimal.Decimal, at time.Time) {
	l.position(i).MarkToMarket(price, at)
}

// AdvanceSettlement runs the scheduler's daily settlement task: promotes
// pending cash entries whose effective date has arrived.
func (l *Ledger) AdvanceSettlement(now time.Time) []CashEntry {
	return l.Cash.Advance(now)
}

// AccrueShortBorrow charges daily short-borrow interest on short notional
// at dailyRate, at session close.
func (l *Ledger) AccrueShortBorrow(dailyRate decimal.Decimal, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Positions {
		if p.Quantity.IsNegative() {
			notional := p.Quantity.Abs().Mul(p.LastMarkPrice)
			charge := notional.Mul(dailyRate)
			total = total.Add(charge)
		}
	}
	if total.IsPositive() {
		l.Cash.ApplyImmediate(total.Neg())
	}
	return total
}

// AccrueOvernightFinancing charges/credits overnight financing on
// positions held overnight at dailyRate (signed: negative rate credits a
// long holder, positive rate charges).
func (l *Ledger) AccrueOvernightFinancing(dailyRate decimal.Decimal, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Positions {
		if p.Quantity.IsZero() {
			continue
		}
		notional := p.Quantity.Mul(p.LastMarkPrice)
		total = total.Add(notional.Mul(dailyRate))
	}
	if !total.IsZero() {
		l.Cash.ApplyImmediate(total.Neg())
	}
	return total
}

// CheckInvariants runs the belt-and-braces checks the engine calls once per
// tick: filled_qty bounds and reserved-cash bounds. Returns the first
// InvariantError found, or nil.
func (l *Ledger) CheckInvariants(allOrders []*orders.Order) error {
	for _, o := range allOrders {
		if o.FilledQty.GreaterThan(o.Spec.Size) {
			return &InvariantError{Invariant: "b", Detail: fmt.Sprintf("order %s filled_qty exceeds requested size", o.ID)}
		}
		if o.State.Terminal() && o.State != orders.Rejected {
			sum := o.FilledQty.Add(o.CancelledQty)
			if !sum.Equal(o.Spec.Size) && o.State != orders.Cancelled {
				return &InvariantError{Invariant: "b", Detail: fmt.Sprintf("order %s terminal reconciliation mismatch", o.ID)}
			}
		}
	}
	if l.Cash.Reserved.GreaterThan(l.Cash.Settled.Add(l.Cash.UnsettledTotal())) {
		return &InvariantError{Invariant: "e", Detail: "reserved cash exceeds settled+unsettled allowance"}
	}
	return nil
}
