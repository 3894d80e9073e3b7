package ledger

import (
	"sort"
	"time"

	"simulor/libs/marketdata"

	"github.com/shopspring/decimal"
)

// CashEntryKind tags what produced a cash-queue entry, for the event log.
type CashEntryKind int

const (
	EntryTrade CashEntryKind = iota
	EntrySettlement
	EntryFinancing
	EntryBorrowAccrual
)

func (k CashEntryKind) String() string {
	switch k {
	case EntryTrade:
		return "trade"
	case EntrySettlement:
		return "settlement"
	case EntryFinancing:
		return "financing"
	case EntryBorrowAccrual:
		return "borrow_accrual"
	default:
		return "unknown"
	}
}

// CashEntry is a single pending cash delta awaiting settlement.
type CashEntry struct {
	Amount        decimal.Decimal
	EffectiveDate time.Time
	Kind          CashEntryKind
	// SettledFundsUsed marks whether this buy was funded entirely from
	// already-settled cash, used by good-faith/free-ride detection.
	SettledFundsUsed bool
	OrderID          string
	Instrument       marketdata.Instrument
}

// CashAccount tracks settled balance, a FIFO queue of pending deltas each
// carrying an effective settlement date, reserved amount for working buy
// orders, and currency.
type CashAccount struct {
	Settled  decimal.Decimal
	Pending  []CashEntry
	Reserved decimal.Decimal
	Currency string
}

// NewCashAccount creates an account with the given starting settled balance.
func NewCashAccount(initial decimal.Decimal, currency string) CashAccount {
	return CashAccount{Settled: initial, Currency: currency}
}

// ApplyImmediate applies a cash delta directly to settled balance (T+0
// settlement mode).
func (c *CashAccount) ApplyImmediate(amount decimal.Decimal) {
	c.Settled = c.Settled.Add(amount)
}

// Enqueue appends a pending cash delta for later settlement (realistic
// settlement mode).
func (c *CashAccount) Enqueue(entry CashEntry) {
	c.Pending = append(c.Pending, entry)
}

// Advance promotes every pending entry whose effective date is on or before
// now to settled balance, in strict effective-date order (invariant d).
func (c *CashAccount) Advance(now time.Time) []CashEntry {
	sort.SliceStable(c.Pending, func(i, j int) bool {
		return c.Pending[i].EffectiveDate.Before(c.Pending[j].EffectiveDate)
	})

	var settledNow []CashEntry
	var remaining []CashEntry
	for _, e := range c.Pending {
		if !e.EffectiveDate.After(now) {
			c.Settled = c.Settled.Add(e.Amount)
			settledNow = append(settledNow, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	c.Pending = remaining
	return settledNow
}

// UnsettledTotal sums the pending queue.
func (c *CashAccount) UnsettledTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.Pending {
		total = total.Add(e.Amount)
	}
	return total
}
