package fillengine

import (
	"math/rand"
	"sync"

	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

// QueuePosition selects where a newly-inserted limit order is placed
// relative to other resting size at its price level.
type QueuePosition int

const (
	QueueBack QueuePosition = iota
	QueueRandom
	QueueFront
)

// OrderBook matches market orders against a reconstructed L2 snapshot
// level by level in price-time priority, and tracks queue position for
// resting limit orders so they only fill once aggressor flow has consumed
// the size ahead of them.
type OrderBook struct {
	Queue QueuePosition
	RNG   *rand.Rand

	mu         sync.Mutex
	queueAhead map[string]decimal.Decimal
}

// NewOrderBook builds an OrderBook policy. rng must be seeded
// deterministically by the caller for reproducibility.
func NewOrderBook(queue QueuePosition, rng *rand.Rand) *OrderBook {
	return &OrderBook{Queue: queue, RNG: rng, queueAhead: make(map[string]decimal.Decimal)}
}

func (p *OrderBook) ProposeFill(o *orders.Order, snap MarketSnapshot) (*Proposal, error) {
	if snap.Book == nil {
		return nil, nil
	}
	if o.Spec.Type == orders.Market {
		return p.matchMarket(o, snap.Book)
	}
	return p.matchLimit(o, snap)
}

// matchMarket consumes levels on the opposing side, level by level,
// producing a single size-weighted-average Fill for the levels touched
// (a simplification of "one Fill per level": the engine records one ledger
// event per policy proposal, so levels are blended here rather than
// emitted as separate Fills).
func (p *OrderBook) matchMarket(o *orders.Order, book *Book) (*Proposal, error) {
	levels := book.Asks
	if o.Spec.Side == orders.Sell {
		levels = book.Bids
	}
	remaining := o.RemainingQty()
	filled := decimal.Zero
	notional := decimal.Zero
	for _, lvl := range levels {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, lvl.Size)
		notional = notional.Add(take.Mul(lvl.Price))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}
	if filled.IsZero() {
		return nil, nil
	}
	return &Proposal{Price: notional.Div(filled), Size: filled}, nil
}

// matchLimit tracks queue position ahead of a resting limit order and
// releases a fill once the consumed volume this tick reaches the front of
// the queue.
func (p *OrderBook) matchLimit(o *orders.Order, snap MarketSnapshot) (*Proposal, error) {
	ok, price := crosses(o, snap)
	if !ok {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ahead, seen := p.queueAhead[o.ID]
	if !seen {
		ahead = p.initialQueue(snap)
		p.queueAhead[o.ID] = ahead
	}

	consumed := snap.TradeSize
	if consumed.IsZero() {
		consumed = snap.AvgVolume
	}
	if ahead.GreaterThan(decimal.Zero) {
		ahead = ahead.Sub(consumed)
		if ahead.IsNegative() {
			ahead = decimal.Zero
		}
		p.queueAhead[o.ID] = ahead
		if ahead.IsPositive() {
			return nil, nil
		}
	}

	size := o.RemainingQty()
	delete(p.queueAhead, o.ID)
	return &Proposal{Price: price, Size: size}, nil
}

func (p *OrderBook) initialQueue(snap MarketSnapshot) decimal.Decimal {
	levelSize := snap.AvgVolume
	switch p.Queue {
	case QueueFront:
		return decimal.Zero
	case QueueRandom:
		if p.RNG == nil {
			return levelSize.Div(decimal.NewFromInt(2))
		}
		frac := decimal.NewFromFloat(p.RNG.Float64())
		return levelSize.Mul(frac)
	default: // QueueBack
		return levelSize
	}
}
