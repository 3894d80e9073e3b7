// Package engine wires the Clock & Event Stream, Subscription Filter,
// Scheduler, and strategy pipeline plumbing into the single run loop spec
// §4 describes: Clock emits event -> Filter selects recipients -> Data
// Context updates -> Scheduler fires due callbacks -> pipeline runs per
// strategy -> Order Manager accepts with latency -> Fill Engine matches ->
// Cost Engine adjusts -> Ledger applies -> Event Log records.
package engine

import (
	"container/heap"
	"context"
	"fmt"

	"simulor/libs/calendar"
	"simulor/libs/marketdata"
)

// Clock merges one or more Provider event channels into a single
// non-decreasing timestamp order, breaking ties by instrument identity
// then by resolution (finest first, per spec §4.1). It owns the market
// calendar the engine consults for session/holiday questions, but does
// not itself filter events by trading session — a historical provider is
// assumed to have already produced only in-session events.
type Clock struct {
	cal      *calendar.MarketCalendar
	venue    calendar.Venue
	sources  []<-chan marketdata.MarketEvent
	pending  eventHeap
	started  bool
}

// NewClock builds a Clock over the given provider channels, already
// opened via Provider.Enumerate.
func NewClock(cal *calendar.MarketCalendar, venue calendar.Venue, sources ...<-chan marketdata.MarketEvent) *Clock {
	return &Clock{cal: cal, venue: venue, sources: sources}
}

// Calendar exposes the market calendar backing this clock.
func (c *Clock) Calendar() *calendar.MarketCalendar { return c.cal }

// Venue is the venue this clock's calendar questions are answered against.
func (c *Clock) Venue() calendar.Venue { return c.venue }

type heapItem struct {
	event    marketdata.MarketEvent
	srcIndex int
}

type eventHeap []heapItem

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	a, b := h[i].event, h[j].event
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Instrument.String() != b.Instrument.String() {
		return a.Instrument.String() < b.Instrument.String()
	}
	// finest resolution first: ResTick=0 ... ResDay=3, already ordered.
	return a.Resolution < b.Resolution
}
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// prime fills the heap with the first event available from every source.
func (c *Clock) prime(ctx context.Context) {
	for i, ch := range c.sources {
		select {
		case ev, ok := <-ch:
			if ok {
				heap.Push(&c.pending, heapItem{event: ev, srcIndex: i})
			}
		case <-ctx.Done():
			return
		}
	}
	c.started = true
}

// Next returns the next event in global timestamp order, or false when
// every source is exhausted. An event read out of order from a source
// (timestamp earlier than one already emitted by that same source) is a
// fatal data-quality bug, per spec §4.1: it is never silently re-sorted.
func (c *Clock) Next(ctx context.Context) (marketdata.MarketEvent, bool, error) {
	if !c.started {
		c.prime(ctx)
	}
	if c.pending.Len() == 0 {
		return marketdata.MarketEvent{}, false, nil
	}
	top := heap.Pop(&c.pending).(heapItem)

	select {
	case next, ok := <-c.sources[top.srcIndex]:
		if ok {
			if next.Timestamp.Before(top.event.Timestamp) {
				return marketdata.MarketEvent{}, false, fmt.Errorf(
					"engine: clock received out-of-order event from source %d: %s before %s",
					top.srcIndex, next.Timestamp, top.event.Timestamp)
			}
			heap.Push(&c.pending, heapItem{event: next, srcIndex: top.srcIndex})
		}
	case <-ctx.Done():
		return marketdata.MarketEvent{}, false, ctx.Err()
	}

	return top.event, true, nil
}
