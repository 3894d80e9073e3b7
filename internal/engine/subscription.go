package engine

import "simulor/libs/marketdata"

type subscriptionKey struct {
	Instrument marketdata.Instrument
	Resolution marketdata.Resolution
}

// SubscriptionFilter holds the set of (strategy-id, instrument, resolution)
// tuples currently of interest and routes each event only to the
// strategies that have registered for its (instrument, resolution) pair —
// so a large universe run pays cost proportional to what is actually
// observed, not to what exists (spec §4.2).
type SubscriptionFilter struct {
	subs map[subscriptionKey]map[string]bool
}

// NewSubscriptionFilter builds an empty filter.
func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{subs: make(map[subscriptionKey]map[string]bool)}
}

// Subscribe registers strategyID's interest in (instrument, resolution).
// Takes effect starting with the next event processed.
func (f *SubscriptionFilter) Subscribe(strategyID string, i marketdata.Instrument, r marketdata.Resolution) {
	key := subscriptionKey{i, r}
	set, ok := f.subs[key]
	if !ok {
		set = make(map[string]bool)
		f.subs[key] = set
	}
	set[strategyID] = true
}

// Unsubscribe removes strategyID's interest in (instrument, resolution).
func (f *SubscriptionFilter) Unsubscribe(strategyID string, i marketdata.Instrument, r marketdata.Resolution) {
	key := subscriptionKey{i, r}
	if set, ok := f.subs[key]; ok {
		delete(set, strategyID)
	}
}

// Route returns the strategy IDs subscribed to event's (instrument,
// resolution) pair, in no particular order.
func (f *SubscriptionFilter) Route(event marketdata.MarketEvent) []string {
	key := subscriptionKey{event.Instrument, event.Resolution}
	set, ok := f.subs[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
