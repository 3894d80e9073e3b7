package fillengine

import (
	"simulor/libs/orders"
)

// Matcher walks every working order eligible at now against the same
// MarketSnapshot and asks policy to propose a fill for each, in submission
// order (tie-break rule ii). It does not itself apply fills to the ledger
// or order manager — callers (the engine) do that so cost-engine
// adjustments can be interposed first.
type Matcher struct {
	Policy Policy
}

// Match returns the proposals keyed by order for every working order in
// orders that the policy is willing to fill this tick. Orders are
// evaluated in the slice's given order, which callers must already have
// sorted by submission sequence.
func (m Matcher) Match(working []*orders.Order, snap MarketSnapshot) map[string]*Proposal {
	out := make(map[string]*Proposal, len(working))
	for _, o := range working {
		if o.EligibleAt.After(snap.Timestamp) {
			continue
		}
		prop, err := m.Policy.ProposeFill(o, snap)
		if err != nil || prop == nil {
			continue
		}
		out[o.ID] = prop
	}
	return out
}
