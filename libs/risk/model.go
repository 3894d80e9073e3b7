package risk

import (
	"sort"

	"simulor/libs/ledger"
	"simulor/libs/marketdata"
	"simulor/libs/strategies"
)

// Model adapts a Policy/Enforcer pair to the strategies.RiskModel stage
// contract: leverage cap, open-position cap, and drawdown halt applied to
// pre-risk targets. PeakEquity is local state the model itself maintains
// across ticks, never shared through the pipeline context.
type Model struct {
	Enforcer   *Enforcer
	PeakEquity float64
}

// NewModel builds a Model backed by policy.
func NewModel(policy *Policy) *Model {
	return &Model{Enforcer: NewEnforcer(policy)}
}

// ApplyRisk satisfies strategies.RiskModel. It halts all new exposure
// (returns an empty TargetPortfolio) on a drawdown or account-size
// breach, otherwise caps gross leverage and open-position count.
func (m *Model) ApplyRisk(ctx strategies.PipelineContext, preRisk strategies.TargetPortfolio) (strategies.TargetPortfolio, error) {
	equity, _ := ctx.Capital().Float64()
	if equity > m.PeakEquity {
		m.PeakEquity = equity
	}
	drawdown := 0.0
	if m.PeakEquity > 0 {
		drawdown = (m.PeakEquity - equity) / m.PeakEquity
	}

	held := ctx.Positions()
	violations := m.Enforcer.CheckPortfolio(PortfolioState{
		NetLiquidation:  equity,
		OpenPositions:   len(held),
		CurrentDrawdown: drawdown,
	})
	for _, v := range violations {
		if v.Code == ViolationDrawdownHalt || v.Code == ViolationAccountTooSmall {
			return strategies.TargetPortfolio{}, nil
		}
	}

	postRisk := capLeverage(preRisk, m.Enforcer.Policy().Position.MaxLeverage)
	postRisk = capPositionCount(postRisk, held, m.Enforcer.Policy().Portfolio.MaxPositions)
	return postRisk, nil
}

// capLeverage scales every weight down proportionally when the sum of
// absolute weights exceeds maxLeverage.
func capLeverage(targets strategies.TargetPortfolio, maxLeverage float64) strategies.TargetPortfolio {
	if maxLeverage <= 0 {
		return targets
	}
	sum := targets.AbsWeightSum()
	if sum <= maxLeverage {
		return targets
	}
	scale := maxLeverage / sum
	out := make(strategies.TargetPortfolio, len(targets))
	for inst, w := range targets {
		out[inst] = w * scale
	}
	return out
}

// capPositionCount drops the smallest-weight instruments not already held
// until the total distinct-instrument count reaches maxPositions.
func capPositionCount(targets strategies.TargetPortfolio, held []ledger.Position, maxPositions int) strategies.TargetPortfolio {
	if maxPositions <= 0 || len(targets) <= maxPositions {
		return targets
	}

	heldSet := make(map[marketdata.Instrument]bool, len(held))
	for _, p := range held {
		heldSet[p.Instrument] = true
	}

	type entry struct {
		inst marketdata.Instrument
		w    float64
	}
	var candidates []entry
	out := make(strategies.TargetPortfolio, len(targets))
	for inst, w := range targets {
		if heldSet[inst] {
			out[inst] = w
			continue
		}
		candidates = append(candidates, entry{inst, w})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return absf(candidates[i].w) > absf(candidates[j].w)
	})
	remaining := maxPositions - len(out)
	if remaining < 0 {
		remaining = 0
	}
	for i, c := range candidates {
		if i < remaining {
			out[c.inst] = c.w
		}
	}
	return out
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
