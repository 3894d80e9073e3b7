package main

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"simulor/internal/config"
	"simulor/libs/fillengine"
	"simulor/libs/latency"
)

func TestParseResolution(t *testing.T) {
	cases := map[string]struct {
		in      string
		wantErr bool
	}{
		"minute":  {"minute", false},
		"day":     {"day", false},
		"default": {"", false},
		"unknown": {"weekly", true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseResolution(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseResolution(%q): err=%v, wantErr=%v", tc.in, err, tc.wantErr)
			}
		})
	}
}

func TestBuildFillPolicyDefaultsToInstantForEmptyParameters(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p, err := buildFillPolicy(config.FillPolicyConfig{Kind: config.FillInstant}, rng)
	if err != nil {
		t.Fatalf("buildFillPolicy: %v", err)
	}
	if _, ok := p.(fillengine.Instant); !ok {
		t.Fatalf("expected an Instant policy, got %T", p)
	}
}

func TestBuildFillPolicyRejectsUnknownKind(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := buildFillPolicy(config.FillPolicyConfig{Kind: "made_up"}, rng); err == nil {
		t.Fatalf("expected an error for an unknown fill policy kind")
	}
}

func TestBuildFillPolicySpreadAwareParsesSlippageParameter(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	params, _ := json.Marshal(map[string]string{"limitSlippageBps": "5"})
	p, err := buildFillPolicy(config.FillPolicyConfig{Kind: config.FillSpreadAware, Parameters: params}, rng)
	if err != nil {
		t.Fatalf("buildFillPolicy: %v", err)
	}
	sa, ok := p.(fillengine.SpreadAware)
	if !ok {
		t.Fatalf("expected a SpreadAware policy, got %T", p)
	}
	if sa.LimitSlippageBps.String() != "5" {
		t.Fatalf("expected slippage 5, got %s", sa.LimitSlippageBps)
	}
}

func TestBuildDistributionDefaultsToZeroDelayFixed(t *testing.T) {
	d, err := buildDistribution(nil)
	if err != nil {
		t.Fatalf("buildDistribution: %v", err)
	}
	fixed, ok := d.(latency.Fixed)
	if !ok || fixed.Delay != 0 {
		t.Fatalf("expected a zero-delay Fixed distribution, got %+v", d)
	}
}

func TestBuildDistributionParsesUniformBounds(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"kind": "uniform", "min": "1ms", "max": "5ms"})
	d, err := buildDistribution(raw)
	if err != nil {
		t.Fatalf("buildDistribution: %v", err)
	}
	u, ok := d.(latency.Uniform)
	if !ok {
		t.Fatalf("expected a Uniform distribution, got %T", d)
	}
	if u.Min != time.Millisecond || u.Max != 5*time.Millisecond {
		t.Fatalf("unexpected bounds: %+v", u)
	}
}

func TestBuildCostEngineAppliesDefaultCommissionWhenUnconfigured(t *testing.T) {
	ce, err := buildCostEngine(config.CostPolicyConfig{})
	if err != nil {
		t.Fatalf("buildCostEngine: %v", err)
	}
	if len(ce.Components) != 1 {
		t.Fatalf("expected exactly the default commission component, got %d", len(ce.Components))
	}
}
