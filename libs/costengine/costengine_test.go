package costengine

import (
	"testing"

	"simulor/libs/orders"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPerShareCommission(t *testing.T) {
	cases := []struct {
		name string
		rate string
		min  string
		size string
		want string
	}{
		{"above minimum", "0.005", "1.00", "1000", "5.00"},
		{"floored at minimum", "0.005", "1.00", "10", "1.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := PerShare{Rate: d(tc.rate), Minimum: d(tc.min)}
			got := c.Commission(FillDraft{Size: d(tc.size)}, PositionSnapshot{})
			if !got.Equal(d(tc.want)) {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTieredCommission(t *testing.T) {
	c := Tiered{
		Tiers: []TierBreak{
			{Threshold: d("0"), Rate: d("0.01")},
			{Threshold: d("500"), Rate: d("0.006")},
			{Threshold: d("5000"), Rate: d("0.003")},
		},
		Minimum: d("1.00"),
	}
	cases := []struct {
		name string
		size string
		want string
	}{
		{"first tier", "100", "1.00"},
		{"second tier", "1000", "6.00"},
		{"third tier", "10000", "30.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Commission(FillDraft{Size: d(tc.size)}, PositionSnapshot{})
			if !got.Equal(d(tc.want)) {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEngineApplyRoundsHalfEven(t *testing.T) {
	e := NewEngine(-2)
	e.Components = []Component{AsComponent(PerShare{Rate: d("0.0025"), Minimum: decimal.Zero})}

	draft := FillDraft{
		Side:  orders.Buy,
		Price: d("100.005"),
		Size:  d("100"),
	}
	result := e.Apply(draft, PositionSnapshot{})

	if !result.Price.Equal(d("100.00")) {
		t.Fatalf("price: got %s, want 100.00 (half-even rounds .005 down from even 100.00)", result.Price)
	}
	if !result.Commission.Equal(d("0.25")) {
		t.Fatalf("commission: got %s, want 0.25", result.Commission)
	}
}

func TestFixedSlippageAdjustsAgainstTrader(t *testing.T) {
	adj := FixedSlippage(d("10")) // 10bps
	buy := FillDraft{Side: orders.Buy, Price: d("100"), Size: d("10")}
	sell := FillDraft{Side: orders.Sell, Price: d("100"), Size: d("10")}

	if got := adj(buy); !got.Equal(d("100.1")) {
		t.Fatalf("buy: got %s, want 100.1", got)
	}
	if got := adj(sell); !got.Equal(d("99.9")) {
		t.Fatalf("sell: got %s, want 99.9", got)
	}
}

func TestRegulatoryFeeOnSellOnly(t *testing.T) {
	fee := RegulatoryFee(d("0.0000221"))
	buy := FillDraft{Side: orders.Buy, Price: d("50"), Size: d("100")}
	sell := FillDraft{Side: orders.Sell, Price: d("50"), Size: d("100")}

	if got := fee(buy, PositionSnapshot{}); !got.IsZero() {
		t.Fatalf("buy fee should be zero, got %s", got)
	}
	if got := fee(sell, PositionSnapshot{}); got.IsZero() {
		t.Fatalf("sell fee should be non-zero")
	}
}
