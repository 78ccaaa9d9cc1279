package pricing

import (
	"math"
	"testing"

	"github.com/tbencze/alpha-pilot/pkg/types"
)

func TestVWAP(t *testing.T) {
	t.Parallel()

	price, ok := VWAP([]types.TradeSample{
		{Price: 1.0, Quantity: 10},
		{Price: 1.1, Quantity: 20},
		{Price: 0.9, Quantity: 30},
	})
	if !ok {
		t.Fatal("expected a price")
	}

	want := 59.0 / 60.0
	if math.Abs(price-want) > 1e-12 {
		t.Errorf("got %v, want %v", price, want)
	}
}

func TestVWAP_SingleTrade(t *testing.T) {
	t.Parallel()

	price, ok := VWAP([]types.TradeSample{{Price: 2.5, Quantity: 7}})
	if !ok {
		t.Fatal("expected a price")
	}
	if price != 2.5 {
		t.Errorf("single trade must return its own price, got %v", price)
	}
}

func TestVWAP_FiltersInvalidSamples(t *testing.T) {
	t.Parallel()

	price, ok := VWAP([]types.TradeSample{
		{Price: math.NaN(), Quantity: 10},
		{Price: 1.0, Quantity: math.Inf(1)},
		{Price: -1.0, Quantity: 5},
		{Price: 1.0, Quantity: 0},
		{Price: 3.0, Quantity: 2},
	})
	if !ok {
		t.Fatal("expected a price from the one valid sample")
	}
	if price != 3.0 {
		t.Errorf("got %v, want 3.0", price)
	}
}

func TestVWAP_Degenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		trades []types.TradeSample
	}{
		{name: "empty-input", trades: nil},
		{name: "all-invalid", trades: []types.TradeSample{
			{Price: 0, Quantity: 0},
			{Price: math.Inf(-1), Quantity: 1},
		}},
		{name: "zero-quantity-sum", trades: []types.TradeSample{
			{Price: 1.0, Quantity: 0},
			{Price: 2.0, Quantity: 0},
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, ok := VWAP(tt.trades); ok {
				t.Error("expected no price")
			}
		})
	}
}
