package page

import "testing"

func TestClassifyOrderRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		side   OrderSide
		wantOK bool
	}{
		{name: "english-buy", text: "Limit Buy 0.0234 / 1,200 ZRO", side: SideBuy, wantOK: true},
		{name: "english-sell", text: "Limit Sell 0.0240 / 1,200 ZRO", side: SideSell, wantOK: true},
		{name: "chinese-buy", text: "限价 买入 0.0234 / 1200", side: SideBuy, wantOK: true},
		{name: "chinese-sell", text: "限价 卖出 0.0240 / 1200", side: SideSell, wantOK: true},
		{name: "market-order-ignored", text: "Market Buy 0.0234 / 500", wantOK: false},
		{name: "chinese-market-ignored", text: "市价 买入 0.0234", wantOK: false},
		{name: "no-digits-ignored", text: "Open Orders", wantOK: false},
		{name: "empty", text: "", wantOK: false},
		{name: "digits-no-keyword", text: "0.0234 1200", wantOK: false},
		{name: "case-insensitive", text: "SELL 12 @ 0.5", side: SideSell, wantOK: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			side, ok := ClassifyOrderRow(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && side != tt.side {
				t.Errorf("side = %v, want %v", side, tt.side)
			}
		})
	}
}
