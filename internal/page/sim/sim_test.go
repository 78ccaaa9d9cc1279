package sim

import (
	"context"
	"testing"
	"time"

	"github.com/tbencze/alpha-pilot/internal/page"
	"go.uber.org/zap/zaptest"
)

func newTestPage(t *testing.T) *Page {
	t.Helper()

	p, err := New(Config{
		TokenAddress: "0xabcdef0123456789abcdef0123456789abcdef01",
		TokenSymbol:  "SIM",
		StartBalance: 500,
		StartPrice:   0.02,
		FillDelayMin: 50 * time.Millisecond,
		FillDelayMax: 100 * time.Millisecond,
		Seed:         1,
		Logger:       zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("new sim page: %v", err)
	}
	return p
}

func TestSim_TradeTape(t *testing.T) {
	t.Parallel()

	p := newTestPage(t)
	ctx := context.Background()

	panel, ok := p.FindTradeHistoryPanel(ctx)
	if !ok {
		t.Fatal("trade panel missing")
	}

	samples, err := p.ExtractTradeHistorySamples(ctx, panel)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) == 0 {
		t.Fatal("empty tape")
	}
	for _, s := range samples {
		if s.Price <= 0 || s.Quantity <= 0 {
			t.Fatalf("invalid sample: %+v", s)
		}
	}
}

func TestSim_OrderLifecycle(t *testing.T) {
	t.Parallel()

	p := newTestPage(t)
	ctx := context.Background()

	form, _ := p.TradingFormPanel(ctx)

	if err := p.SetBuyPrice(ctx, form, "0.02001000"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetReversePrice(ctx, form, "0.02002000"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetAmountPercent(ctx, form, 100); err != nil {
		t.Fatal(err)
	}
	if err := p.ClickBuy(ctx, form); err != nil {
		t.Fatal(err)
	}

	// The confirmation dialog has latency; poll like the placer does.
	deadline := time.Now().Add(2 * time.Second)
	clicked := false
	for time.Now().Before(deadline) {
		ok, err := p.ClickConfirmation(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			clicked = true
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !clicked {
		t.Fatal("confirmation never became clickable")
	}

	if p.Balance() != 0 {
		t.Errorf("balance = %v, want 0 after full-size order", p.Balance())
	}
	if p.OpenOrderCount() != 1 {
		t.Fatalf("open orders = %d, want 1", p.OpenOrderCount())
	}

	container, _ := p.LimitOrdersContainer(nil)
	rows, err := p.LimitOrderRows(ctx, container)
	if err != nil {
		t.Fatal(err)
	}
	side, ok := page.ClassifyOrderRow(rows[0])
	if !ok || side != page.SideBuy {
		t.Errorf("row %q classified as %v, %v", rows[0], side, ok)
	}

	// Buy fills into the auto-sell leg, which then completes the round trip.
	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && p.OpenOrderCount() > 0 {
		time.Sleep(25 * time.Millisecond)
	}
	if p.OpenOrderCount() != 0 {
		t.Fatal("orders never filled")
	}
	if p.Balance() < 500 {
		t.Errorf("balance = %v, want at least the starting 500 back", p.Balance())
	}
}

func TestSim_ClickBuyRequiresPrice(t *testing.T) {
	t.Parallel()

	p := newTestPage(t)
	form, _ := p.TradingFormPanel(context.Background())

	if err := p.ClickBuy(context.Background(), form); err == nil {
		t.Error("expected error without a price")
	}
}

func TestSim_LoginGate(t *testing.T) {
	t.Parallel()

	p := newTestPage(t)
	ctx := context.Background()

	if p.LoginPromptVisible(ctx) {
		t.Fatal("login gate on by default")
	}
	p.SetLoginGate(true)
	if !p.LoginPromptVisible(ctx) {
		t.Fatal("login gate did not engage")
	}
}
