package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/tbencze/alpha-pilot/internal/page"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

// FakePage is a scriptable page.Page implementation. Tests set the exported
// fields to stage the page and inspect Actions afterwards.
type FakePage struct {
	mu sync.Mutex

	PageURL string

	LoginVisible      bool
	TradePanelPresent bool
	Trades            []types.TradeSample
	TradesErr         error
	TokenSymbol       string

	FormPresent     bool
	Balance         float64
	BalanceReadable bool

	OrdersRootPresent bool
	ContainerPresent  bool
	Rows              []string
	RowsErr           error
	TabState          page.LimitOrderTabState
	TabSelected       bool

	ReverseOn    bool
	ConfirmReady bool
	BuyClickErr  error

	Actions       []string
	BuyPrice      string
	ReversePrice  string
	AmountPercent int
}

// NewFakePage returns a page staged as logged-in and fully present, with an
// empty limit-order tab.
func NewFakePage() *FakePage {
	return &FakePage{
		PageURL:           "https://www.example-exchange.com/alpha/0xabcdef0123456789abcdef0123456789abcdef01",
		TradePanelPresent: true,
		TokenSymbol:       "ZRO",
		FormPresent:       true,
		Balance:           100,
		BalanceReadable:   true,
		OrdersRootPresent: true,
		ContainerPresent:  true,
		TabState:          page.LimitOrdersEmpty,
		TabSelected:       true,
		ConfirmReady:      true,
	}
}

func (f *FakePage) record(action string) {
	f.mu.Lock()
	f.Actions = append(f.Actions, action)
	f.mu.Unlock()
}

// RecordedActions returns a copy of the interaction log.
func (f *FakePage) RecordedActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Actions))
	copy(out, f.Actions)
	return out
}

func (f *FakePage) URL() string { return f.PageURL }

func (f *FakePage) FindTradeHistoryPanel(ctx context.Context) (page.Handle, bool) {
	if !f.TradePanelPresent {
		return nil, false
	}
	return "trade-panel", true
}

func (f *FakePage) ExtractTradeHistorySamples(ctx context.Context, panel page.Handle) ([]types.TradeSample, error) {
	if f.TradesErr != nil {
		return nil, f.TradesErr
	}
	return f.Trades, nil
}

func (f *FakePage) ExtractTokenSymbol(ctx context.Context) (string, bool) {
	if f.TokenSymbol == "" {
		return "", false
	}
	return f.TokenSymbol, true
}

func (f *FakePage) TradingFormPanel(ctx context.Context) (page.Handle, bool) {
	if !f.FormPresent {
		return nil, false
	}
	return "trading-form", true
}

func (f *FakePage) ExtractAvailableBalance(ctx context.Context, panel page.Handle) (float64, bool) {
	if !f.BalanceReadable {
		return 0, false
	}
	return f.Balance, true
}

func (f *FakePage) OpenOrdersRoot(ctx context.Context) (page.Handle, bool) {
	if !f.OrdersRootPresent {
		return nil, false
	}
	return "orders-root", true
}

func (f *FakePage) LimitOrdersContainer(root page.Handle) (page.Handle, bool) {
	if !f.ContainerPresent {
		return nil, false
	}
	return "limit-container", true
}

func (f *FakePage) LimitOrderRows(ctx context.Context, container page.Handle) ([]string, error) {
	if f.RowsErr != nil {
		return nil, f.RowsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Rows))
	copy(out, f.Rows)
	return out, nil
}

// SetRows replaces the visible limit-order rows.
func (f *FakePage) SetRows(rows []string) {
	f.mu.Lock()
	f.Rows = rows
	f.mu.Unlock()
}

func (f *FakePage) ReadLimitOrderState(ctx context.Context, container page.Handle) page.LimitOrderTabState {
	return f.TabState
}

func (f *FakePage) LoginPromptVisible(ctx context.Context) bool {
	return f.LoginVisible
}

func (f *FakePage) SelectOpenOrdersTab(ctx context.Context, root page.Handle) (bool, error) {
	if f.TabSelected {
		return false, nil
	}
	f.TabSelected = true
	f.record("select-open-orders-tab")
	return true, nil
}

func (f *FakePage) SelectBuyLimitMode(ctx context.Context, form page.Handle) error {
	f.record("select-buy-limit")
	return nil
}

func (f *FakePage) SetBuyPrice(ctx context.Context, form page.Handle, price string) error {
	f.mu.Lock()
	f.BuyPrice = price
	f.mu.Unlock()
	f.record("set-buy-price")
	return nil
}

func (f *FakePage) ReverseOrderEnabled(ctx context.Context, form page.Handle) (bool, error) {
	return f.ReverseOn, nil
}

func (f *FakePage) ToggleReverseOrder(ctx context.Context, form page.Handle) error {
	f.ReverseOn = !f.ReverseOn
	f.record("toggle-reverse")
	return nil
}

func (f *FakePage) SetReversePrice(ctx context.Context, form page.Handle, price string) error {
	f.mu.Lock()
	f.ReversePrice = price
	f.mu.Unlock()
	f.record("set-reverse-price")
	return nil
}

func (f *FakePage) SetAmountPercent(ctx context.Context, form page.Handle, percent int) error {
	f.mu.Lock()
	f.AmountPercent = percent
	f.mu.Unlock()
	f.record("set-amount-" + strconv.Itoa(percent))
	return nil
}

func (f *FakePage) ClickBuy(ctx context.Context, form page.Handle) error {
	if f.BuyClickErr != nil {
		return f.BuyClickErr
	}
	f.record("click-buy")
	return nil
}

func (f *FakePage) ClickConfirmation(ctx context.Context) (bool, error) {
	if !f.ConfirmReady {
		return false, nil
	}
	f.record("click-confirmation")
	return true, nil
}
