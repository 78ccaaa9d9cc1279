// Package page defines the narrow read/interact contract the automation
// core holds against the exchange page. The core never touches the page
// directly; it only sees these capabilities, one implementation per
// market-UI version (plus the sim used for paper runs).
package page

import (
	"context"

	"github.com/tbencze/alpha-pilot/pkg/types"
)

// Handle is an opaque reference to an element subtree on the page.
type Handle interface{}

// LimitOrderTabState is the resolved state of the open-orders / limit view.
type LimitOrderTabState int

const (
	// LimitOrdersUnknown means neither the empty-state text nor an order row
	// could be found.
	LimitOrdersUnknown LimitOrderTabState = iota
	// LimitOrdersEmpty means the explicit empty-state text is visible.
	LimitOrdersEmpty
	// LimitOrdersNonEmpty means at least one order row is present.
	LimitOrdersNonEmpty
)

// OrderSide classifies an open-order row.
type OrderSide int

const (
	SideUnknown OrderSide = iota
	SideBuy
	SideSell
)

// Reader covers the read-only page lookups the engine and monitor need.
// Absent elements report ok=false; only text that exists but cannot be
// parsed is an error.
type Reader interface {
	// FindTradeHistoryPanel locates the live trade-history panel.
	FindTradeHistoryPanel(ctx context.Context) (Handle, bool)

	// ExtractTradeHistorySamples scrapes the trade rows from the panel.
	ExtractTradeHistorySamples(ctx context.Context, panel Handle) ([]types.TradeSample, error)

	// ExtractTokenSymbol reads the symbol of the token being traded.
	ExtractTokenSymbol(ctx context.Context) (string, bool)

	// TradingFormPanel locates the order-entry form.
	TradingFormPanel(ctx context.Context) (Handle, bool)

	// ExtractAvailableBalance reads the spendable balance from the form.
	ExtractAvailableBalance(ctx context.Context, panel Handle) (float64, bool)

	// OpenOrdersRoot locates the open-orders section.
	OpenOrdersRoot(ctx context.Context) (Handle, bool)

	// LimitOrdersContainer locates the limit-order list under the root.
	LimitOrdersContainer(root Handle) (Handle, bool)

	// LimitOrderRows returns the visible row texts of the container.
	LimitOrderRows(ctx context.Context, container Handle) ([]string, error)

	// ReadLimitOrderState resolves the container's current tab state.
	ReadLimitOrderState(ctx context.Context, container Handle) LimitOrderTabState

	// LoginPromptVisible reports whether the page is gated behind login.
	LoginPromptVisible(ctx context.Context) bool
}

// Interactor covers the UI mutations the placer drives. Each call maps to a
// single user gesture; callers insert their own pacing between them.
type Interactor interface {
	// SelectOpenOrdersTab ensures the open-orders / limit sub-tab is shown.
	// Reports whether a click was needed.
	SelectOpenOrdersTab(ctx context.Context, root Handle) (clicked bool, err error)

	// SelectBuyLimitMode switches the order form to Buy + Limit.
	SelectBuyLimitMode(ctx context.Context, form Handle) error

	// SetBuyPrice fills the limit price input.
	SetBuyPrice(ctx context.Context, form Handle, price string) error

	// ReverseOrderEnabled reports whether the auto-sell toggle is on.
	ReverseOrderEnabled(ctx context.Context, form Handle) (bool, error)

	// ToggleReverseOrder flips the auto-sell toggle.
	ToggleReverseOrder(ctx context.Context, form Handle) error

	// SetReversePrice fills the auto-sell price input.
	SetReversePrice(ctx context.Context, form Handle, price string) error

	// SetAmountPercent drags the amount slider to the given percentage.
	SetAmountPercent(ctx context.Context, form Handle, percent int) error

	// ClickBuy submits the order form.
	ClickBuy(ctx context.Context, form Handle) error

	// ClickConfirmation clicks the confirmation dialog button if present.
	// Reports ok=false while the dialog has not appeared yet.
	ClickConfirmation(ctx context.Context) (bool, error)
}

// Page is the full capability surface of one exchange page.
type Page interface {
	Reader
	Interactor

	// URL returns the page address, used for tab targeting.
	URL() string
}
