// Package sim implements the page seam against a simulated exchange, used
// for paper runs: a drifting mid price, a random trade tape, a balance
// ledger and orders that fill after a random delay.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tbencze/alpha-pilot/internal/page"
	"github.com/tbencze/alpha-pilot/pkg/types"
	"go.uber.org/zap"
)

const (
	tapeLength     = 30
	confirmLatency = 150 * time.Millisecond
	sellProfitBps  = 5
)

// Config holds simulation parameters.
type Config struct {
	TokenAddress string
	TokenSymbol  string
	StartBalance float64
	StartPrice   float64

	// FillDelayMin/Max bound how long placed orders stay open. SlowFillChance
	// is the probability a sell order takes 3x the max, slow enough to trip
	// the order monitor's escalation.
	FillDelayMin   time.Duration
	FillDelayMax   time.Duration
	SlowFillChance float64

	Seed   int64
	Logger *zap.Logger
}

// Page is a simulated exchange page. Safe for concurrent use; time advances
// lazily on reads, so there is no background goroutine to manage.
type Page struct {
	logger *zap.Logger
	cfg    Config
	url    string

	mu          sync.Mutex
	rng         *rand.Rand
	mid         float64
	balance     float64
	tape        []types.TradeSample
	lastStep    time.Time
	loginGate   bool
	tabSelected bool

	reverseOn     bool
	buyPrice      string
	reversePrice  string
	amountPercent int

	staged         bool
	confirmReadyAt time.Time

	orders []*simOrder
}

type simOrder struct {
	id       string
	side     page.OrderSide
	price    string
	notional float64
	fillAt   time.Time
}

// New creates a simulated page.
func New(cfg Config) (*Page, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.TokenSymbol == "" {
		cfg.TokenSymbol = "SIM"
	}
	if cfg.StartBalance <= 0 {
		cfg.StartBalance = 1000
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 0.02
	}
	if cfg.FillDelayMin <= 0 {
		cfg.FillDelayMin = 500 * time.Millisecond
	}
	if cfg.FillDelayMax < cfg.FillDelayMin {
		cfg.FillDelayMax = cfg.FillDelayMin + 2*time.Second
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Page{
		logger:   cfg.Logger,
		cfg:      cfg,
		url:      "https://sim.exchange/alpha/" + cfg.TokenAddress,
		rng:      rand.New(rand.NewSource(seed)),
		mid:      cfg.StartPrice,
		balance:  cfg.StartBalance,
		lastStep: time.Now(),
	}
	p.fillTape()

	return p, nil
}

// SetLoginGate toggles the simulated login prompt.
func (p *Page) SetLoginGate(visible bool) {
	p.mu.Lock()
	p.loginGate = visible
	p.mu.Unlock()
}

// URL returns the simulated page address.
func (p *Page) URL() string { return p.url }

// step advances the simulation to now: drifts the price, extends the tape
// and fills due orders.
func (p *Page) step() {
	now := time.Now()
	elapsed := now.Sub(p.lastStep)
	if elapsed >= 250*time.Millisecond {
		ticks := int(elapsed / (250 * time.Millisecond))
		if ticks > tapeLength {
			ticks = tapeLength
		}
		for i := 0; i < ticks; i++ {
			p.driftOnce(now)
		}
		p.lastStep = now
	}

	p.fillDueOrders(now)
}

func (p *Page) driftOnce(now time.Time) {
	// Random walk within +-0.3% per tick.
	p.mid *= 1 + (p.rng.Float64()-0.5)*0.006
	if p.mid <= 0 {
		p.mid = p.cfg.StartPrice
	}

	sample := types.TradeSample{
		Time:     now.Format("15:04:05"),
		Price:    p.mid * (1 + (p.rng.Float64()-0.5)*0.002),
		Quantity: 10 + p.rng.Float64()*500,
	}
	p.tape = append(p.tape, sample)
	if len(p.tape) > tapeLength {
		p.tape = p.tape[len(p.tape)-tapeLength:]
	}
}

func (p *Page) fillTape() {
	now := time.Now()
	for len(p.tape) < tapeLength {
		p.driftOnce(now)
	}
}

func (p *Page) fillDueOrders(now time.Time) {
	var open []*simOrder
	for _, o := range p.orders {
		if now.Before(o.fillAt) {
			open = append(open, o)
			continue
		}

		switch o.side {
		case page.SideBuy:
			// Filled buy: the auto-sell leg goes on the book.
			p.logger.Debug("sim-buy-filled", zap.String("order-id", o.id))
			open = append(open, p.newOrder(page.SideSell, p.reversePrice, o.notional, now))
		case page.SideSell:
			// Filled sell: the round trip completes with a sliver of profit.
			p.balance += o.notional * (1 + sellProfitBps/10000.0)
			p.logger.Debug("sim-sell-filled",
				zap.String("order-id", o.id),
				zap.Float64("balance", p.balance))
		}
	}
	p.orders = open
}

func (p *Page) newOrder(side page.OrderSide, price string, notional float64, now time.Time) *simOrder {
	delay := p.cfg.FillDelayMin +
		time.Duration(p.rng.Int63n(int64(p.cfg.FillDelayMax-p.cfg.FillDelayMin)+1))
	if side == page.SideSell && p.rng.Float64() < p.cfg.SlowFillChance {
		delay = 3 * p.cfg.FillDelayMax
	}

	return &simOrder{
		id:       uuid.NewString(),
		side:     side,
		price:    price,
		notional: notional,
		fillAt:   now.Add(delay),
	}
}

func (p *Page) FindTradeHistoryPanel(ctx context.Context) (page.Handle, bool) {
	return "sim-trade-history", true
}

func (p *Page) ExtractTradeHistorySamples(ctx context.Context, panel page.Handle) ([]types.TradeSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step()

	out := make([]types.TradeSample, len(p.tape))
	copy(out, p.tape)
	return out, nil
}

func (p *Page) ExtractTokenSymbol(ctx context.Context) (string, bool) {
	return p.cfg.TokenSymbol, true
}

func (p *Page) TradingFormPanel(ctx context.Context) (page.Handle, bool) {
	return "sim-trading-form", true
}

func (p *Page) ExtractAvailableBalance(ctx context.Context, panel page.Handle) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step()
	return p.balance, true
}

func (p *Page) OpenOrdersRoot(ctx context.Context) (page.Handle, bool) {
	return "sim-open-orders", true
}

func (p *Page) LimitOrdersContainer(root page.Handle) (page.Handle, bool) {
	return "sim-limit-orders", true
}

func (p *Page) LimitOrderRows(ctx context.Context, container page.Handle) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step()

	rows := make([]string, 0, len(p.orders))
	for _, o := range p.orders {
		side := "Buy"
		if o.side == page.SideSell {
			side = "Sell"
		}
		rows = append(rows, fmt.Sprintf("Limit %s %s / %.2f %s", side, o.price, o.notional, p.cfg.TokenSymbol))
	}
	return rows, nil
}

func (p *Page) ReadLimitOrderState(ctx context.Context, container page.Handle) page.LimitOrderTabState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step()

	if len(p.orders) == 0 {
		return page.LimitOrdersEmpty
	}
	return page.LimitOrdersNonEmpty
}

func (p *Page) LoginPromptVisible(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loginGate
}

func (p *Page) SelectOpenOrdersTab(ctx context.Context, root page.Handle) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tabSelected {
		return false, nil
	}
	p.tabSelected = true
	return true, nil
}

func (p *Page) SelectBuyLimitMode(ctx context.Context, form page.Handle) error {
	return nil
}

func (p *Page) SetBuyPrice(ctx context.Context, form page.Handle, price string) error {
	p.mu.Lock()
	p.buyPrice = price
	p.mu.Unlock()
	return nil
}

func (p *Page) ReverseOrderEnabled(ctx context.Context, form page.Handle) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reverseOn, nil
}

func (p *Page) ToggleReverseOrder(ctx context.Context, form page.Handle) error {
	p.mu.Lock()
	p.reverseOn = !p.reverseOn
	p.mu.Unlock()
	return nil
}

func (p *Page) SetReversePrice(ctx context.Context, form page.Handle, price string) error {
	p.mu.Lock()
	p.reversePrice = price
	p.mu.Unlock()
	return nil
}

func (p *Page) SetAmountPercent(ctx context.Context, form page.Handle, percent int) error {
	p.mu.Lock()
	p.amountPercent = percent
	p.mu.Unlock()
	return nil
}

func (p *Page) ClickBuy(ctx context.Context, form page.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buyPrice == "" {
		return fmt.Errorf("buy price not set")
	}
	if _, err := strconv.ParseFloat(p.buyPrice, 64); err != nil {
		return fmt.Errorf("buy price %q not a number: %w", p.buyPrice, err)
	}

	p.staged = true
	p.confirmReadyAt = time.Now().Add(confirmLatency)
	return nil
}

// ClickConfirmation models the confirmation dialog appearing shortly after
// the buy click. The first click past that point submits the order.
func (p *Page) ClickConfirmation(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.staged || time.Now().Before(p.confirmReadyAt) {
		return false, nil
	}
	p.staged = false

	percent := p.amountPercent
	if percent <= 0 {
		percent = 100
	}
	notional := p.balance * float64(percent) / 100

	p.balance -= notional
	p.orders = append(p.orders, p.newOrder(page.SideBuy, p.buyPrice, notional, time.Now()))

	p.logger.Info("sim-order-submitted",
		zap.String("buy-price", p.buyPrice),
		zap.String("reverse-price", p.reversePrice),
		zap.Float64("notional", notional))

	return true, nil
}

// Balance returns the current ledger balance.
func (p *Page) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// OpenOrderCount returns the number of resting orders.
func (p *Page) OpenOrderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step()
	return len(p.orders)
}
