// Package placer drives the multi-step UI sequence that submits a limit buy
// with an automatic reverse (sell) order.
package placer

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/tbencze/alpha-pilot/internal/page"
	"github.com/tbencze/alpha-pilot/internal/pricing"
	"go.uber.org/zap"
)

// Timing constants. The jitter windows are a design constraint, not a
// correctness one: uniform pacing between field mutations is an automation
// signature the exchange can detect.
const (
	DefaultCooldown     = 5 * time.Second
	verifyTimeout       = 2 * time.Second
	verifyInterval      = 100 * time.Millisecond
	confirmTimeout      = 2 * time.Second
	confirmInterval     = 100 * time.Millisecond
	confirmDelayMin     = 300 * time.Millisecond
	confirmDelayMax     = 800 * time.Millisecond
	jitterMin           = 200 * time.Millisecond
	jitterMax           = 1000 * time.Millisecond
	frameWait           = 50 * time.Millisecond
	monitorArmDelay     = 500 * time.Millisecond
	priceDecimalDigits  = 8
	amountSliderPercent = 100
)

// OrderTracker is armed after a confirmed placement; the order monitor
// implements it.
type OrderTracker interface {
	SetEnabled(enabled bool)
}

// Placer submits paired limit orders through the page seam.
type Placer struct {
	page    page.Page
	tracker OrderTracker
	logger  *zap.Logger

	cooldown time.Duration

	// Injectable clocks and pacing for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	after func(d time.Duration, fn func())
	randD func(min, max time.Duration) time.Duration

	mu           sync.Mutex
	lastPlacedAt time.Time
}

// Config holds placer configuration.
type Config struct {
	Page     page.Page
	Tracker  OrderTracker // optional
	Cooldown time.Duration
	Logger   *zap.Logger
}

// New creates a placer.
func New(cfg *Config) (*Placer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Page == nil {
		return nil, fmt.Errorf("page cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	return &Placer{
		page:     cfg.Page,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
		cooldown: cfg.Cooldown,
		now:      time.Now,
		sleep:    sleepCtx,
		after:    func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		randD: func(min, max time.Duration) time.Duration {
			return min + time.Duration(rand.Int63n(int64(max-min)+1))
		},
	}, nil
}

// EnsureLimitOrderPlaced places a paired limit buy/auto-sell order derived
// from the reference price, unless existing orders, unverifiable state or
// the cooldown say otherwise. It returns an error only for structural
// problems: missing panels, unreadable balance, a confirmation dialog that
// never appears.
func (p *Placer) EnsureLimitOrderPlaced(ctx context.Context, referencePrice, buyOffsetPct, sellOffsetPct float64) (*Result, error) {
	start := p.now()
	defer func() {
		PlacementDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	root, ok := p.page.OpenOrdersRoot(ctx)
	if !ok {
		return nil, fmt.Errorf("open-orders root not found")
	}

	clicked, err := p.page.SelectOpenOrdersTab(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("select open-orders tab: %w", err)
	}
	if clicked {
		// Let the UI settle across the frame boundary before reading it.
		err = p.sleep(ctx, frameWait)
		if err != nil {
			return nil, err
		}
	}

	state, err := p.resolveLimitOrderState(ctx, root)
	if err != nil {
		return nil, err
	}

	switch state {
	case page.LimitOrdersNonEmpty:
		PlacementsTotal.WithLabelValues("skipped").Inc()
		return &Result{Outcome: OutcomeSkipped, Reason: "existing orders present"}, nil
	case page.LimitOrdersUnknown:
		PlacementsTotal.WithLabelValues("skipped").Inc()
		return &Result{Outcome: OutcomeSkipped, Reason: "unable to verify order state"}, nil
	}

	p.mu.Lock()
	sinceLast := p.now().Sub(p.lastPlacedAt)
	onCooldown := !p.lastPlacedAt.IsZero() && sinceLast < p.cooldown
	p.mu.Unlock()

	if onCooldown {
		PlacementsTotal.WithLabelValues("cooldown").Inc()
		p.logger.Info("placement-on-cooldown", zap.Duration("since-last", sinceLast))
		return &Result{
			Outcome: OutcomeCooldown,
			Reason:  fmt.Sprintf("last order placed %s ago", sinceLast.Round(time.Millisecond)),
		}, nil
	}

	form, ok := p.page.TradingFormPanel(ctx)
	if !ok {
		return nil, fmt.Errorf("trading form not found")
	}

	balance, ok := p.page.ExtractAvailableBalance(ctx, form)
	if !ok || balance <= 0 {
		return nil, fmt.Errorf("available balance unreadable or zero")
	}

	prices := pricing.CalculatePrices(referencePrice, buyOffsetPct, sellOffsetPct)

	err = p.configureOrder(ctx, form, prices)
	if err != nil {
		return nil, err
	}

	err = p.confirmOrder(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.lastPlacedAt = p.now()
	p.mu.Unlock()

	if p.tracker != nil {
		p.after(monitorArmDelay, func() { p.tracker.SetEnabled(true) })
	}

	PlacementsTotal.WithLabelValues("placed").Inc()
	p.logger.Info("limit-order-placed",
		zap.Float64("reference-price", referencePrice),
		zap.String("buy-price", formatPrice(prices.Buy)),
		zap.String("sell-price", formatPrice(prices.Sell)),
		zap.Float64("buy-volume", balance))

	return &Result{
		Outcome:                     OutcomePlaced,
		BuyVolume:                   balance,
		AvailableBalanceBeforeOrder: balance,
	}, nil
}

// resolveLimitOrderState polls the open-orders view until it resolves to
// Empty or NonEmpty, or the verification budget runs out (Unknown).
func (p *Placer) resolveLimitOrderState(ctx context.Context, root page.Handle) (page.LimitOrderTabState, error) {
	deadline := p.now().Add(verifyTimeout)

	for {
		container, ok := p.page.LimitOrdersContainer(root)
		if ok {
			state := p.page.ReadLimitOrderState(ctx, container)
			if state != page.LimitOrdersUnknown {
				return state, nil
			}
		}

		if !p.now().Before(deadline) {
			return page.LimitOrdersUnknown, nil
		}

		err := p.sleep(ctx, verifyInterval)
		if err != nil {
			return page.LimitOrdersUnknown, err
		}
	}
}

// configureOrder walks the order form: buy+limit mode, prices, reverse
// toggle, full amount, submit. Jitter between mutations, see package doc.
func (p *Placer) configureOrder(ctx context.Context, form page.Handle, prices pricing.OrderPrices) error {
	err := p.page.SelectBuyLimitMode(ctx, form)
	if err != nil {
		return fmt.Errorf("select buy limit mode: %w", err)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{name: "set buy price", run: func() error {
			return p.page.SetBuyPrice(ctx, form, formatPrice(prices.Buy))
		}},
		{name: "enable reverse order", run: func() error {
			on, err := p.page.ReverseOrderEnabled(ctx, form)
			if err != nil {
				return err
			}
			if on {
				return nil
			}
			return p.page.ToggleReverseOrder(ctx, form)
		}},
		{name: "set amount", run: func() error {
			return p.page.SetAmountPercent(ctx, form, amountSliderPercent)
		}},
		{name: "set reverse price", run: func() error {
			return p.page.SetReversePrice(ctx, form, formatPrice(prices.Sell))
		}},
		{name: "click buy", run: func() error {
			return p.page.ClickBuy(ctx, form)
		}},
	}

	for _, step := range steps {
		err = p.sleep(ctx, p.randD(jitterMin, jitterMax))
		if err != nil {
			return err
		}

		err = step.run()
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return nil
}

// confirmOrder waits out the humanizing delay, then polls for the
// confirmation dialog and clicks it once found.
func (p *Placer) confirmOrder(ctx context.Context) error {
	err := p.sleep(ctx, p.randD(confirmDelayMin, confirmDelayMax))
	if err != nil {
		return err
	}

	deadline := p.now().Add(confirmTimeout)
	for {
		clicked, err := p.page.ClickConfirmation(ctx)
		if err != nil {
			return fmt.Errorf("click confirmation: %w", err)
		}
		if clicked {
			return nil
		}

		if !p.now().Before(deadline) {
			return fmt.Errorf("confirmation dialog never appeared")
		}

		err = p.sleep(ctx, confirmInterval)
		if err != nil {
			return err
		}
	}
}

// LastPlacedAt returns the time of the last confirmed placement.
func (p *Placer) LastPlacedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPlacedAt
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', priceDecimalDigits, 64)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
