// Package engine implements the page-side automation engine: the state
// machine that runs evaluation cycles against the exchange page, places
// orders through the placer and reports results to the scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tbencze/alpha-pilot/internal/page"
	"github.com/tbencze/alpha-pilot/internal/placer"
	"github.com/tbencze/alpha-pilot/internal/pricing"
	"github.com/tbencze/alpha-pilot/internal/state"
	"github.com/tbencze/alpha-pilot/pkg/bus"
	"github.com/tbencze/alpha-pilot/pkg/cache"
	"github.com/tbencze/alpha-pilot/pkg/types"
	"go.uber.org/zap"
)

// IntervalMode selects the randomized delay window between loop cycles.
type IntervalMode string

const (
	IntervalFast   IntervalMode = "fast"   // 1000-3000ms
	IntervalMedium IntervalMode = "medium" // 5000-10000ms
)

// delayWindow returns the [min,max] delay for the mode. Randomized delays
// avoid a fixed-period automation signature.
func delayWindow(mode IntervalMode) (time.Duration, time.Duration) {
	if mode == IntervalFast {
		return 1000 * time.Millisecond, 3000 * time.Millisecond
	}
	return 5000 * time.Millisecond, 10000 * time.Millisecond
}

const snapshotTTL = 30 * time.Second

// OrderPlacer is the placement seam; *placer.Placer implements it.
type OrderPlacer interface {
	EnsureLimitOrderPlaced(ctx context.Context, referencePrice, buyOffsetPct, sellOffsetPct float64) (*placer.Result, error)
}

// SettingsSource supplies the current operator settings at cycle time.
type SettingsSource interface {
	CurrentSettings(ctx context.Context) (state.Settings, error)
}

// Tracker is the order-monitor control seam.
type Tracker interface {
	SetEnabled(enabled bool)
}

// Config holds engine configuration.
type Config struct {
	Page     page.Page
	Sender   bus.Sender
	Placer   OrderPlacer
	Settings SettingsSource
	Tracker  Tracker     // optional
	Cache    cache.Cache // optional
	Interval IntervalMode
	Logger   *zap.Logger
}

// Engine is constructed once per page session. All the flags that gate its
// behavior live on the instance, never at package scope.
type Engine struct {
	page     page.Page
	sender   bus.Sender
	placer   OrderPlacer
	settings SettingsSource
	tracker  Tracker
	cache    cache.Cache
	interval IntervalMode
	logger   *zap.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	randD func(min, max time.Duration) time.Duration

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	mu                   sync.Mutex
	enabled              bool
	looping              bool
	loopCancel           context.CancelFunc
	evaluationInProgress bool
	loginErrorDispatched bool
	dispatchDisabled     bool

	// Engine-local daily tally backing the order-history snapshot.
	tallyDate   string
	tallyVolume float64
	tallyCount  int
}

type cycleOptions struct {
	bypassEnabled bool
	skipPlacement bool
}

// New creates an engine.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Page == nil {
		return nil, fmt.Errorf("page cannot be nil")
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if cfg.Placer == nil {
		return nil, fmt.Errorf("placer cannot be nil")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Interval == "" {
		cfg.Interval = IntervalMedium
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	return &Engine{
		page:      cfg.Page,
		sender:    cfg.Sender,
		placer:    cfg.Placer,
		settings:  cfg.Settings,
		tracker:   cfg.Tracker,
		cache:     cfg.Cache,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
		now:       time.Now,
		sleep:     sleepCtx,
		randD: func(min, max time.Duration) time.Duration {
			return min + time.Duration(rand.Int63n(int64(max-min)+1))
		},
		runCtx:    runCtx,
		runCancel: runCancel,
	}, nil
}

// SetEnabled transitions the engine between Disabled and Enabled. Enabling
// starts the evaluation loop; disabling tears it down at its next suspension
// point and stands down order tracking.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	was := e.enabled
	e.enabled = enabled
	e.mu.Unlock()

	if enabled == was {
		return
	}

	if enabled {
		e.logger.Info("engine-enabled")
		e.startLoop()
		return
	}

	e.logger.Info("engine-disabled")
	e.stopLoop()
	if e.tracker != nil {
		e.tracker.SetEnabled(false)
	}
}

// Enabled reports whether automation is on.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Close tears the engine down for good.
func (e *Engine) Close() {
	e.SetEnabled(false)
	e.runCancel()
	e.wg.Wait()
	e.logger.Info("engine-closed")
}

// HandleMessage is the bus handler for engine-bound messages. Commands are
// acknowledged on receipt and executed asynchronously; requests answer
// inline.
func (e *Engine) HandleMessage(ctx context.Context, env types.Envelope) types.Response {
	switch env.Kind {
	case types.KindRunTask:
		e.spawnCycle(cycleOptions{})
		return types.Ack()

	case types.KindRunTaskOnce:
		// Manual run: works while disabled, observation only.
		e.spawnCycle(cycleOptions{bypassEnabled: true, skipPlacement: true})
		return types.Ack()

	case types.KindRequestTokenSymbol:
		symbol, ok := e.tokenSymbol(ctx)
		if !ok {
			return types.Nack(errors.New("token symbol unavailable"))
		}
		return types.AckValue(symbol)

	case types.KindRequestCurrentBalance:
		balance, ok := e.currentBalance(ctx)
		if !ok {
			return types.Nack(errors.New("balance unavailable"))
		}
		return types.AckValue(strconv.FormatFloat(balance, 'f', -1, 64))

	case types.KindControlStart:
		e.SetEnabled(true)
		return types.Ack()

	case types.KindControlStop:
		e.SetEnabled(false)
		return types.Ack()

	default:
		return types.Nack(fmt.Errorf("kind %s not handled by engine", env.Kind))
	}
}

func (e *Engine) spawnCycle(opts cycleOptions) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runEvaluationCycle(e.runCtx, opts)
	}()
}

func (e *Engine) startLoop() {
	e.mu.Lock()
	if e.looping {
		e.mu.Unlock()
		return
	}
	e.looping = true
	loopCtx, cancel := context.WithCancel(e.runCtx)
	e.loopCancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(loopCtx)
}

func (e *Engine) stopLoop() {
	e.mu.Lock()
	cancel := e.loopCancel
	e.loopCancel = nil
	e.looping = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// loop is a self-terminating chain: each cycle reschedules the next only if
// automation is still enabled afterwards, so a slow cycle can never overlap
// the next one.
func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	min, max := delayWindow(e.interval)

	for {
		e.runEvaluationCycle(ctx, cycleOptions{})

		if !e.Enabled() || ctx.Err() != nil {
			return
		}

		delay := e.randD(min, max)
		err := e.sleep(ctx, delay)
		if err != nil {
			return
		}

		if !e.Enabled() {
			return
		}
	}
}

// runEvaluationCycle runs one evaluation. At most one cycle is in flight;
// concurrent calls are dropped, not queued. Nothing escapes a cycle: every
// failure ends up in a dispatched TASK_COMPLETE or TASK_ERROR.
func (e *Engine) runEvaluationCycle(ctx context.Context, opts cycleOptions) {
	e.mu.Lock()
	if e.evaluationInProgress {
		e.mu.Unlock()
		CyclesTotal.WithLabelValues("dropped").Inc()
		return
	}
	e.evaluationInProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.evaluationInProgress = false
		e.mu.Unlock()
	}()

	start := e.now()
	runID := uuid.NewString()
	defer func() {
		CycleDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if e.page.LoginPromptVisible(ctx) {
		e.handleLoginGate(ctx)
		CyclesTotal.WithLabelValues("login-gated").Inc()
		return
	}
	e.clearLoginGate()

	if !opts.bypassEnabled && !e.Enabled() {
		return
	}

	outcome := e.evaluate(ctx, runID, opts)
	CyclesTotal.WithLabelValues(outcome).Inc()
}

// evaluate is the body of a cycle; returns the metric outcome label.
func (e *Engine) evaluate(ctx context.Context, runID string, opts cycleOptions) string {
	panel, ok := e.page.FindTradeHistoryPanel(ctx)
	if !ok {
		e.reportFailure(ctx, runID, "trade history panel not found")
		return "failure"
	}

	samples, err := e.page.ExtractTradeHistorySamples(ctx, panel)
	if err != nil {
		e.reportFailure(ctx, runID, fmt.Sprintf("trade samples unreadable: %v", err))
		return "failure"
	}
	if len(samples) == 0 {
		e.reportFailure(ctx, runID, "no trade samples")
		return "failure"
	}

	referencePrice, ok := pricing.VWAP(samples)
	if !ok {
		e.reportFailure(ctx, runID, "reference price unavailable")
		return "failure"
	}

	settings, err := e.settings.CurrentSettings(ctx)
	if err != nil {
		e.reportFailure(ctx, runID, fmt.Sprintf("settings unavailable: %v", err))
		return "failure"
	}

	symbol, _ := e.tokenSymbol(ctx)
	snapshot := e.historySnapshot()

	meta := &types.TaskMeta{
		AveragePrice: referencePrice,
		TradeCount:   snapshot.BuyOrderCount,
		TokenSymbol:  symbol,
	}

	success := true
	var details []string

	// Ceiling checks gate placement for this cycle only; the scheduler owns
	// the decision to disable automation outright.
	var ceilings []string
	if snapshot.AlphaPoints >= settings.PointsTarget {
		ceilings = append(ceilings, fmt.Sprintf("points target reached (%d/%d)", snapshot.AlphaPoints, settings.PointsTarget))
	}
	if snapshot.BuyOrderCount >= settings.TradeCountCeiling() {
		ceilings = append(ceilings, fmt.Sprintf("daily trade limit reached (%d/%d)", snapshot.BuyOrderCount, settings.TradeCountCeiling()))
	}

	switch {
	case opts.skipPlacement:
		details = append(details, "observation only, placement skipped")

	case len(ceilings) > 0:
		details = append(details, ceilings...)

	default:
		result, err := e.placer.EnsureLimitOrderPlaced(ctx, referencePrice, settings.BuyPriceOffset, settings.SellPriceOffset)
		if err != nil {
			// Placer failures are folded into the result, never propagated.
			success = false
			details = append(details, fmt.Sprintf("placement failed: %v", err))
		} else {
			switch result.Outcome {
			case placer.OutcomePlaced:
				meta.BuyVolumeDelta = result.BuyVolume
				meta.AvailableBalanceBeforeOrder = result.AvailableBalanceBeforeOrder
				e.recordPlacement(result.BuyVolume)
				snapshot = e.historySnapshot()
				meta.TradeCount = snapshot.BuyOrderCount
				details = append(details, "order placed")
				e.dispatch(ctx, types.KindOrderHistorySnapshot, snapshot)
			case placer.OutcomeCooldown:
				details = append(details, "cooldown: "+result.Reason)
			default:
				details = append(details, "placement skipped: "+result.Reason)
			}
		}
	}

	// Post-order balance snapshot, regardless of placement outcome.
	if balance, ok := e.currentBalance(ctx); ok {
		meta.CurrentBalance = balance
		e.dispatch(ctx, types.KindBalanceUpdate, types.BalanceUpdate{
			CurrentBalance: &balance,
			TokenSymbol:    symbol,
		})
	}

	e.logger.Info("evaluation-cycle-complete",
		zap.String("run-id", runID),
		zap.Bool("success", success),
		zap.Float64("reference-price", referencePrice),
		zap.Strings("details", details))

	e.dispatch(ctx, types.KindTaskComplete, types.TaskComplete{
		Success: success,
		Details: strings.Join(details, "; "),
		Meta:    meta,
	})

	if success {
		return "success"
	}
	return "failure"
}

// handleLoginGate emits one TASK_ERROR per continuous login-gated stretch.
func (e *Engine) handleLoginGate(ctx context.Context) {
	e.mu.Lock()
	dispatched := e.loginErrorDispatched
	e.loginErrorDispatched = true
	e.mu.Unlock()

	if dispatched {
		return
	}

	e.logger.Warn("login-required")
	e.dispatch(ctx, types.KindTaskError, types.TaskError{
		Message: "login required: page is behind a login prompt",
	})
}

func (e *Engine) clearLoginGate() {
	e.mu.Lock()
	e.loginErrorDispatched = false
	e.mu.Unlock()
}

func (e *Engine) reportFailure(ctx context.Context, runID, details string) {
	e.logger.Warn("evaluation-cycle-failed",
		zap.String("run-id", runID),
		zap.String("details", details))
	e.dispatch(ctx, types.KindTaskComplete, types.TaskComplete{
		Success: false,
		Details: details,
	})
}

// dispatch sends best-effort. A closed channel latches dispatch off for the
// lifetime of the engine; there is no recovery path short of reconstruction.
func (e *Engine) dispatch(ctx context.Context, kind types.Kind, payload interface{}) {
	e.mu.Lock()
	disabled := e.dispatchDisabled
	e.mu.Unlock()

	if disabled {
		return
	}

	env, err := types.NewEnvelope(kind, payload)
	if err != nil {
		e.logger.Error("dispatch-encode-failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}

	resp, err := e.sender.Send(ctx, env)
	if err != nil {
		DispatchFailuresTotal.Inc()
		e.logger.Warn("dispatch-failed", zap.String("kind", string(kind)), zap.Error(err))
		if errors.Is(err, bus.ErrChannelClosed) {
			e.mu.Lock()
			e.dispatchDisabled = true
			e.mu.Unlock()
			e.logger.Error("dispatch-disabled-permanently")
		}
		return
	}

	if !resp.Acknowledged {
		e.logger.Warn("dispatch-not-acknowledged",
			zap.String("kind", string(kind)),
			zap.String("error", resp.Error))
	}
}

// recordPlacement folds a confirmed placement into the daily tally.
func (e *Engine) recordPlacement(buyVolume float64) {
	date := state.DateOf(e.now())

	e.mu.Lock()
	if e.tallyDate != date {
		e.tallyDate = date
		e.tallyVolume = 0
		e.tallyCount = 0
	}
	e.tallyVolume += buyVolume
	e.tallyCount++
	e.mu.Unlock()

	if e.cache != nil {
		e.cache.Delete(cache.KeyOrderHistorySnapshot)
	}
}

// historySnapshot returns the current day's order-history snapshot, cached
// between cycles.
func (e *Engine) historySnapshot() types.OrderHistorySnapshot {
	if e.cache != nil {
		if v, ok := e.cache.Get(cache.KeyOrderHistorySnapshot); ok {
			if snap, ok := v.(types.OrderHistorySnapshot); ok && snap.Date == state.DateOf(e.now()) {
				return snap
			}
		}
	}

	now := e.now()
	date := state.DateOf(now)

	e.mu.Lock()
	volume := e.tallyVolume
	count := e.tallyCount
	if e.tallyDate != date {
		volume = 0
		count = 0
	}
	e.mu.Unlock()

	stats := pricing.CalculateAlphaPointStats(volume)
	snap := types.OrderHistorySnapshot{
		Date:               date,
		TotalBuyVolume:     volume,
		BuyOrderCount:      count,
		AlphaPoints:        stats.Points,
		NextThresholdDelta: stats.NextThresholdDelta,
		FetchedAt:          now,
		Source:             "engine",
	}

	if e.cache != nil {
		e.cache.Set(cache.KeyOrderHistorySnapshot, snap, snapshotTTL)
	}

	return snap
}

func (e *Engine) tokenSymbol(ctx context.Context) (string, bool) {
	if e.cache != nil {
		if v, ok := e.cache.Get(cache.KeyTokenSymbol); ok {
			if symbol, ok := v.(string); ok && symbol != "" {
				return symbol, true
			}
		}
	}

	symbol, ok := e.page.ExtractTokenSymbol(ctx)
	if !ok {
		return "", false
	}

	if e.cache != nil {
		e.cache.Set(cache.KeyTokenSymbol, symbol, 5*time.Minute)
	}

	return symbol, true
}

func (e *Engine) currentBalance(ctx context.Context) (float64, bool) {
	form, ok := e.page.TradingFormPanel(ctx)
	if !ok {
		return 0, false
	}
	return e.page.ExtractAvailableBalance(ctx, form)
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
