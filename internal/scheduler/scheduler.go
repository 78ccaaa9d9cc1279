// Package scheduler implements the background orchestrator: alarm-driven
// wake-ups, tab targeting, run-command delivery with retry, daily aggregate
// bookkeeping and the auto-stop decision.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tbencze/alpha-pilot/internal/state"
	"github.com/tbencze/alpha-pilot/internal/storage"
	"github.com/tbencze/alpha-pilot/pkg/bus"
	"github.com/tbencze/alpha-pilot/pkg/notify"
	"github.com/tbencze/alpha-pilot/pkg/types"
	"go.uber.org/zap"
)

const (
	// DefaultWakeInterval is the periodic alarm cadence.
	DefaultWakeInterval = time.Minute

	maxDeliveryAttempts = 12
)

// Config holds scheduler configuration.
type Config struct {
	Store        storage.Store
	Tabs         bus.TabGateway
	Alarms       AlarmGateway
	Notifier     notify.Notifier // optional
	WakeInterval time.Duration
	Logger       *zap.Logger
}

// Scheduler coordinates page-side engines over the bus and owns the
// persisted state.
type Scheduler struct {
	store        storage.Store
	tabs         bus.TabGateway
	alarms       AlarmGateway
	notifier     notify.Notifier
	wakeInterval time.Duration
	logger       *zap.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	wg sync.WaitGroup

	mu             sync.Mutex
	runInProgress  bool
	preferredTabID string
	latestBalance  *float64
}

// resultRecorder is implemented by stores that keep a task-result history.
type resultRecorder interface {
	AppendTaskResult(ctx context.Context, result *state.TaskResultSnapshot) error
}

// New creates a scheduler.
func New(cfg *Config) (*Scheduler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Tabs == nil {
		return nil, fmt.Errorf("tab gateway cannot be nil")
	}
	if cfg.Alarms == nil {
		return nil, fmt.Errorf("alarm gateway cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.WakeInterval <= 0 {
		cfg.WakeInterval = DefaultWakeInterval
	}

	return &Scheduler{
		store:        cfg.Store,
		tabs:         cfg.Tabs,
		alarms:       cfg.Alarms,
		notifier:     cfg.Notifier,
		wakeInterval: cfg.WakeInterval,
		logger:       cfg.Logger,
		now:          time.Now,
		sleep:        sleepCtx,
	}, nil
}

// Start bootstraps the alarm to match the persisted enabled flag and, when
// enabled, kicks off an immediate run.
func (s *Scheduler) Start(ctx context.Context) error {
	st, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	s.logger.Info("scheduler-started",
		zap.Bool("enabled", st.IsEnabled),
		zap.Duration("wake-interval", s.wakeInterval))

	if st.IsEnabled {
		s.armAlarm()
		s.TriggerRun()
	}

	return nil
}

// Close disarms the alarm and waits for in-flight runs.
func (s *Scheduler) Close() {
	s.alarms.Clear()
	s.wg.Wait()
	s.logger.Info("scheduler-closed")
}

func (s *Scheduler) armAlarm() {
	s.alarms.Schedule(s.wakeInterval, s.TriggerRun)
}

// TriggerRun requests an immediate run cycle. A second request while one is
// pending is a no-op.
func (s *Scheduler) TriggerRun() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.RunCycle(context.Background())
		if err != nil {
			s.logger.Warn("run-cycle-failed", zap.Error(err))
		}
	}()
}

// RunCycle resolves a target tab and forwards a run command to its page
// agent. At most one cycle is in flight; concurrent calls are dropped.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	if s.runInProgress {
		s.mu.Unlock()
		RunsTotal.WithLabelValues("deduplicated").Inc()
		return nil
	}
	s.runInProgress = true
	preferred := s.preferredTabID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.runInProgress = false
		s.mu.Unlock()
	}()

	err := s.runCycle(ctx, preferred)
	if err != nil {
		RunsTotal.WithLabelValues("failure").Inc()
		s.recordError(ctx, err)
		return err
	}

	RunsTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context, preferredTabID string) error {
	st, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	tabID, err := s.resolveTab(ctx, st.Settings.TokenAddress, preferredTabID)
	if err != nil {
		return err
	}

	_, err = s.store.Update(ctx, func(st *state.SchedulerState) {
		st.IsRunning = true
	})
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	// Re-assert the enabled state before every run command. A remote page
	// agent may have connected after the operator pressed start and missed
	// the original CONTROL_START; the engine treats a repeat as a no-op.
	for _, kind := range []types.Kind{types.KindControlStart, types.KindRunTask} {
		env, err := types.NewEnvelope(kind, nil)
		if err != nil {
			return err
		}

		resp, err := s.sendWithRetry(ctx, tabID, env)
		if err != nil {
			_, _ = s.store.Update(ctx, func(st *state.SchedulerState) {
				st.IsRunning = false
			})
			return err
		}

		if !resp.Acknowledged {
			s.logger.Warn("command-not-acknowledged",
				zap.String("kind", string(kind)),
				zap.String("tab-id", tabID),
				zap.String("error", resp.Error))
		}
	}

	s.logger.Debug("run-command-delivered", zap.String("tab-id", tabID))
	return nil
}

// forwardStop tells the resolved tab to stand down. Best-effort, a single
// attempt: the persisted disabled state is authoritative, and a tab that
// misses the message only no-ops on its next run command.
func (s *Scheduler) forwardStop(ctx context.Context) {
	st, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn("stop-forward-state-read-failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	preferred := s.preferredTabID
	s.mu.Unlock()

	tabID, err := s.resolveTab(ctx, st.Settings.TokenAddress, preferred)
	if err != nil {
		s.logger.Debug("stop-forward-no-tab", zap.Error(err))
		return
	}

	env, err := types.NewEnvelope(types.KindControlStop, nil)
	if err != nil {
		s.logger.Warn("stop-forward-envelope-failed", zap.Error(err))
		return
	}

	resp, err := s.tabs.SendToTab(ctx, tabID, env)
	if err != nil {
		s.logger.Warn("stop-forward-failed",
			zap.String("tab-id", tabID),
			zap.Error(err))
		return
	}
	if !resp.Acknowledged {
		s.logger.Warn("stop-forward-not-acknowledged",
			zap.String("tab-id", tabID),
			zap.String("error", resp.Error))
	}
}

// resolveTab picks the tab to target: a supplied preferred tab whose URL
// still matches the configured token, else an active matching tab, else any
// matching tab.
func (s *Scheduler) resolveTab(ctx context.Context, tokenAddress, preferredTabID string) (string, error) {
	tabs, err := s.tabs.QueryTabs(ctx)
	if err != nil {
		return "", fmt.Errorf("query tabs: %w", err)
	}

	matches := func(tab types.TabInfo) bool {
		if tokenAddress == "" {
			return true
		}
		return strings.Contains(strings.ToLower(tab.URL), tokenAddress)
	}

	if preferredTabID != "" {
		for _, tab := range tabs {
			if tab.ID == preferredTabID && matches(tab) {
				return tab.ID, nil
			}
		}
	}

	for _, tab := range tabs {
		if tab.Active && matches(tab) {
			return tab.ID, nil
		}
	}

	for _, tab := range tabs {
		if matches(tab) {
			return tab.ID, nil
		}
	}

	return "", &TabUnavailableError{TabID: preferredTabID}
}

// sendWithRetry retries only while the page agent is not ready: the content
// side may simply not be injected yet. A gone tab fails immediately with a
// typed error, since waiting cannot bring it back.
func (s *Scheduler) sendWithRetry(ctx context.Context, tabID string, env types.Envelope) (types.Response, error) {
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		DeliveryAttemptsTotal.Inc()

		resp, err := s.tabs.SendToTab(ctx, tabID, env)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, bus.ErrTabGone) {
			return types.Response{}, &TabUnavailableError{TabID: tabID}
		}
		if !errors.Is(err, bus.ErrReceiverNotReady) {
			return types.Response{}, fmt.Errorf("send to tab %s: %w", tabID, err)
		}

		if attempt < maxDeliveryAttempts {
			backoff := time.Duration(250*attempt+250) * time.Millisecond
			s.logger.Debug("delivery-retry",
				zap.String("tab-id", tabID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			err = s.sleep(ctx, backoff)
			if err != nil {
				return types.Response{}, err
			}
		}
	}

	return types.Response{}, &ContentAgentUnavailableError{TabID: tabID, Attempts: maxDeliveryAttempts}
}

// HandleMessage is the bus handler for scheduler-bound messages.
func (s *Scheduler) HandleMessage(ctx context.Context, env types.Envelope) types.Response {
	MessagesTotal.WithLabelValues(string(env.Kind)).Inc()

	switch env.Kind {
	case types.KindControlStart:
		return s.handleControlStart(ctx, env)

	case types.KindControlStop:
		return s.handleControlStop(ctx)

	case types.KindFocusWindow:
		// Server-side analog of focusing the browser window: surface the
		// request to the operator.
		s.logger.Info("focus-window-requested")
		s.notify(ctx, notify.LevelInfo, "Attention requested", "the page agent asked for operator attention")
		return types.Ack()

	case types.KindTaskComplete:
		var tc types.TaskComplete
		if err := env.DecodePayload(&tc); err != nil {
			return types.Nack(err)
		}
		return s.handleTaskComplete(ctx, tc)

	case types.KindTaskError:
		var te types.TaskError
		if err := env.DecodePayload(&te); err != nil {
			return types.Nack(err)
		}
		return s.handleTaskError(ctx, te)

	case types.KindBalanceUpdate:
		var bu types.BalanceUpdate
		if err := env.DecodePayload(&bu); err != nil {
			return types.Nack(err)
		}
		return s.handleBalanceUpdate(ctx, bu)

	case types.KindOrderHistorySnapshot:
		var snap types.OrderHistorySnapshot
		if err := env.DecodePayload(&snap); err != nil {
			return types.Nack(err)
		}
		return s.handleOrderHistorySnapshot(ctx, snap)

	default:
		return types.Nack(fmt.Errorf("kind %s not handled by scheduler", env.Kind))
	}
}

func (s *Scheduler) handleControlStart(ctx context.Context, env types.Envelope) types.Response {
	var payload types.ControlStart
	if len(env.Payload) > 0 {
		if err := env.DecodePayload(&payload); err != nil {
			return types.Nack(err)
		}
	}

	var addrErr error
	now := s.now()

	_, err := s.store.Update(ctx, func(st *state.SchedulerState) {
		if payload.TokenAddress != "" {
			addrErr = st.Settings.SetTokenAddress(payload.TokenAddress)
			if addrErr != nil {
				return
			}
		}
		st.IsEnabled = true
		st.LastError = ""
		st.SessionStartedAt = &now
		st.SessionStoppedAt = nil
	})
	if err != nil {
		return types.Nack(err)
	}
	if addrErr != nil {
		return types.Nack(addrErr)
	}

	s.mu.Lock()
	s.preferredTabID = payload.TabID
	s.mu.Unlock()

	s.logger.Info("automation-started",
		zap.String("token-address", payload.TokenAddress),
		zap.String("preferred-tab", payload.TabID))

	s.armAlarm()
	s.TriggerRun()

	return types.Ack()
}

func (s *Scheduler) handleControlStop(ctx context.Context) types.Response {
	now := s.now()

	_, err := s.store.Update(ctx, func(st *state.SchedulerState) {
		st.IsEnabled = false
		st.IsRunning = false
		st.SessionStoppedAt = &now
	})
	if err != nil {
		return types.Nack(err)
	}

	s.alarms.Clear()
	s.forwardStop(ctx)
	s.logger.Info("automation-stopped")

	return types.Ack()
}

func (s *Scheduler) handleTaskComplete(ctx context.Context, tc types.TaskComplete) types.Response {
	now := s.now()
	latest := s.latestBalanceCopy()
	if tc.Meta != nil && tc.Meta.CurrentBalance > 0 {
		balance := tc.Meta.CurrentBalance
		latest = &balance
		s.setLatestBalance(balance)
	}

	var stopReasons []string

	result := &state.TaskResultSnapshot{
		Success:    tc.Success,
		Details:    tc.Details,
		Meta:       tc.Meta,
		ReportedAt: now,
	}

	_, err := s.store.Update(ctx, func(st *state.SchedulerState) {
		st.IsRunning = false
		st.LastRun = now.Format(time.RFC3339)
		st.LastResult = result

		if tc.Success {
			st.LastError = ""
			st.RequiresLogin = false
		} else {
			st.LastError = tc.Details
		}

		if tc.Meta == nil {
			return
		}

		if tc.Meta.TokenSymbol != "" {
			st.TokenSymbol = tc.Meta.TokenSymbol
		}

		agg := ensureAggregate(st, now, latest)
		addBuyVolume(agg, tc.Meta.BuyVolumeDelta)
		if agg.FirstBalance == nil && tc.Meta.AvailableBalanceBeforeOrder > 0 {
			balance := tc.Meta.AvailableBalanceBeforeOrder
			agg.FirstBalance = &balance
		}

		stopReasons = s.applyAutoStop(st, agg, now)
	})
	if err != nil {
		return types.Nack(err)
	}

	s.recordResult(ctx, result)
	s.finishAutoStop(ctx, stopReasons)

	return types.Ack()
}

func (s *Scheduler) handleTaskError(ctx context.Context, te types.TaskError) types.Response {
	_, err := s.store.Update(ctx, func(st *state.SchedulerState) {
		st.IsRunning = false
		if strings.Contains(strings.ToLower(te.Message), "login") {
			st.RequiresLogin = true
		} else {
			st.LastError = te.Message
		}
	})
	if err != nil {
		return types.Nack(err)
	}

	s.logger.Warn("task-error-reported", zap.String("message", te.Message))
	return types.Ack()
}

func (s *Scheduler) handleBalanceUpdate(ctx context.Context, bu types.BalanceUpdate) types.Response {
	if bu.CurrentBalance != nil {
		s.setLatestBalance(*bu.CurrentBalance)
	}

	_, err := s.store.Update(ctx, func(st *state.SchedulerState) {
		if bu.TokenSymbol != "" {
			st.TokenSymbol = bu.TokenSymbol
		}
		if bu.CurrentBalance != nil {
			balance := *bu.CurrentBalance
			agg := ensureAggregate(st, s.now(), &balance)
			if agg.FirstBalance == nil {
				agg.FirstBalance = &balance
			}
		}
	})
	if err != nil {
		return types.Nack(err)
	}

	return types.Ack()
}

func (s *Scheduler) handleOrderHistorySnapshot(ctx context.Context, snap types.OrderHistorySnapshot) types.Response {
	now := s.now()
	latest := s.latestBalanceCopy()

	var stopReasons []string

	_, err := s.store.Update(ctx, func(st *state.SchedulerState) {
		agg := ensureAggregate(st, now, latest)
		if agg.Date != snap.Date {
			// Stale snapshot from another day; today's aggregate stands.
			return
		}
		reconcileSnapshot(agg, &stateSnapshot{
			TotalBuyVolume: snap.TotalBuyVolume,
			BuyOrderCount:  snap.BuyOrderCount,
		})
		stopReasons = s.applyAutoStop(st, agg, now)
	})
	if err != nil {
		return types.Nack(err)
	}

	s.finishAutoStop(ctx, stopReasons)

	return types.Ack()
}

// applyAutoStop disables automation inside the store transform when either
// stop condition holds. Returns the reasons when a stop actually happened.
func (s *Scheduler) applyAutoStop(st *state.SchedulerState, agg *state.DailyAggregate, now time.Time) []string {
	if !st.IsEnabled {
		return nil
	}

	reasons := autoStopReasons(agg, st.Settings)
	if len(reasons) == 0 {
		return nil
	}

	st.IsEnabled = false
	stoppedAt := now
	st.SessionStoppedAt = &stoppedAt

	reason := "auto-stop: " + strings.Join(reasons, "; ")
	if st.LastResult != nil {
		if st.LastResult.Details != "" {
			st.LastResult.Details += "; " + reason
		} else {
			st.LastResult.Details = reason
		}
	} else {
		st.LastResult = &state.TaskResultSnapshot{
			Success:    true,
			Details:    reason,
			ReportedAt: now,
		}
	}

	return reasons
}

// finishAutoStop performs the side effects that cannot live inside the store
// transform: disarming the alarm and notifying the operator.
func (s *Scheduler) finishAutoStop(ctx context.Context, reasons []string) {
	if len(reasons) == 0 {
		return
	}

	AutoStopsTotal.Inc()
	s.alarms.Clear()
	s.forwardStop(ctx)

	msg := strings.Join(reasons, "; ")
	s.logger.Info("auto-stop", zap.String("reasons", msg))
	s.notify(ctx, notify.LevelInfo, "Automation stopped", msg)
}

func (s *Scheduler) recordResult(ctx context.Context, result *state.TaskResultSnapshot) {
	rec, ok := s.store.(resultRecorder)
	if !ok {
		return
	}

	err := rec.AppendTaskResult(ctx, result)
	if err != nil {
		s.logger.Warn("task-result-history-write-failed", zap.Error(err))
	}
}

func (s *Scheduler) recordError(ctx context.Context, runErr error) {
	_, err := s.store.Update(ctx, func(st *state.SchedulerState) {
		st.IsRunning = false
		st.LastError = runErr.Error()
	})
	if err != nil {
		s.logger.Error("record-error-failed", zap.Error(err))
	}
}

func (s *Scheduler) notify(ctx context.Context, level notify.Level, title, message string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, level, title, message)
	if err != nil {
		s.logger.Warn("notify-failed", zap.Error(err))
	}
}

func (s *Scheduler) setLatestBalance(balance float64) {
	s.mu.Lock()
	s.latestBalance = &balance
	s.mu.Unlock()
}

func (s *Scheduler) latestBalanceCopy() *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestBalance == nil {
		return nil
	}
	balance := *s.latestBalance
	return &balance
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
