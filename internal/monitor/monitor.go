// Package monitor watches the open-orders view for limit orders that stay
// unfilled too long and escalates: a warning for any order pending past 5s,
// and an emergency stop when a sell order is still pending at 10s (an
// unfilled sell leaves the bot holding an unhedged position, which the
// buy side never does).
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tbencze/alpha-pilot/internal/page"
	"github.com/tbencze/alpha-pilot/pkg/notify"
	"go.uber.org/zap"
)

// Default escalation timings.
const (
	DefaultPollInterval  = time.Second
	DefaultWarnAfter     = 5 * time.Second
	DefaultEscalateAfter = 10 * time.Second
)

// Monitor tracks pending limit orders by row signature.
type Monitor struct {
	reader   page.Reader
	notifier notify.Notifier
	logger   *zap.Logger

	pollInterval  time.Duration
	warnAfter     time.Duration
	escalateAfter time.Duration

	// emergencyStop disables automation upstream; focusWindow asks the host
	// to bring the trading window to the front.
	emergencyStop func()
	focusWindow   func()

	now func() time.Time

	mu      sync.Mutex
	enabled bool
	tracked map[string]*trackedOrder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds monitor configuration.
type Config struct {
	Reader        page.Reader
	Notifier      notify.Notifier
	EmergencyStop func()
	FocusWindow   func()
	PollInterval  time.Duration
	WarnAfter     time.Duration
	EscalateAfter time.Duration
	Logger        *zap.Logger
}

type trackedOrder struct {
	side      page.OrderSide
	since     time.Time
	warned    bool
	escalated bool
}

// New creates a monitor. Tracking starts disabled.
func New(cfg *Config) (*Monitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("page reader cannot be nil")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = DefaultWarnAfter
	}
	if cfg.EscalateAfter <= 0 {
		cfg.EscalateAfter = DefaultEscalateAfter
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		reader:        cfg.Reader,
		notifier:      cfg.Notifier,
		logger:        cfg.Logger,
		pollInterval:  cfg.PollInterval,
		warnAfter:     cfg.WarnAfter,
		escalateAfter: cfg.EscalateAfter,
		emergencyStop: cfg.EmergencyStop,
		focusWindow:   cfg.FocusWindow,
		now:           time.Now,
		tracked:       make(map[string]*trackedOrder),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start runs the polling loop until Close.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.pollLoop()
}

func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Poll(m.ctx)
		}
	}
}

// SetEnabled turns tracking on or off. Disabling clears nothing; the next
// enabled poll re-reads the page from scratch.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()

	m.logger.Info("order-monitoring-toggled", zap.Bool("enabled", enabled))
}

// Enabled reports whether tracking is active.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Poll performs one tracking pass. No-op while disabled.
func (m *Monitor) Poll(ctx context.Context) {
	m.mu.Lock()
	enabled := m.enabled
	m.mu.Unlock()

	if !enabled {
		return
	}

	root, ok := m.reader.OpenOrdersRoot(ctx)
	if !ok {
		// No panel means no orders, not an error.
		m.clearTracking()
		return
	}

	container, ok := m.reader.LimitOrdersContainer(root)
	if !ok {
		m.clearTracking()
		return
	}

	rows, err := m.reader.LimitOrderRows(ctx, container)
	if err != nil {
		m.logger.Warn("order-rows-read-failed", zap.Error(err))
		return
	}

	current := make(map[string]page.OrderSide, len(rows))
	for _, row := range rows {
		side, ok := page.ClassifyOrderRow(row)
		if !ok {
			continue
		}
		current[rowKey(row)] = side
	}

	m.reconcile(ctx, current)
}

// reconcile advances every tracked order's lifecycle against the rows seen
// in this pass.
func (m *Monitor) reconcile(ctx context.Context, current map[string]page.OrderSide) {
	now := m.now()

	m.mu.Lock()

	// Rows that disappeared were filled or cancelled.
	for key := range m.tracked {
		if _, still := current[key]; !still {
			delete(m.tracked, key)
			OrdersUntrackedTotal.Inc()
			m.logger.Info("order-resolved", zap.String("key", key))
		}
	}

	// New rows start their pending clock.
	for key, side := range current {
		if _, known := m.tracked[key]; !known {
			m.tracked[key] = &trackedOrder{side: side, since: now}
			OrdersTrackedTotal.Inc()
			m.logger.Info("order-tracked",
				zap.String("key", key),
				zap.String("side", sideName(side)))
		}
	}

	type escalation struct {
		key     string
		side    page.OrderSide
		elapsed time.Duration
		urgent  bool
	}

	var due []escalation
	for key, order := range m.tracked {
		elapsed := now.Sub(order.since)

		if !order.warned && elapsed >= m.warnAfter {
			order.warned = true
			due = append(due, escalation{key: key, side: order.side, elapsed: elapsed})
		}

		if order.side == page.SideSell && !order.escalated && elapsed >= m.escalateAfter {
			order.escalated = true
			due = append(due, escalation{key: key, side: order.side, elapsed: elapsed, urgent: true})
		}
	}
	m.mu.Unlock()

	for _, e := range due {
		if e.urgent {
			m.escalateSell(ctx, e.key, e.elapsed)
			continue
		}

		PendingWarningsTotal.WithLabelValues(sideName(e.side)).Inc()
		err := m.notifier.Notify(ctx, notify.LevelWarn, "Order still pending",
			fmt.Sprintf("%s order pending for %s: %s", sideName(e.side), e.elapsed.Round(time.Second), e.key))
		if err != nil {
			m.logger.Warn("warning-delivery-failed", zap.Error(err))
		}
	}
}

// escalateSell handles a sell order pending past the hard deadline: stop
// automation, pull the window into view, raise an urgent alert.
func (m *Monitor) escalateSell(ctx context.Context, key string, elapsed time.Duration) {
	EmergencyStopsTotal.Inc()
	m.logger.Error("sell-order-stuck-emergency-stop",
		zap.String("key", key),
		zap.Duration("elapsed", elapsed))

	if m.emergencyStop != nil {
		m.emergencyStop()
	}
	if m.focusWindow != nil {
		m.focusWindow()
	}

	err := m.notifier.Notify(ctx, notify.LevelUrgent, "Sell order not filling",
		fmt.Sprintf("sell order pending for %s, automation stopped: %s", elapsed.Round(time.Second), key))
	if err != nil {
		m.logger.Warn("urgent-delivery-failed", zap.Error(err))
	}
}

func (m *Monitor) clearTracking() {
	m.mu.Lock()
	n := len(m.tracked)
	m.tracked = make(map[string]*trackedOrder)
	m.mu.Unlock()

	if n > 0 {
		m.logger.Info("order-tracking-cleared", zap.Int("count", n))
	}
}

// TrackedCount returns the number of orders currently tracked.
func (m *Monitor) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}

// Close stops the polling loop.
func (m *Monitor) Close() error {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("order-monitor-closed")
	return nil
}

// rowKey normalizes a row's text into a stable signature.
func rowKey(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func sideName(side page.OrderSide) string {
	switch side {
	case page.SideBuy:
		return "buy"
	case page.SideSell:
		return "sell"
	default:
		return "unknown"
	}
}
