package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tbencze/alpha-pilot/internal/engine"
	"github.com/tbencze/alpha-pilot/internal/monitor"
	"github.com/tbencze/alpha-pilot/internal/page/sim"
	"github.com/tbencze/alpha-pilot/internal/storage"
	"github.com/tbencze/alpha-pilot/pkg/bus"
	"github.com/tbencze/alpha-pilot/pkg/cache"
	"github.com/tbencze/alpha-pilot/pkg/config"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

// Agent is the standalone page side: the simulated exchange page, order
// monitor, placer and engine behind a websocket client dialed to a remote
// hub. The hub's scheduler drives it with control and run commands over
// /ws; results and balance updates flow back over the same connection.
//
// Settings are read from the agent's own store at cycle time, so pointing
// hub and agent at the same postgres keeps them in sync.
type Agent struct {
	cfg    *config.Config
	logger *zap.Logger

	store    storage.Store
	appCache cache.Cache
	client   *bus.Client
	simPage  *sim.Page
	orderMon *monitor.Monitor
	engine   *engine.Engine

	ctx    context.Context
	cancel context.CancelFunc
}

// NewAgent creates a disconnected agent.
func NewAgent(cfg *config.Config, logger *zap.Logger, opts *Options) (*Agent, error) {
	if opts == nil {
		opts = &Options{}
	}
	if cfg.HubURL == "" {
		return nil, fmt.Errorf("hub url cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ag := &Agent{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	var err error
	ag.appCache, err = setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	ag.store, err = setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	notifier, err := setupNotifier(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup notifier: %w", err)
	}

	tokenAddress := cfg.TokenAddress
	if opts.TokenAddress != "" {
		tokenAddress = opts.TokenAddress
	}

	pc, err := buildPageComponents(cfg, logger, tokenAddress, ag,
		&storeSettings{store: ag.store}, ag.appCache, notifier, ag.sendControl)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build page components: %w", err)
	}
	ag.simPage = pc.simPage
	ag.orderMon = pc.orderMon
	ag.engine = pc.engine

	ag.client = bus.NewClient(bus.ClientConfig{
		URL:            cfg.HubURL,
		PageURL:        ag.simPage.URL(),
		DialTimeout:    cfg.BusDialTimeout,
		ReplyTimeout:   cfg.BusReplyTimeout,
		ReconnectDelay: cfg.BusReconnectDelay,
		Logger:         logger,
	})
	ag.client.SetHandler(ag.engine.HandleMessage)

	return ag, nil
}

// Send satisfies bus.Sender for the engine; envelopes go to the hub.
func (ag *Agent) Send(ctx context.Context, env types.Envelope) (types.Response, error) {
	return ag.client.Send(ctx, env)
}

// sendControl delivers a payloadless control envelope to the hub's
// scheduler. Best-effort: failures are logged, not propagated.
func (ag *Agent) sendControl(kind types.Kind) {
	env, err := types.NewEnvelope(kind, nil)
	if err != nil {
		ag.logger.Error("control-envelope-build-failed", zap.Error(err))
		return
	}

	resp, err := ag.client.Send(ag.ctx, env)
	if err != nil {
		ag.logger.Error("control-send-failed",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}
	if !resp.Acknowledged {
		ag.logger.Warn("control-rejected",
			zap.String("kind", string(kind)),
			zap.String("error", resp.Error))
	}
}

// Start dials the hub and starts the order monitor without blocking.
func (ag *Agent) Start() error {
	err := ag.client.Start()
	if err != nil {
		return fmt.Errorf("connect to hub: %w", err)
	}

	ag.orderMon.Start()
	return nil
}

// Run connects to the hub and blocks until a shutdown signal.
func (ag *Agent) Run() error {
	ag.logger.Info("agent-starting",
		zap.String("hub-url", ag.cfg.HubURL),
		zap.String("interval-mode", ag.cfg.IntervalMode))

	err := ag.Start()
	if err != nil {
		return err
	}

	ag.logger.Info("agent-ready", zap.String("page-url", ag.simPage.URL()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		ag.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-ag.ctx.Done():
		ag.logger.Info("context-cancelled")
	}

	return ag.Shutdown()
}

// Shutdown tears the agent down in dependency order.
func (ag *Agent) Shutdown() error {
	ag.logger.Info("agent-shutting-down")
	ag.cancel()

	ag.engine.Close()

	err := ag.orderMon.Close()
	if err != nil {
		ag.logger.Error("monitor-close-error", zap.Error(err))
	}

	err = ag.client.Close()
	if err != nil {
		ag.logger.Error("client-close-error", zap.Error(err))
	}

	err = ag.store.Close()
	if err != nil {
		ag.logger.Error("store-close-error", zap.Error(err))
	}

	ag.appCache.Close()

	ag.logger.Info("agent-stopped")
	return nil
}
