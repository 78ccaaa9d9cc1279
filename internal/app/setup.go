package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tbencze/alpha-pilot/internal/engine"
	"github.com/tbencze/alpha-pilot/internal/monitor"
	"github.com/tbencze/alpha-pilot/internal/page/sim"
	"github.com/tbencze/alpha-pilot/internal/placer"
	"github.com/tbencze/alpha-pilot/internal/scheduler"
	"github.com/tbencze/alpha-pilot/internal/state"
	"github.com/tbencze/alpha-pilot/internal/storage"
	"github.com/tbencze/alpha-pilot/pkg/bus"
	"github.com/tbencze/alpha-pilot/pkg/cache"
	"github.com/tbencze/alpha-pilot/pkg/config"
	"github.com/tbencze/alpha-pilot/pkg/healthprobe"
	"github.com/tbencze/alpha-pilot/pkg/httpserver"
	"github.com/tbencze/alpha-pilot/pkg/notify"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		alarm:         scheduler.NewTickerAlarm(),
		ctx:           ctx,
		cancel:        cancel,
	}

	appCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}
	a.appCache = appCache

	a.store, err = setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	a.notifier, err = setupNotifier(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup notifier: %w", err)
	}

	tokenAddress := cfg.TokenAddress
	if opts.TokenAddress != "" {
		tokenAddress = opts.TokenAddress
	}

	var tabs bus.TabGateway
	if cfg.RunMode == "hub" {
		a.hub = bus.NewHub(bus.HubConfig{
			ReplyTimeout: cfg.BusReplyTimeout,
			Logger:       logger,
		})
		tabs = a.hub
	} else {
		tabs, err = a.setupSimSide(cfg, logger, tokenAddress)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("setup sim side: %w", err)
		}
	}

	a.scheduler, err = scheduler.New(&scheduler.Config{
		Store:        a.store,
		Tabs:         tabs,
		Alarms:       a.alarm,
		Notifier:     a.notifier,
		WakeInterval: cfg.WakeInterval,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	// Inbound envelopes from page agents and from the control API share the
	// scheduler's handler.
	if a.hub != nil {
		a.hub.SetHandler(a.scheduler.HandleMessage)
	}
	if a.schedEnd != nil {
		a.schedEnd.SetHandler(a.scheduler.HandleMessage)
	}

	// The in-process engine follows the persisted enabled flag the same way
	// a page agent follows CONTROL_START/STOP.
	if a.engine != nil {
		eng := a.engine
		a.store.Subscribe(func(st state.SchedulerState) {
			eng.SetEnabled(st.IsEnabled)
		})
	}

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Store:         a.store,
		Control:       a.scheduler.HandleMessage,
		Hub:           a.hub,
	})

	return a, nil
}

// pageComponents bundles the page-agent half: the simulated page, order
// monitor, placer and engine. Built identically for the in-process sim mode
// and the standalone agent; only the Sender behind them differs.
type pageComponents struct {
	simPage  *sim.Page
	orderMon *monitor.Monitor
	engine   *engine.Engine
}

func buildPageComponents(
	cfg *config.Config,
	logger *zap.Logger,
	tokenAddress string,
	sender bus.Sender,
	settings engine.SettingsSource,
	appCache cache.Cache,
	notifier notify.Notifier,
	sendControl func(types.Kind),
) (*pageComponents, error) {
	simPage, err := sim.New(sim.Config{
		TokenAddress:   tokenAddress,
		TokenSymbol:    cfg.SimTokenSymbol,
		StartBalance:   cfg.SimStartBalance,
		StartPrice:     cfg.SimStartPrice,
		FillDelayMin:   cfg.SimFillDelayMin,
		FillDelayMax:   cfg.SimFillDelayMax,
		SlowFillChance: cfg.SimSlowFillChance,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create sim page: %w", err)
	}

	orderMon, err := monitor.New(&monitor.Config{
		Reader:   simPage,
		Notifier: notifier,
		EmergencyStop: func() {
			sendControl(types.KindControlStop)
		},
		FocusWindow: func() {
			sendControl(types.KindFocusWindow)
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}

	orderPlacer, err := placer.New(&placer.Config{
		Page:     simPage,
		Tracker:  orderMon,
		Cooldown: cfg.OrderCooldown,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create placer: %w", err)
	}

	eng, err := engine.New(&engine.Config{
		Page:     simPage,
		Sender:   sender,
		Placer:   orderPlacer,
		Settings: settings,
		Tracker:  orderMon,
		Cache:    appCache,
		Interval: engine.IntervalMode(cfg.IntervalMode),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	return &pageComponents{
		simPage:  simPage,
		orderMon: orderMon,
		engine:   eng,
	}, nil
}

// setupSimSide builds the page-agent half in-process, joined to the
// scheduler by an endpoint pair.
func (a *App) setupSimSide(cfg *config.Config, logger *zap.Logger, tokenAddress string) (bus.TabGateway, error) {
	a.schedEnd, a.engineEnd = bus.NewPair()

	pc, err := buildPageComponents(cfg, logger, tokenAddress, a.engineEnd,
		&storeSettings{store: a.store}, a.appCache, a.notifier, a.sendControl)
	if err != nil {
		return nil, err
	}
	a.simPage = pc.simPage
	a.orderMon = pc.orderMon
	a.engine = pc.engine
	a.engineEnd.SetHandler(a.engine.HandleMessage)

	tab := types.TabInfo{ID: "sim", URL: a.simPage.URL(), Active: true}
	return bus.NewLocalTabGateway(tab, a.schedEnd), nil
}

// sendControl delivers a payloadless control envelope from the page side to
// the scheduler. Best-effort: failures are logged, not propagated.
func (a *App) sendControl(kind types.Kind) {
	env, err := types.NewEnvelope(kind, nil)
	if err != nil {
		a.logger.Error("control-envelope-build-failed", zap.Error(err))
		return
	}

	resp, err := a.engineEnd.Send(a.ctx, env)
	if err != nil {
		a.logger.Error("control-send-failed",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}
	if !resp.Acknowledged {
		a.logger.Warn("control-rejected",
			zap.String("kind", string(kind)),
			zap.String("error", resp.Error))
	}
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode == "postgres" {
		pgStore, err := storage.NewPostgresStore(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return pgStore, nil
	}

	return storage.NewMemoryStore(logger), nil
}

func setupNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, error) {
	if cfg.TelegramBotToken == "" {
		return notify.NewLogNotifier(logger), nil
	}

	notifier, err := notify.NewTelegramNotifier(&notify.TelegramConfig{
		Token:  cfg.TelegramBotToken,
		ChatID: cfg.TelegramChatID,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram notifier: %w", err)
	}
	return notifier, nil
}

// storeSettings reads the operator settings out of the persisted state at
// cycle time, so settings changes apply without restarting the engine.
type storeSettings struct {
	store storage.Store
}

func (s *storeSettings) CurrentSettings(ctx context.Context) (state.Settings, error) {
	st, err := s.store.Get(ctx)
	if err != nil {
		return state.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return st.Settings, nil
}
