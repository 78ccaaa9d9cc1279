package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tbencze/alpha-pilot/internal/engine"
	"github.com/tbencze/alpha-pilot/internal/monitor"
	"github.com/tbencze/alpha-pilot/internal/page/sim"
	"github.com/tbencze/alpha-pilot/internal/scheduler"
	"github.com/tbencze/alpha-pilot/internal/storage"
	"github.com/tbencze/alpha-pilot/pkg/bus"
	"github.com/tbencze/alpha-pilot/pkg/cache"
	"github.com/tbencze/alpha-pilot/pkg/config"
	"github.com/tbencze/alpha-pilot/pkg/healthprobe"
	"github.com/tbencze/alpha-pilot/pkg/httpserver"
	"github.com/tbencze/alpha-pilot/pkg/notify"
)

// App is the main application orchestrator. In sim mode it hosts both sides
// of the bus in one process; in hub mode only the scheduler side runs and
// page agents connect over the websocket.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	store         storage.Store
	appCache      cache.Cache
	notifier      notify.Notifier
	alarm         *scheduler.TickerAlarm
	scheduler     *scheduler.Scheduler

	// Hub mode only.
	hub *bus.Hub

	// Sim mode only.
	simPage   *sim.Page
	engine    *engine.Engine
	orderMon  *monitor.Monitor
	engineEnd *bus.Endpoint
	schedEnd  *bus.Endpoint

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// TokenAddress overrides the configured token address.
	TokenAddress string
}
