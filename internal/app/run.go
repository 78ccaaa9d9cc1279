package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tbencze/alpha-pilot/internal/state"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("run-mode", a.cfg.RunMode),
		zap.String("interval-mode", a.cfg.IntervalMode),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Bool("hub-mounted", a.hub != nil))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)
	a.healthChecker.SetReady("http-server", true)

	// Start the in-process page side before the scheduler: a persisted
	// enabled state triggers a run immediately on scheduler start.
	if a.orderMon != nil {
		a.orderMon.Start()
	}

	err := a.scheduler.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.healthChecker.SetReady("scheduler", true)

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// RunOnce drives a single observation cycle through the in-process engine
// and returns the resulting state. Placement is skipped; the cycle only
// reads the page and reports what it saw. Sim mode only.
func (a *App) RunOnce(ctx context.Context) (*state.SchedulerState, error) {
	if a.schedEnd == nil {
		return nil, fmt.Errorf("run-once requires sim mode")
	}

	before, err := a.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	env, err := types.NewEnvelope(types.KindRunTaskOnce, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.schedEnd.Send(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("send run-task-once: %w", err)
	}
	if !resp.Acknowledged {
		return nil, fmt.Errorf("run-task-once rejected: %s", resp.Error)
	}

	// The cycle reports back asynchronously. A successful observation moves
	// the run stamp; a login gate or failed cycle reports through
	// RequiresLogin / LastError instead, so watch all three.
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		st, err := a.store.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read state: %w", err)
		}
		if st.LastRun != before.LastRun {
			return st, nil
		}
		if st.RequiresLogin && !before.RequiresLogin {
			return st, nil
		}
		if st.LastError != before.LastError {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("cycle did not report within 15s")
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
