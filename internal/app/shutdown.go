package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady("scheduler", false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Page side first: no more cycles should report into the scheduler.
	if a.engine != nil {
		a.engine.Close()
	}
	if a.orderMon != nil {
		err = a.orderMon.Close()
		if err != nil {
			a.logger.Error("monitor-close-error", zap.Error(err))
		}
	}
	if a.engineEnd != nil {
		a.engineEnd.Close()
	}
	if a.schedEnd != nil {
		a.schedEnd.Close()
	}

	a.scheduler.Close()

	err = a.store.Close()
	if err != nil {
		a.logger.Error("store-close-error", zap.Error(err))
	}

	a.appCache.Close()

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
