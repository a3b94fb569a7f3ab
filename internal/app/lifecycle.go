package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"collabhub.io/realtime/internal/pkg/logger"
)

// Start starts all background services (River workers, heartbeat, sweeps).
func (a *Application) Start(ctx context.Context) error {
	if a.Infra != nil && a.Infra.DB != nil && a.Infra.DB.RiverClient != nil {
		if err := a.Infra.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Start(ctx); err != nil {
			return fmt.Errorf("start module %s: %w", mod.Name(), err)
		}
	}
	return nil
}

// Shutdown gracefully shuts down all application components.
func (a *Application) Shutdown() {
	shutdownCtx := context.Background()

	if a.Infra != nil && a.Infra.DB != nil && a.Infra.DB.RiverClient != nil {
		if err := a.Infra.DB.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
		logger.Info("River client stopped")
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(shutdownCtx); err != nil {
			logger.Warn("module shutdown returned error",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	// Infra.Close shuts the pools down before closing the store.
	if a.Infra != nil {
		a.Infra.Close()
	} else if a.Pools != nil {
		a.Pools.Shutdown()
	}
}
