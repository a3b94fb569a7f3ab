// Package app is the composition root: it wires modules, starts background
// work and serves the router.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"collabhub.io/realtime/internal/api/handlers"
	"collabhub.io/realtime/internal/app/modules"
	"collabhub.io/realtime/internal/config"
	"collabhub.io/realtime/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Infra   *modules.Infrastructure
	Pools   *worker.Pools
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	rt := modules.NewRealtimeModule(infra)
	allModules := []modules.Module{
		rt,
		modules.NewNotificationModule(infra, rt),
	}

	if infra.HasRiver() {
		workers := river.NewWorkers()
		var periodic []*river.PeriodicJob
		for _, mod := range allModules {
			mod.RegisterWorkers(workers)
			if src, ok := mod.(modules.PeriodicJobSource); ok {
				periodic = append(periodic, src.PeriodicJobs()...)
			}
		}
		if err := infra.InitRiver(workers, periodic); err != nil {
			infra.Close()
			return nil, fmt.Errorf("init river workers: %w", err)
		}
	}

	server := handlers.NewServer(modules.NewServerDeps(infra, allModules))

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, infra.Verifier),
		Infra:   infra,
		Pools:   infra.Pools,
		Modules: allModules,
	}, nil
}
