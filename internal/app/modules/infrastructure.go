package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/auth"
	"collabhub.io/realtime/internal/config"
	"collabhub.io/realtime/internal/infrastructure"
	"collabhub.io/realtime/internal/notification"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/pkg/worker"
	"collabhub.io/realtime/internal/store/sqlite"
	"collabhub.io/realtime/internal/user"
)

// Store is what the modules need from a storage backend.
type Store interface {
	notification.Store
	user.Directory
	Ping(ctx context.Context) error
}

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config   *config.Config
	Store    Store
	Pools    *worker.Pools
	Verifier auth.Chain

	// DB is set for the postgres driver only; River requires it.
	DB *infrastructure.DatabaseClients
	// embedded is set for the sqlite driver only.
	embedded *sqlite.Store
}

// NewInfrastructure opens the configured store and the worker pools.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{
		Config:   cfg,
		Verifier: auth.NewChain(cfg.Security.AccessSecret, cfg.Security.RefreshSecret, cfg.Security.Issuer),
	}

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		infra.embedded = store
		infra.Store = store
		logger.Info("Using embedded SQLite store", zap.String("path", cfg.Database.SQLitePath))
	default:
		db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		infra.DB = db
		infra.Store = db.Store
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		ConnPoolSize:    cfg.Worker.ConnPoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools

	return infra, nil
}

// HasRiver reports whether the backend can host a River client.
func (i *Infrastructure) HasRiver() bool {
	return i != nil && i.DB != nil
}

// InitRiver initializes the River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers, periodic []*river.PeriodicJob) error {
	if !i.HasRiver() || i.Config == nil {
		return fmt.Errorf("river requires the %s driver", config.DriverPostgres)
	}
	if err := i.DB.InitRiverClient(workers, periodic, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
	if i.embedded != nil {
		if err := i.embedded.Close(); err != nil {
			logger.Warn("failed to close sqlite store", zap.Error(err))
		}
	}
}
