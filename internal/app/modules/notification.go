package modules

import (
	"context"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/api/handlers"
	"collabhub.io/realtime/internal/domain"
	"collabhub.io/realtime/internal/jobs"
	"collabhub.io/realtime/internal/notification"
	"collabhub.io/realtime/internal/pkg/logger"
	"collabhub.io/realtime/internal/pkg/worker"
)

// NotificationModule wires the factory, the domain triggers and the expiry sweep.
type NotificationModule struct {
	infra   *Infrastructure
	factory *notification.Factory
	events  *domain.EventDispatcher
	cleanup *jobs.NotificationCleanupWorker
}

// NewNotificationModule creates the notification module on top of the
// realtime dispatcher.
func NewNotificationModule(infra *Infrastructure, rt *RealtimeModule) *NotificationModule {
	factory := notification.NewFactory(infra.Store, infra.Store, rt.Dispatcher())

	events := domain.NewEventDispatcher()
	notification.NewTriggers(factory).Register(events)

	return &NotificationModule{
		infra:   infra,
		factory: factory,
		events:  events,
		cleanup: jobs.NewNotificationCleanupWorker(infra.Store),
	}
}

func (m *NotificationModule) Name() string { return "notification" }

func (m *NotificationModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Factory = m.factory
	deps.Events = m.events
}

func (m *NotificationModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil {
		return
	}
	river.AddWorker(workers, m.cleanup)
}

// PeriodicJobs schedules the expiry sweep.
func (m *NotificationModule) PeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{jobs.PeriodicJob(m.infra.Config.Notification.CleanupInterval)}
}

// Start runs the sweep on a pool ticker when no River client is available.
func (m *NotificationModule) Start(context.Context) error {
	if m.infra.HasRiver() {
		return nil
	}
	interval := m.infra.Config.Notification.CleanupInterval
	logger.Info("Expiry sweep running on worker pool", zap.Duration("interval", interval))
	return m.infra.Pools.SubmitDetached(worker.PoolGeneral, func(ctx context.Context) {
		m.cleanup.RunTicker(ctx, interval)
	})
}

func (m *NotificationModule) Shutdown(context.Context) error { return nil }
