// Package jobs defines River Queue job types for background maintenance.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"collabhub.io/realtime/internal/pkg/logger"
)

// DefaultCleanupInterval is used when no sweep interval is configured.
const DefaultCleanupInterval = time.Hour

// Sweeper deletes notifications whose expiry has passed.
type Sweeper interface {
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// NotificationCleanupArgs is a periodic maintenance job that removes expired
// notifications.
type NotificationCleanupArgs struct{}

// Kind returns the job kind identifier for periodic notification cleanup.
func (NotificationCleanupArgs) Kind() string { return "notification_cleanup" }

// InsertOpts keeps at most one cleanup job per hour.
func (NotificationCleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: DefaultCleanupInterval,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// NotificationCleanupWorker deletes expired notifications.
type NotificationCleanupWorker struct {
	river.WorkerDefaults[NotificationCleanupArgs]
	store Sweeper
	now   func() time.Time
}

// NewNotificationCleanupWorker creates a cleanup worker over store.
func NewNotificationCleanupWorker(store Sweeper) *NotificationCleanupWorker {
	return &NotificationCleanupWorker{store: store, now: time.Now}
}

// Work removes expired notification rows.
func (w *NotificationCleanupWorker) Work(ctx context.Context, _ *river.Job[NotificationCleanupArgs]) error {
	_, err := w.Sweep(ctx)
	return err
}

// Sweep deletes every notification that expired at or before now. It is
// shared by the River worker and the embedded-store ticker.
func (w *NotificationCleanupWorker) Sweep(ctx context.Context) (int, error) {
	if w == nil || w.store == nil {
		return 0, fmt.Errorf("notification cleanup worker is not initialized")
	}

	cutoff := w.now().UTC()
	deleted, err := w.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete notifications expired before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("notification cleanup completed",
		zap.Int("deleted_rows", deleted),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
	)
	return deleted, nil
}

// PeriodicJob schedules the cleanup every interval and once on start.
// Non-positive intervals fall back to DefaultCleanupInterval.
func PeriodicJob(interval time.Duration) *river.PeriodicJob {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return NotificationCleanupArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

// RunTicker sweeps every interval until ctx is cancelled. It is used when
// no River client is available.
func (w *NotificationCleanupWorker) RunTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("notification cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
