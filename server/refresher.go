package server

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"pricewatch/services"
	"pricewatch/utils"
)

// Refresher reloads the snapshot from its source on a cron schedule.
type Refresher struct {
	store   *services.SnapshotStore
	source  services.TableSource
	metrics *Metrics
	logger  *utils.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewRefresher creates a Refresher. Call Start to begin scheduling.
func NewRefresher(store *services.SnapshotStore, source services.TableSource, metrics *Metrics, logger *utils.Logger) *Refresher {
	return &Refresher{
		store:   store,
		source:  source,
		metrics: metrics,
		logger:  logger,
		cron:    cron.New(),
		timeout: 2 * time.Minute,
	}
}

// RefreshNow loads a new snapshot. On failure the live snapshot is kept.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	start := time.Now()
	snap, err := r.store.Refresh(ctx, r.source)
	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.RefreshFailures.Inc()
		return err
	}
	r.metrics.SnapshotObservations.Set(float64(len(snap.Observations)))
	return nil
}

// Start schedules refreshes with a standard cron spec or descriptor such as
// "@every 15m".
func (r *Refresher) Start(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.RefreshNow(ctx); err != nil {
			r.logger.Warn("[refresher] Scheduled refresh failed, keeping previous snapshot: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("refresher: invalid schedule %q: %w", schedule, err)
	}
	r.cron.Start()
	r.logger.Info("[refresher] Refreshing on schedule %q", schedule)
	return nil
}

// Stop halts scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}
