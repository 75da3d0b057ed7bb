// Package scheduler periodically refreshes the overpass predictions of
// configured watch points so that requests for them are served from cache.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/robert-malhotra/overpass-proxy/internal/metrics"
	"github.com/robert-malhotra/overpass-proxy/internal/overpass"
)

// Refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Refresher recomputes and caches the predictions of a point.
type Refresher interface {
	Refresh(ctx context.Context, point overpass.GeoPoint) (*overpass.Snapshot, error)
}

// Scheduler refreshes watch points on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	points    []overpass.GeoPoint
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler. timeout bounds each point's refresh.
func New(points []overpass.GeoPoint, interval, timeout time.Duration, refresher Refresher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		points:    points,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.points) == 0 {
		s.logger.Info("scheduler: no watch points configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "points", len(s.points), "interval", interval)
	return nil
}

// RunOnce refreshes every watch point and returns the outcome per point, in
// the order of the configured points.
func (s *Scheduler) RunOnce(ctx context.Context) []string {
	s.logger.Debug("scheduler: running refresh job", "points", len(s.points))

	outcomes := make([]string, len(s.points))
	var wg sync.WaitGroup
	for i, point := range s.points {
		wg.Add(1)
		go func(idx int, point overpass.GeoPoint) {
			defer wg.Done()

			pointCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			outcomes[idx] = s.refresh(pointCtx, point)
			metrics.ObserveRefresh(outcomes[idx])
		}(i, point)
	}
	wg.Wait()

	s.logger.Debug("scheduler: completed refresh job")
	return outcomes
}

func (s *Scheduler) refresh(ctx context.Context, point overpass.GeoPoint) string {
	snap, err := s.refresher.Refresh(ctx, point)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduler: refresh failed", "point", point.String(), "error", err)
		return OutcomeError
	}

	failed := 0
	for i := range snap.Records {
		if snap.Records[i].Failed() {
			failed++
		}
	}
	if failed > 0 {
		s.logger.WarnContext(ctx, "scheduler: refresh incomplete",
			"point", point.String(),
			"failed", failed,
			"satellites", len(snap.Records),
		)
		return OutcomePartial
	}
	return OutcomeSuccess
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
