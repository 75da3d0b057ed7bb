package overpass

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/metrics"
)

// Service runs the aggregator over the predictable satellites of a registry,
// serving repeated points from an optional cache.
type Service struct {
	aggregator *Aggregator
	registry   *config.SatelliteRegistry
	cache      *Cache
	logger     *slog.Logger
}

// NewService creates a Service. cache may be nil to disable caching.
func NewService(aggregator *Aggregator, registry *config.SatelliteRegistry, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		aggregator: aggregator,
		registry:   registry,
		cache:      cache,
		logger:     logger,
	}
}

// Satellites returns the configurations aggregated by the service.
func (s *Service) Satellites() []*config.SatelliteConfig {
	return s.registry.Predictable()
}

// Overpass returns the per-satellite records for point, from the cache when a
// live snapshot exists.
func (s *Service) Overpass(ctx context.Context, point GeoPoint) (*Snapshot, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}
	if s.cache != nil {
		snap, ok := s.cache.Get(point)
		metrics.ObserveCacheLookup(ok)
		if ok {
			s.logger.DebugContext(ctx, "overpass cache hit", "point", point.String(), "snapshot", snap.ID)
			return snap, nil
		}
	}
	return s.Refresh(ctx, point)
}

// Refresh aggregates point and replaces its cache entry. Snapshots with a
// failed record are returned but not cached.
func (s *Service) Refresh(ctx context.Context, point GeoPoint) (*Snapshot, error) {
	records, err := s.aggregator.Aggregate(ctx, point, s.Satellites())
	if err != nil {
		return nil, err
	}

	if s.cache == nil || anyFailed(records) {
		return &Snapshot{ID: uuid.NewString(), Point: point, Records: records, ComputedAt: time.Now().UTC()}, nil
	}
	return s.cache.Put(point, records), nil
}

// Dates returns the combined flat view for point.
func (s *Service) Dates(ctx context.Context, point GeoPoint) (CombinedDates, error) {
	snap, err := s.Overpass(ctx, point)
	if err != nil {
		return CombinedDates{}, err
	}
	return Combine(snap.Records), nil
}

// CacheStats reports the cache size, or zeros when caching is disabled.
func (s *Service) CacheStats() (count int, oldestAge time.Duration) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}

func anyFailed(records []Record) bool {
	for i := range records {
		if records[i].Failed() {
			return true
		}
	}
	return false
}
