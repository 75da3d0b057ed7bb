package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/earthengine"
	"github.com/robert-malhotra/overpass-proxy/internal/stac"
	"github.com/robert-malhotra/overpass-proxy/internal/translate"
)

// ImageLister lists images from an Earth Engine collection.
type ImageLister interface {
	ListAllImages(ctx context.Context, params earthengine.ListImagesParams, maxPages int) ([]earthengine.Image, error)
}

// EarthEngineBackend implements ImageryBackend for the Earth Engine REST API.
type EarthEngineBackend struct {
	client     ImageLister
	translator *translate.Translator
	lookback   time.Duration
	maxPages   int
	now        func() time.Time
	logger     *slog.Logger
}

// NewEarthEngineBackend creates a new Earth Engine backend. lookback bounds
// how far back acquisitions are searched.
func NewEarthEngineBackend(
	client ImageLister,
	translator *translate.Translator,
	lookback time.Duration,
	maxPages int,
	logger *slog.Logger,
) *EarthEngineBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &EarthEngineBackend{
		client:     client,
		translator: translator,
		lookback:   lookback,
		maxPages:   maxPages,
		now:        time.Now,
		logger:     logger,
	}
}

// Name returns the backend name.
func (b *EarthEngineBackend) Name() string {
	return "earthengine"
}

// RecentAcquisitions lists images of sat over the point within the lookback
// window and returns the k most recent distinct acquisition instants.
func (b *EarthEngineBackend) RecentAcquisitions(ctx context.Context, lat, lon float64, sat *config.SatelliteConfig, k int) (*AcquisitionHistory, error) {
	if k < 1 {
		return nil, fmt.Errorf("acquisition count must be at least 1, got %d", k)
	}

	images, err := b.listImages(ctx, sat, lat, lon, nil, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(images))
	timestamps := make([]time.Time, 0, len(images))
	for i := range images {
		img := &images[i]
		if !translate.Covers(img.Geometry, lat, lon) {
			continue
		}

		ts, err := translate.ParseEETime(img.StartTime)
		if err != nil {
			b.logger.WarnContext(ctx, "skipping image with unparseable start time",
				slog.String("image_id", img.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		// Overlapping tiles of one pass share an acquisition second.
		ts = ts.Truncate(time.Second)
		if seen[ts.Unix()] {
			continue
		}
		seen[ts.Unix()] = true
		timestamps = append(timestamps, ts)
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].After(timestamps[j])
	})
	if len(timestamps) > k {
		timestamps = timestamps[:k]
	}

	history := &AcquisitionHistory{Timestamps: timestamps}
	if len(timestamps) > 0 {
		history.Latest = translate.FormatAcquisition(timestamps[0])
	}

	b.logger.DebugContext(ctx, "recent acquisitions resolved",
		slog.String("satellite", sat.ID),
		slog.Int("image_count", len(images)),
		slog.Int("acquisition_count", len(timestamps)),
		slog.String("latest", history.Latest),
	)

	return history, nil
}

// SearchImages returns STAC items for images of a satellite over a point,
// newest first.
func (b *EarthEngineBackend) SearchImages(ctx context.Context, params *SearchParams) (*SearchResult, error) {
	if params == nil || params.Satellite == nil {
		return nil, fmt.Errorf("satellite is required")
	}

	images, err := b.listImages(ctx, params.Satellite, params.Lat, params.Lon, params.Start, params.End)
	if err != nil {
		return nil, err
	}

	items := make([]*stac.Item, 0, len(images))
	for i := range images {
		if !translate.Covers(images[i].Geometry, params.Lat, params.Lon) {
			continue
		}
		item, err := b.translator.ImageToItem(&images[i], params.Satellite)
		if err != nil {
			b.logger.WarnContext(ctx, "failed to translate image",
				slog.String("image_id", images[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		items = append(items, item)
	}

	// RFC3339 UTC strings order chronologically.
	sort.SliceStable(items, func(i, j int) bool {
		return itemDatetime(items[i]) > itemDatetime(items[j])
	})

	total := len(items)
	if params.Limit > 0 && len(items) > params.Limit {
		items = items[:params.Limit]
	}

	return &SearchResult{
		Items:      items,
		TotalCount: &total,
	}, nil
}

func (b *EarthEngineBackend) listImages(ctx context.Context, sat *config.SatelliteConfig, lat, lon float64, start, end *time.Time) ([]earthengine.Image, error) {
	if sat == nil {
		return nil, fmt.Errorf("satellite is required")
	}

	windowEnd := b.now().UTC()
	if end != nil {
		windowEnd = *end
	}
	windowStart := windowEnd.Add(-b.lookback)
	if start != nil {
		windowStart = *start
	}
	// Earth Engine treats endTime as exclusive.
	if !windowStart.Before(windowEnd) {
		windowEnd = windowStart.Add(time.Second)
	}

	params, err := b.translator.ListImagesParams(sat, lat, lon, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to build listImages params: %w", err)
	}

	images, err := b.client.ListAllImages(ctx, params, b.maxPages)
	if err != nil {
		return nil, fmt.Errorf("earth engine search for %s failed: %w", sat.ID, err)
	}
	return images, nil
}

func itemDatetime(item *stac.Item) string {
	s, _ := item.Properties["datetime"].(string)
	return s
}
