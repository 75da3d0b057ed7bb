// Package backend provides the imagery collaborator used by the overpass
// aggregator and the acquisitions endpoint.
package backend

import (
	"context"
	"time"

	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/stac"
)

// ImageryBackend defines the interface for imagery catalog backends.
type ImageryBackend interface {
	// RecentAcquisitions returns up to k of the most recent acquisition
	// instants of sat over the coordinate, newest first.
	RecentAcquisitions(ctx context.Context, lat, lon float64, sat *config.SatelliteConfig, k int) (*AcquisitionHistory, error)

	// SearchImages returns STAC items for images of a satellite over a point.
	SearchImages(ctx context.Context, params *SearchParams) (*SearchResult, error)

	// Name returns the backend name (e.g., "earthengine").
	Name() string
}

// AcquisitionHistory is the recent acquisition record of one satellite at
// one point.
type AcquisitionHistory struct {
	// Timestamps are UTC acquisition instants, newest first, without duplicates.
	Timestamps []time.Time

	// Latest is Timestamps[0] rendered as "YYYY-MM-DD HH:mm:ss", or "" when
	// there are no acquisitions.
	Latest string
}

// Empty reports whether no acquisitions were found.
func (h *AcquisitionHistory) Empty() bool {
	return h == nil || len(h.Timestamps) == 0
}

// SearchParams contains parameters for image searches.
type SearchParams struct {
	Satellite *config.SatelliteConfig

	Lat float64
	Lon float64

	// Temporal filters. Nil bounds default to the configured lookback window.
	Start *time.Time
	End   *time.Time

	Limit int
}

// SearchResult contains the results of an image search.
type SearchResult struct {
	// Items are the STAC items returned by the search, newest first.
	Items []*stac.Item

	// TotalCount is the number of matching images before the limit was applied.
	TotalCount *int
}
