package translate

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/overpass-proxy/pkg/geojson"
)

// PointRegion builds the GeoJSON region used to query imagery covering a
// single coordinate.
func PointRegion(lat, lon float64) (*geojson.Geometry, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range (lat=%g, lon=%g)", ErrInvalidGeometry, lat, lon)
	}
	return geojson.NewPoint(lon, lat), nil
}

// Covers reports whether a footprint covers the coordinate. Missing or
// non-polygonal footprints count as covering.
func Covers(footprint *geojson.Geometry, lat, lon float64) bool {
	if footprint == nil {
		return true
	}
	ok, err := geojson.ContainsPoint(footprint, lon, lat)
	if err != nil {
		return true
	}
	return ok
}
