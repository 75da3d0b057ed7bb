package overpass

import (
	"fmt"

	"github.com/golang/geo/s2"

	"github.com/robert-malhotra/overpass-proxy/internal/timezone"
)

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the point lies within WGS84 bounds.
func (p GeoPoint) Validate() error {
	if err := timezone.ValidateCoordinates(p.Lat, p.Lon); err != nil {
		return fmt.Errorf("%w: lat=%g lon=%g", ErrInvalidPoint, p.Lat, p.Lon)
	}
	return nil
}

// Cell returns the S2 cell at level containing the point.
func (p GeoPoint) Cell(level int) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon)).Parent(level)
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}
