// Package geojson provides GeoJSON geometry types and utilities.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// NewPoint creates a Point geometry. GeoJSON orders coordinates lon, lat.
func NewPoint(lon, lat float64) *Geometry {
	return &Geometry{
		Type:        "Point",
		Coordinates: json.RawMessage("[" + formatFloat(lon) + "," + formatFloat(lat) + "]"),
	}
}

// Point returns the coordinates as a Point [lon, lat].
// Returns error if geometry is not a Point.
func (g *Geometry) Point() ([]float64, error) {
	if g.Type != "Point" {
		return nil, fmt.Errorf("geometry is not a Point, got %s", g.Type)
	}
	var coords []float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Point coordinates: %w", err)
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("invalid Point coordinates: expected at least 2 values, got %d", len(coords))
	}
	return coords, nil
}

// Polygon returns the coordinates as a Polygon [][][lon, lat].
// Returns error if geometry is not a Polygon.
func (g *Geometry) Polygon() ([][][]float64, error) {
	if g.Type != "Polygon" {
		return nil, fmt.Errorf("geometry is not a Polygon, got %s", g.Type)
	}
	var coords [][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
	}
	return coords, nil
}

// MultiPolygon returns the coordinates as a MultiPolygon [][][][lon, lat].
// Returns error if geometry is not a MultiPolygon.
func (g *Geometry) MultiPolygon() ([][][][]float64, error) {
	if g.Type != "MultiPolygon" {
		return nil, fmt.Errorf("geometry is not a MultiPolygon, got %s", g.Type)
	}
	var coords [][][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MultiPolygon coordinates: %w", err)
	}
	return coords, nil
}

// BBox computes the bounding box of the geometry.
// Returns [west, south, east, north].
func (g *Geometry) BBox() ([]float64, error) {
	return ComputeBBox(g)
}

// ComputeBBox computes the bounding box of a Point, Polygon or MultiPolygon.
// Returns [west, south, east, north].
func ComputeBBox(g *Geometry) ([]float64, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}

	var rings [][][]float64

	switch g.Type {
	case "Point":
		coords, err := g.Point()
		if err != nil {
			return nil, err
		}
		return []float64{coords[0], coords[1], coords[0], coords[1]}, nil

	case "Polygon":
		coords, err := g.Polygon()
		if err != nil {
			return nil, err
		}
		rings = coords

	case "MultiPolygon":
		coords, err := g.MultiPolygon()
		if err != nil {
			return nil, err
		}
		for _, polygon := range coords {
			rings = append(rings, polygon...)
		}

	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, ring := range rings {
		for _, point := range ring {
			if len(point) < 2 {
				continue
			}
			minLon = math.Min(minLon, point[0])
			maxLon = math.Max(maxLon, point[0])
			minLat = math.Min(minLat, point[1])
			maxLat = math.Max(maxLat, point[1])
		}
	}

	if math.IsInf(minLon, 0) || math.IsInf(minLat, 0) {
		return nil, fmt.Errorf("failed to compute bounding box: no valid coordinates found")
	}

	return []float64{minLon, minLat, maxLon, maxLat}, nil
}

// ContainsPoint reports whether a Polygon or MultiPolygon covers the point.
// Holes are honoured. Points exactly on an edge may fall either way.
func ContainsPoint(g *Geometry, lon, lat float64) (bool, error) {
	if g == nil {
		return false, fmt.Errorf("geometry is nil")
	}

	switch g.Type {
	case "Polygon":
		coords, err := g.Polygon()
		if err != nil {
			return false, err
		}
		return polygonContains(coords, lon, lat), nil

	case "MultiPolygon":
		coords, err := g.MultiPolygon()
		if err != nil {
			return false, err
		}
		for _, polygon := range coords {
			if polygonContains(polygon, lon, lat) {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

func polygonContains(rings [][][]float64, lon, lat float64) bool {
	if len(rings) == 0 || !ringContains(rings[0], lon, lat) {
		return false
	}
	for _, hole := range rings[1:] {
		if ringContains(hole, lon, lat) {
			return false
		}
	}
	return true
}

// ringContains is the even-odd ray casting test.
func ringContains(ring [][]float64, lon, lat float64) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		if len(ring[i]) < 2 || len(ring[j]) < 2 {
			continue
		}
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
