package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SatelliteConfig describes one satellite/sensor identity and how its imagery
// is located in Earth Engine. It is typically built in or loaded from JSON
// files in the satellites directory.
type SatelliteConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Family groups satellites with a shared revisit behaviour, e.g. "landsat".
	Family string `json:"family"`
	// Collection is the Earth Engine ImageCollection asset id.
	Collection string `json:"collection"`
	// Filter optionally narrows the collection to one spacecraft.
	Filter *PropertyFilter `json:"filter,omitempty"`
	// CloudProperty is the image property holding cloud cover percentage.
	CloudProperty string `json:"cloud_property,omitempty"`
	// Predict marks satellites that take part in overpass prediction. Others
	// are browse only.
	Predict bool `json:"predict"`
	// Order controls listing order when loaded from a directory.
	Order int `json:"order,omitempty"`
}

// PropertyFilter is an equality filter on an image property.
type PropertyFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// Expression renders the filter in Earth Engine listImages filter syntax.
func (f *PropertyFilter) Expression() string {
	if f == nil || f.Property == "" {
		return ""
	}
	return fmt.Sprintf(`%s = "%s"`, f.Property, f.Value)
}

// DefaultSatellites returns the built-in satellite list. The first four take
// part in prediction, in this order.
func DefaultSatellites() []*SatelliteConfig {
	return []*SatelliteConfig{
		{
			ID:            "landsat-8",
			Name:          "Landsat 8",
			Family:        "landsat",
			Collection:    "LANDSAT/LC08/C02/T1_L2",
			CloudProperty: "CLOUD_COVER",
			Predict:       true,
		},
		{
			ID:            "landsat-9",
			Name:          "Landsat 9",
			Family:        "landsat",
			Collection:    "LANDSAT/LC09/C02/T1_L2",
			CloudProperty: "CLOUD_COVER",
			Predict:       true,
		},
		{
			ID:            "sentinel-2a",
			Name:          "Sentinel-2A",
			Family:        "sentinel-2",
			Collection:    "COPERNICUS/S2_SR_HARMONIZED",
			Filter:        &PropertyFilter{Property: "SPACECRAFT_NAME", Value: "Sentinel-2A"},
			CloudProperty: "CLOUDY_PIXEL_PERCENTAGE",
			Predict:       true,
		},
		{
			ID:            "sentinel-2b",
			Name:          "Sentinel-2B",
			Family:        "sentinel-2",
			Collection:    "COPERNICUS/S2_SR_HARMONIZED",
			Filter:        &PropertyFilter{Property: "SPACECRAFT_NAME", Value: "Sentinel-2B"},
			CloudProperty: "CLOUDY_PIXEL_PERCENTAGE",
			Predict:       true,
		},
		{
			ID:            "hls-l30",
			Name:          "HLS Landsat 30m",
			Family:        "hls",
			Collection:    "NASA/HLS/HLSL30/v002",
			CloudProperty: "CLOUD_COVERAGE",
		},
		{
			ID:            "hls-s30",
			Name:          "HLS Sentinel 30m",
			Family:        "hls",
			Collection:    "NASA/HLS/HLSS30/v002",
			CloudProperty: "CLOUD_COVERAGE",
		},
	}
}

// SatelliteRegistry holds satellite configurations indexed by ID. It keeps
// insertion order.
type SatelliteRegistry struct {
	satellites map[string]*SatelliteConfig
	order      []string
}

// NewSatelliteRegistry creates a new empty satellite registry.
func NewSatelliteRegistry() *SatelliteRegistry {
	return &SatelliteRegistry{
		satellites: make(map[string]*SatelliteConfig),
	}
}

// DefaultRegistry returns a registry holding DefaultSatellites.
func DefaultRegistry() *SatelliteRegistry {
	registry := NewSatelliteRegistry()
	for _, sat := range DefaultSatellites() {
		// Built-in entries are valid and unique.
		_ = registry.Add(sat)
	}
	return registry
}

// LoadSatellites loads satellite definitions from JSON files in the specified
// directory. Files are registered by their Order field, then by file name.
// Only files with a .json extension are processed.
func LoadSatellites(satellitesDir string) (*SatelliteRegistry, error) {
	info, err := os.Stat(satellitesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to access satellites directory %q: %w", satellitesDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("satellites path %q is not a directory", satellitesDir)
	}

	entries, err := os.ReadDir(satellitesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read satellites directory %q: %w", satellitesDir, err)
	}

	var loaded []*SatelliteConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if !strings.HasSuffix(strings.ToLower(filename), ".json") {
			continue
		}

		filePath := filepath.Join(satellitesDir, filename)
		sat, err := loadSatelliteFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load satellite from %q: %w", filePath, err)
		}
		loaded = append(loaded, sat)
	}

	if len(loaded) == 0 {
		return nil, fmt.Errorf("no satellite files found in %q", satellitesDir)
	}

	// ReadDir returns entries sorted by name, so a stable sort keeps file
	// order for equal Order values.
	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].Order < loaded[j].Order
	})

	registry := NewSatelliteRegistry()
	for _, sat := range loaded {
		if err := registry.Add(sat); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// loadSatelliteFile loads a single satellite configuration from a JSON file.
func loadSatelliteFile(filePath string) (*SatelliteConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sat SatelliteConfig
	if err := json.Unmarshal(data, &sat); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if err := validateSatellite(&sat); err != nil {
		return nil, fmt.Errorf("invalid satellite configuration: %w", err)
	}

	return &sat, nil
}

// validateSatellite checks that a satellite configuration is valid.
func validateSatellite(s *SatelliteConfig) error {
	if s.ID == "" {
		return fmt.Errorf("satellite ID is required")
	}

	if s.Name == "" {
		return fmt.Errorf("satellite name is required")
	}

	if s.Collection == "" {
		return fmt.Errorf("satellite collection is required")
	}

	if s.Filter != nil && (s.Filter.Property == "" || s.Filter.Value == "") {
		return fmt.Errorf("satellite filter requires both property and value")
	}

	return nil
}

// Add registers a satellite in the registry.
// Returns an error if a satellite with the same ID already exists.
func (r *SatelliteRegistry) Add(sat *SatelliteConfig) error {
	if sat == nil {
		return fmt.Errorf("cannot add nil satellite")
	}

	if err := validateSatellite(sat); err != nil {
		return err
	}

	if _, exists := r.satellites[sat.ID]; exists {
		return fmt.Errorf("satellite with ID %q already exists", sat.ID)
	}

	r.satellites[sat.ID] = sat
	r.order = append(r.order, sat.ID)
	return nil
}

// Get retrieves a satellite by ID.
// Returns nil if the satellite does not exist.
func (r *SatelliteRegistry) Get(id string) *SatelliteConfig {
	return r.satellites[id]
}

// Has checks if a satellite with the given ID exists in the registry.
func (r *SatelliteRegistry) Has(id string) bool {
	_, exists := r.satellites[id]
	return exists
}

// All returns all satellites in registration order.
func (r *SatelliteRegistry) All() []*SatelliteConfig {
	sats := make([]*SatelliteConfig, 0, len(r.order))
	for _, id := range r.order {
		sats = append(sats, r.satellites[id])
	}
	return sats
}

// Predictable returns the satellites that take part in overpass prediction,
// in registration order.
func (r *SatelliteRegistry) Predictable() []*SatelliteConfig {
	var sats []*SatelliteConfig
	for _, id := range r.order {
		if sat := r.satellites[id]; sat.Predict {
			sats = append(sats, sat)
		}
	}
	return sats
}

// IDs returns all satellite IDs in registration order.
func (r *SatelliteRegistry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of satellites in the registry.
func (r *SatelliteRegistry) Count() int {
	return len(r.order)
}

// FindByFamily returns all satellites of the given family in registration order.
func (r *SatelliteRegistry) FindByFamily(family string) []*SatelliteConfig {
	var matches []*SatelliteConfig
	for _, id := range r.order {
		if sat := r.satellites[id]; sat.Family == family {
			matches = append(matches, sat)
		}
	}
	return matches
}
