package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeSatellite(t *testing.T, dir, name string, sat SatelliteConfig) {
	t.Helper()

	data, err := json.MarshalIndent(sat, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal test satellite: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("failed to write test satellite: %v", err)
	}
}

func TestLoadSatellites(t *testing.T) {
	tmpDir := t.TempDir()

	writeSatellite(t, tmpDir, "b.json", SatelliteConfig{
		ID:         "sentinel-2a",
		Name:       "Sentinel-2A",
		Collection: "COPERNICUS/S2_SR_HARMONIZED",
		Filter:     &PropertyFilter{Property: "SPACECRAFT_NAME", Value: "Sentinel-2A"},
		Predict:    true,
		Order:      2,
	})
	writeSatellite(t, tmpDir, "a.json", SatelliteConfig{
		ID:         "landsat-8",
		Name:       "Landsat 8",
		Collection: "LANDSAT/LC08/C02/T1_L2",
		Predict:    true,
		Order:      1,
	})
	if err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	registry, err := LoadSatellites(tmpDir)
	if err != nil {
		t.Fatalf("LoadSatellites() failed: %v", err)
	}

	if registry.Count() != 2 {
		t.Fatalf("expected 2 satellites, got %d", registry.Count())
	}

	ids := registry.IDs()
	if ids[0] != "landsat-8" || ids[1] != "sentinel-2a" {
		t.Errorf("expected order [landsat-8 sentinel-2a], got %v", ids)
	}

	sat := registry.Get("sentinel-2a")
	if sat == nil {
		t.Fatal("satellite not found")
	}
	if got := sat.Filter.Expression(); got != `SPACECRAFT_NAME = "Sentinel-2A"` {
		t.Errorf("unexpected filter expression %s", got)
	}
}

func TestLoadSatellitesInvalidDirectory(t *testing.T) {
	if _, err := LoadSatellites("/nonexistent/directory"); err == nil {
		t.Error("expected error for nonexistent directory")
	}
}

func TestLoadSatellitesEmptyDirectory(t *testing.T) {
	if _, err := LoadSatellites(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestLoadSatellitesDuplicateID(t *testing.T) {
	tmpDir := t.TempDir()
	sat := SatelliteConfig{ID: "landsat-8", Name: "Landsat 8", Collection: "LANDSAT/LC08/C02/T1_L2"}
	writeSatellite(t, tmpDir, "a.json", sat)
	writeSatellite(t, tmpDir, "b.json", sat)

	if _, err := LoadSatellites(tmpDir); err == nil {
		t.Error("expected error for duplicate satellite IDs")
	}
}

func TestLoadSatellitesMalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "bad.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSatellites(tmpDir); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestValidateSatellite(t *testing.T) {
	tests := []struct {
		name      string
		satellite *SatelliteConfig
		wantError bool
	}{
		{
			name:      "valid",
			satellite: &SatelliteConfig{ID: "x", Name: "X", Collection: "A/B"},
		},
		{
			name:      "missing ID",
			satellite: &SatelliteConfig{Name: "X", Collection: "A/B"},
			wantError: true,
		},
		{
			name:      "missing name",
			satellite: &SatelliteConfig{ID: "x", Collection: "A/B"},
			wantError: true,
		},
		{
			name:      "missing collection",
			satellite: &SatelliteConfig{ID: "x", Name: "X"},
			wantError: true,
		},
		{
			name:      "filter without value",
			satellite: &SatelliteConfig{ID: "x", Name: "X", Collection: "A/B", Filter: &PropertyFilter{Property: "P"}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSatellite(tt.satellite)
			if (err != nil) != tt.wantError {
				t.Errorf("validateSatellite() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	if registry.Count() != 6 {
		t.Fatalf("expected 6 built-in satellites, got %d", registry.Count())
	}

	predictable := registry.Predictable()
	want := []string{"landsat-8", "landsat-9", "sentinel-2a", "sentinel-2b"}
	if len(predictable) != len(want) {
		t.Fatalf("expected %d predictable satellites, got %d", len(want), len(predictable))
	}
	for i, sat := range predictable {
		if sat.ID != want[i] {
			t.Errorf("predictable[%d] = %s, want %s", i, sat.ID, want[i])
		}
	}

	if hls := registry.FindByFamily("hls"); len(hls) != 2 {
		t.Errorf("expected 2 HLS satellites, got %d", len(hls))
	}

	if registry.Has("sentinel-1") {
		t.Error("unexpected sentinel-1 in default registry")
	}
}

func TestRegistryAddRejectsDuplicates(t *testing.T) {
	registry := NewSatelliteRegistry()
	sat := &SatelliteConfig{ID: "x", Name: "X", Collection: "A/B"}

	if err := registry.Add(sat); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := registry.Add(sat); err == nil {
		t.Error("expected error adding duplicate satellite")
	}
	if err := registry.Add(nil); err == nil {
		t.Error("expected error adding nil satellite")
	}
}

func TestPropertyFilterExpressionNil(t *testing.T) {
	var f *PropertyFilter
	if got := f.Expression(); got != "" {
		t.Errorf("expected empty expression, got %q", got)
	}
}
