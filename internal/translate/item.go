package translate

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/earthengine"
	"github.com/robert-malhotra/overpass-proxy/internal/stac"
	"github.com/robert-malhotra/overpass-proxy/pkg/geojson"
)

// ImageToItem converts an Earth Engine image to a STAC Item in the
// satellite's collection.
func ImageToItem(img *earthengine.Image, sat *config.SatelliteConfig, apiBaseURL, eeBaseURL string) (*stac.Item, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if sat == nil {
		return nil, fmt.Errorf("satellite is nil")
	}

	itemID := imageID(img)
	if itemID == "" {
		return nil, fmt.Errorf("image has no id or name")
	}

	item := stac.NewItem(itemID, sat.ID)

	if img.Geometry != nil {
		item.Geometry = img.Geometry
		if bbox, err := geojson.ComputeBBox(img.Geometry); err == nil {
			item.Bbox = bbox
		}
	}

	if img.StartTime == "" {
		return nil, ErrMissingStartTime
	}
	start, err := ParseEETime(img.StartTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start time: %w", err)
	}
	item.Properties["datetime"] = FormatSTACTime(start)

	if img.EndTime != "" {
		end, err := ParseEETime(img.EndTime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end time: %w", err)
		}
		if !end.Equal(start) {
			item.Properties["start_datetime"] = FormatSTACTime(start)
			item.Properties["end_datetime"] = FormatSTACTime(end)
		}
	}

	item.Properties["platform"] = platform(img, sat)
	if sat.Family != "" {
		item.Properties["constellation"] = sat.Family
	}
	if instruments := getInstruments(sat.Family); len(instruments) > 0 {
		item.Properties["instruments"] = instruments
	}

	// EO Extension
	if sat.CloudProperty != "" {
		if cc, ok := img.FloatProperty(sat.CloudProperty); ok {
			item.Properties["eo:cloud_cover"] = cc
		}
	}

	// Satellite Extension
	if state := img.StringProperty("SENSING_ORBIT_DIRECTION"); state != "" {
		item.Properties["sat:orbit_state"] = strings.ToLower(state)
	}
	if orbit, ok := img.FloatProperty("SENSING_ORBIT_NUMBER"); ok {
		item.Properties["sat:relative_orbit"] = int(orbit)
	}

	if path, ok := img.FloatProperty("WRS_PATH"); ok {
		item.Properties["landsat:wrs_path"] = fmt.Sprintf("%03d", int(path))
	}
	if row, ok := img.FloatProperty("WRS_ROW"); ok {
		item.Properties["landsat:wrs_row"] = fmt.Sprintf("%03d", int(row))
	}

	item.Properties["ee:collection"] = sat.Collection
	if img.ID != "" {
		item.Properties["ee:id"] = img.ID
	}

	addAssets(item, img, eeBaseURL)
	addLinks(item, sat.ID, apiBaseURL)

	return item, nil
}

// imageID returns the short image id, i.e. the last path element of the
// asset id.
func imageID(img *earthengine.Image) string {
	id := img.ID
	if id == "" {
		id = img.Name
	}
	if id == "" {
		return ""
	}
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	return id
}

// platform derives the lowercase STAC platform name, e.g. "landsat-8" or
// "sentinel-2a".
func platform(img *earthengine.Image, sat *config.SatelliteConfig) string {
	if name := img.StringProperty("SPACECRAFT_NAME"); name != "" {
		return strings.ToLower(name)
	}
	if id := img.StringProperty("SPACECRAFT_ID"); id != "" {
		return strings.ToLower(strings.ReplaceAll(id, "_", "-"))
	}
	return sat.ID
}

// getInstruments returns the instruments flown by a satellite family.
func getInstruments(family string) []string {
	switch strings.ToLower(family) {
	case "landsat":
		return []string{"oli", "tirs"}
	case "sentinel-2":
		return []string{"msi"}
	case "hls":
		return []string{"oli", "msi"}
	default:
		return nil
	}
}

// addAssets links the Earth Engine asset metadata.
func addAssets(item *stac.Item, img *earthengine.Image, eeBaseURL string) {
	if eeBaseURL == "" || img.Name == "" {
		return
	}

	item.Assets["metadata"] = &stac.Asset{
		Href:  strings.TrimRight(eeBaseURL, "/") + "/v1/" + img.Name,
		Title: "Earth Engine Asset",
		Type:  "application/json",
		Roles: []string{"metadata"},
	}
}

// addLinks adds STAC links (collection, root) to the item
func addLinks(item *stac.Item, satelliteID, baseURL string) {
	if baseURL == "" {
		return
	}

	item.Links = append(item.Links, &stac.Link{
		Rel:  "collection",
		Href: fmt.Sprintf("%s/satellites/%s", baseURL, satelliteID),
		Type: "application/json",
	})

	item.Links = append(item.Links, &stac.Link{
		Rel:  "root",
		Href: baseURL,
		Type: "application/json",
	})
}
