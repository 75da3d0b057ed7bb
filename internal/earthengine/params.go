package earthengine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/robert-malhotra/overpass-proxy/pkg/geojson"
)

// ListImagesParams represents parameters for a listImages query.
type ListImagesParams struct {
	// Collection is the ImageCollection asset id (e.g., "LANDSAT/LC08/C02/T1_L2").
	Collection string

	// Spatial filter
	Region *geojson.Geometry

	// Temporal filters
	StartTime *time.Time // inclusive
	EndTime   *time.Time // exclusive

	// Filter is an expression on image properties, e.g. `SPACECRAFT_NAME = "Sentinel-2A"`.
	Filter string

	// Paging
	PageSize  int
	PageToken string

	// View is "BASIC" or "FULL". FULL includes band and geometry details.
	View string
}

// Validate checks that the parameters can be sent.
func (p *ListImagesParams) Validate() error {
	if p.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if p.StartTime != nil && p.EndTime != nil && !p.StartTime.Before(*p.EndTime) {
		return fmt.Errorf("start time %s must be before end time %s",
			p.StartTime.Format(time.RFC3339), p.EndTime.Format(time.RFC3339))
	}
	if p.PageSize < 0 {
		return fmt.Errorf("page size must not be negative, got %d", p.PageSize)
	}
	return nil
}

// ToQueryString converts ListImagesParams to a URL query string
func (p *ListImagesParams) ToQueryString() (string, error) {
	values, err := p.ToURLValues()
	if err != nil {
		return "", err
	}
	return values.Encode(), nil
}

// ToURLValues converts ListImagesParams to url.Values for query string building
func (p *ListImagesParams) ToURLValues() (url.Values, error) {
	values := url.Values{}

	if p.Region != nil {
		region, err := json.Marshal(p.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to encode region: %w", err)
		}
		values.Set("region", string(region))
	}

	if p.StartTime != nil {
		values.Set("startTime", p.StartTime.UTC().Format(time.RFC3339))
	}
	if p.EndTime != nil {
		values.Set("endTime", p.EndTime.UTC().Format(time.RFC3339))
	}

	if p.Filter != "" {
		values.Set("filter", p.Filter)
	}

	if p.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.PageToken != "" {
		values.Set("pageToken", p.PageToken)
	}

	if p.View != "" {
		values.Set("view", p.View)
	}

	return values, nil
}
