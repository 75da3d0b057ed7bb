// Package translate converts between Earth Engine listings and the
// service's STAC and acquisition views.
package translate

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/earthengine"
	"github.com/robert-malhotra/overpass-proxy/internal/stac"
)

// Translator builds Earth Engine queries and converts their results.
type Translator struct {
	apiBaseURL string
	eeBaseURL  string
	pageSize   int
	logger     *slog.Logger
}

// NewTranslator creates a new translator instance.
func NewTranslator(apiBaseURL, eeBaseURL string, pageSize int, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		apiBaseURL: apiBaseURL,
		eeBaseURL:  eeBaseURL,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// ListImagesParams builds the listImages query for images of sat covering
// the coordinate within [start, end).
func (t *Translator) ListImagesParams(sat *config.SatelliteConfig, lat, lon float64, start, end time.Time) (earthengine.ListImagesParams, error) {
	if sat == nil {
		return earthengine.ListImagesParams{}, fmt.Errorf("satellite is nil")
	}

	region, err := PointRegion(lat, lon)
	if err != nil {
		return earthengine.ListImagesParams{}, err
	}

	start = start.UTC()
	end = end.UTC()

	t.logger.Debug("building listImages params",
		slog.String("satellite", sat.ID),
		slog.String("collection", sat.Collection),
		slog.String("start", FormatSTACTime(start)),
		slog.String("end", FormatSTACTime(end)),
	)

	return earthengine.ListImagesParams{
		Collection: sat.Collection,
		Region:     region,
		StartTime:  &start,
		EndTime:    &end,
		Filter:     sat.Filter.Expression(),
		PageSize:   t.pageSize,
		View:       "FULL",
	}, nil
}

// ImageToItem converts one image of sat to a STAC item.
func (t *Translator) ImageToItem(img *earthengine.Image, sat *config.SatelliteConfig) (*stac.Item, error) {
	return ImageToItem(img, sat, t.apiBaseURL, t.eeBaseURL)
}

// ItemCollection wraps items of sat in an ItemCollection with paging
// context and links.
func (t *Translator) ItemCollection(items []*stac.Item, sat *config.SatelliteConfig, limit int, matched *int, selfHref string) *stac.ItemCollection {
	itemCollection := stac.NewItemCollection(items)
	itemCollection.SetContext(len(items), limit, matched)

	if t.apiBaseURL != "" {
		if selfHref != "" {
			itemCollection.AddLink("self", selfHref, "application/geo+json")
		}
		itemCollection.AddLink("collection", fmt.Sprintf("%s/satellites/%s", t.apiBaseURL, sat.ID), "application/json")
		itemCollection.AddLink("root", t.apiBaseURL, "application/json")
	}

	return itemCollection
}
