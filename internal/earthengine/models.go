package earthengine

import "github.com/robert-malhotra/overpass-proxy/pkg/geojson"

// ListImagesResponse is the body returned by the assets listImages method.
type ListImagesResponse struct {
	Images        []Image `json:"images"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Image is an Earth Engine image asset as returned by listImages.
type Image struct {
	Type string `json:"type"` // "IMAGE"
	// Name is the full resource name, e.g.
	// "projects/earthengine-public/assets/LANDSAT/LC08/C02/T1_L2/LC08_044034_20240101".
	Name string `json:"name"`
	// ID is the asset id without the project prefix.
	ID         string                 `json:"id"`
	UpdateTime string                 `json:"updateTime,omitempty"`
	StartTime  string                 `json:"startTime"`
	EndTime    string                 `json:"endTime,omitempty"`
	SizeBytes  string                 `json:"sizeBytes,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Geometry   *geojson.Geometry      `json:"geometry,omitempty"`
	Bands      []Band                 `json:"bands,omitempty"`
}

// Band describes a single image band.
type Band struct {
	ID       string    `json:"id"`
	DataType *DataType `json:"dataType,omitempty"`
}

// DataType is the pixel type of a band.
type DataType struct {
	Precision string `json:"precision,omitempty"`
}

// ErrorResponse is the Google API error envelope.
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// StringProperty returns a string image property, or "" when absent.
func (i *Image) StringProperty(key string) string {
	if v, ok := i.Properties[key].(string); ok {
		return v
	}
	return ""
}

// FloatProperty returns a numeric image property.
func (i *Image) FloatProperty(key string) (float64, bool) {
	switch v := i.Properties[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
