package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robert-malhotra/overpass-proxy/internal/backend"
	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/earthengine"
	"github.com/robert-malhotra/overpass-proxy/internal/overpass"
	"github.com/robert-malhotra/overpass-proxy/internal/predict"
	intstac "github.com/robert-malhotra/overpass-proxy/internal/stac"
	"github.com/robert-malhotra/overpass-proxy/internal/timezone"
	"github.com/robert-malhotra/overpass-proxy/internal/translate"
)

// SnapshotIDHeader carries the id of the aggregation snapshot served.
const SnapshotIDHeader = "X-Snapshot-ID"

// ReadyFunc reports whether the service can take traffic.
type ReadyFunc func(ctx context.Context) error

// Handlers contains all HTTP handlers of the overpass API.
type Handlers struct {
	cfg        *config.Config
	overpass   *overpass.Service
	imagery    backend.ImageryBackend
	translator *translate.Translator
	satellites *config.SatelliteRegistry
	tz         *timezone.Converter
	ready      ReadyFunc
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(
	cfg *config.Config,
	svc *overpass.Service,
	imagery backend.ImageryBackend,
	translator *translate.Translator,
	satellites *config.SatelliteRegistry,
	tz *timezone.Converter,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		overpass:   svc,
		imagery:    imagery,
		translator: translator,
		satellites: satellites,
		tz:         tz,
		logger:     logger,
	}
}

// WithReadiness sets the check used by the readiness endpoint.
func (h *Handlers) WithReadiness(ready ReadyFunc) *Handlers {
	h.ready = ready
	return h
}

// LandingPage returns the API root document.
// GET /
func (h *Handlers) LandingPage(w http.ResponseWriter, r *http.Request) {
	baseURL := h.cfg.API.BaseURL

	landing := intstac.NewLandingPage("overpass-root", h.cfg.API.Title, h.cfg.API.Description)
	landing.AddLink("self", baseURL+"/", "application/json")
	landing.AddLink("root", baseURL+"/", "application/json")
	landing.AddLink("data", baseURL+"/satellites", "application/json")
	landing.AddLink("overpass", baseURL+"/overpass", "application/json")
	landing.AddLink("overpass-dates", baseURL+"/overpass/dates", "application/json")
	landing.AddLink("timezone", baseURL+"/timezone", "application/json")
	landing.AddLink("predict", baseURL+"/predict", "application/json")
	if h.cfg.Features.EnableMetrics {
		landing.AddLink("metrics", baseURL+"/metrics", "text/plain")
	}

	WriteJSON(w, http.StatusOK, landing)
}

// Health reports liveness.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness and prediction cache statistics.
// GET /ready
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			WriteUnavailable(w, err.Error())
			return
		}
	}

	entries, oldest := h.overpass.CacheStats()
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"cache": map[string]any{
			"entries":          entries,
			"oldestAgeSeconds": int(oldest.Seconds()),
		},
	})
}

// satelliteResponse is a satellite with its links.
type satelliteResponse struct {
	*config.SatelliteConfig
	Links []*intstac.Link `json:"links"`
}

func (h *Handlers) satelliteResponse(sat *config.SatelliteConfig) satelliteResponse {
	baseURL := h.cfg.API.BaseURL
	links := []*intstac.Link{
		{Rel: "self", Href: fmt.Sprintf("%s/satellites/%s", baseURL, sat.ID), Type: "application/json"},
		{Rel: "root", Href: baseURL + "/", Type: "application/json"},
	}
	if h.cfg.Features.EnableAcquisitions {
		links = append(links, &intstac.Link{
			Rel:  "items",
			Href: fmt.Sprintf("%s/satellites/%s/acquisitions", baseURL, sat.ID),
			Type: "application/geo+json",
		})
	}
	return satelliteResponse{SatelliteConfig: sat, Links: links}
}

// Satellites lists the configured satellites.
// GET /satellites
func (h *Handlers) Satellites(w http.ResponseWriter, r *http.Request) {
	all := h.satellites.All()
	out := make([]satelliteResponse, 0, len(all))
	for _, sat := range all {
		out = append(out, h.satelliteResponse(sat))
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"satellites": out,
		"links": []*intstac.Link{
			{Rel: "self", Href: h.cfg.API.BaseURL + "/satellites", Type: "application/json"},
			{Rel: "root", Href: h.cfg.API.BaseURL + "/", Type: "application/json"},
		},
	})
}

// Satellite returns one satellite by id.
// GET /satellites/{satelliteId}
func (h *Handlers) Satellite(w http.ResponseWriter, r *http.Request) {
	sat, ok := h.lookupSatellite(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, h.satelliteResponse(sat))
}

func (h *Handlers) lookupSatellite(w http.ResponseWriter, r *http.Request) (*config.SatelliteConfig, bool) {
	id := chi.URLParam(r, "satelliteId")
	if id == "" {
		WriteBadRequest(w, "satellite ID is required")
		return nil, false
	}
	sat := h.satellites.Get(id)
	if sat == nil {
		WriteNotFound(w, fmt.Sprintf("satellite %q not found", id))
		return nil, false
	}
	return sat, true
}

// Acquisitions returns the most recent images of a satellite over a point as
// a STAC ItemCollection.
// GET /satellites/{satelliteId}/acquisitions?lat=&lon=&limit=&datetime=
func (h *Handlers) Acquisitions(w http.ResponseWriter, r *http.Request) {
	sat, ok := h.lookupSatellite(w, r)
	if !ok {
		return
	}

	var q acquisitionsQuery
	q.bind(r.URL.Query())
	if err := validate.Struct(q); err != nil {
		WriteInvalidParameter(w, validationError(err).Error())
		return
	}
	point, err := q.Point.toPoint()
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	limit := h.cfg.Features.DefaultLimit
	if q.Limit != "" {
		limit, _ = strconv.Atoi(q.Limit)
		if limit < 1 {
			WriteInvalidParameter(w, "limit must be positive")
			return
		}
	}
	if limit > h.cfg.Features.MaxLimit {
		limit = h.cfg.Features.MaxLimit
	}

	start, end, err := translate.ParseDateTimeInterval(q.Datetime)
	if err != nil {
		WriteInvalidParameter(w, fmt.Sprintf("invalid datetime: %v", err))
		return
	}

	result, err := h.imagery.SearchImages(r.Context(), &backend.SearchParams{
		Satellite: sat,
		Lat:       point.Lat,
		Lon:       point.Lon,
		Start:     start,
		End:       end,
		Limit:     limit,
	})
	if err != nil {
		h.writeServiceError(w, r, "acquisition search failed", fmt.Errorf("%w: %w", overpass.ErrExternalFetch, err))
		return
	}

	selfHref := h.requestURL(r)
	WriteGeoJSON(w, http.StatusOK, h.translator.ItemCollection(result.Items, sat, limit, result.TotalCount, selfHref))
}

// Overpass returns one prediction record per predictable satellite.
// GET /overpass?lat=&lon=
func (h *Handlers) Overpass(w http.ResponseWriter, r *http.Request) {
	point, err := parsePointQuery(r.URL.Query())
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	snap, err := h.overpass.Overpass(r.Context(), point)
	if err != nil {
		h.writeServiceError(w, r, "overpass aggregation failed", err)
		return
	}

	if snap.ID != "" {
		w.Header().Set(SnapshotIDHeader, snap.ID)
	}
	WriteJSON(w, http.StatusOK, snap.Records)
}

// OverpassDates returns the combined dates of all predictable satellites.
// GET /overpass/dates?lat=&lon=
func (h *Handlers) OverpassDates(w http.ResponseWriter, r *http.Request) {
	point, err := parsePointQuery(r.URL.Query())
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	combined, err := h.overpass.Dates(r.Context(), point)
	if err != nil {
		h.writeServiceError(w, r, "overpass aggregation failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, combined)
}

// timezoneResponse is the body of the timezone endpoint.
type timezoneResponse struct {
	Timezone  string             `json:"timezone"`
	UTCDate   string             `json:"utcDate"`
	UTCTime   string             `json:"utcTime"`
	LocalDate string             `json:"localDate"`
	LocalTime timezone.LocalTime `json:"localTime"`
}

// Timezone converts a UTC date and time to local time at a point. Date and
// time default to the current UTC instant.
// GET /timezone?lat=&lon=&date=&time=
func (h *Handlers) Timezone(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	point, err := parsePointQuery(query)
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	now := time.Now().UTC()
	tq := timezoneQuery{Date: query.Get("date"), Time: query.Get("time")}
	if err := validate.Struct(tq); err != nil {
		WriteInvalidParameter(w, validationError(err).Error())
		return
	}
	if tq.Date == "" {
		tq.Date = now.Format(timezone.DateLayout)
	}
	if tq.Time == "" {
		tq.Time = now.Format(timezone.Time24Layout)
	}

	zone, err := h.tz.ResolveTimezone(point.Lat, point.Lon)
	if err != nil {
		h.writeServiceError(w, r, "timezone lookup failed", err)
		return
	}
	localTime, err := h.tz.ToLocalTimeOfDay(point.Lat, point.Lon, tq.Date, tq.Time)
	if err != nil {
		h.writeServiceError(w, r, "timezone conversion failed", err)
		return
	}
	localDate, err := h.tz.ToLocalDate(point.Lat, point.Lon, tq.Date, tq.Time)
	if err != nil {
		h.writeServiceError(w, r, "timezone conversion failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, timezoneResponse{
		Timezone:  zone,
		UTCDate:   tq.Date,
		UTCTime:   tq.Time,
		LocalDate: localDate,
		LocalTime: localTime,
	})
}

// predictResponse is the body of the predict endpoint.
type predictResponse struct {
	Starts         predict.DateSet `json:"starts"`
	CycleDays      int             `json:"cycleDays"`
	Iterations     int             `json:"iterations"`
	PredictedDates predict.DateSet `json:"predictedDates"`
}

// Predict merges the projections of the given start dates.
// GET /predict?start=YYYY-MM-DD&start=...&cycle=&iterations=
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	var q predictQuery
	if err := q.bind(r.URL.Query(), h.cfg.Predict.CycleDays, h.cfg.Predict.Iterations); err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}
	if err := validate.Struct(q); err != nil {
		WriteInvalidParameter(w, validationError(err).Error())
		return
	}

	starts, err := predict.ParseDateSet(q.Start)
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}
	predicted, err := predict.Merge(starts, q.Cycle, q.Iterations)
	if err != nil {
		h.writeServiceError(w, r, "prediction failed", err)
		return
	}

	WriteJSON(w, http.StatusOK, predictResponse{
		Starts:         starts,
		CycleDays:      q.Cycle,
		Iterations:     q.Iterations,
		PredictedDates: predicted,
	})
}

// writeServiceError maps domain and upstream errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var statusErr *earthengine.StatusError

	switch {
	case errors.Is(err, overpass.ErrInvalidPoint),
		errors.Is(err, predict.ErrInvalidArgument),
		errors.Is(err, timezone.ErrInvalidArgument),
		errors.Is(err, timezone.ErrLookup):
		WriteInvalidParameter(w, err.Error())
	case errors.Is(err, overpass.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		h.logger.WarnContext(r.Context(), msg, slog.String("error", err.Error()))
		WriteUpstreamTimeout(w, "upstream request timed out")
	case errors.Is(err, context.Canceled):
		h.logger.DebugContext(r.Context(), msg, slog.String("error", err.Error()))
		WriteError(w, 499, "ClientClosedRequest", "request cancelled")
	case errors.Is(err, earthengine.ErrCircuitOpen), errors.As(err, &statusErr), errors.Is(err, overpass.ErrExternalFetch):
		h.logger.ErrorContext(r.Context(), msg, slog.String("error", err.Error()))
		WriteUpstreamError(w, fmt.Sprintf("%s: %v", msg, err))
	default:
		h.logger.ErrorContext(r.Context(), msg, slog.String("error", err.Error()))
		WriteInternalError(w, msg)
	}
}

// requestURL returns the absolute URL of r under the public base URL.
func (h *Handlers) requestURL(r *http.Request) string {
	u := url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	return h.cfg.API.BaseURL + u.String()
}
