package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robert-malhotra/overpass-proxy/internal/backend"
	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/earthengine"
	"github.com/robert-malhotra/overpass-proxy/internal/overpass"
	"github.com/robert-malhotra/overpass-proxy/internal/stac"
	"github.com/robert-malhotra/overpass-proxy/internal/timezone"
	"github.com/robert-malhotra/overpass-proxy/internal/translate"
)

// mockBackend is a test backend that returns configurable results
type mockBackend struct {
	mu          sync.Mutex
	histories   map[string]*backend.AcquisitionHistory
	fetchErrs   map[string]error
	items       []*stac.Item
	searchErr   error
	searchCalls []backend.SearchParams // Record of search calls for verification
}

func (m *mockBackend) RecentAcquisitions(ctx context.Context, lat, lon float64, sat *config.SatelliteConfig, k int) (*backend.AcquisitionHistory, error) {
	if err := m.fetchErrs[sat.ID]; err != nil {
		return nil, err
	}
	if h, ok := m.histories[sat.ID]; ok {
		return h, nil
	}
	return &backend.AcquisitionHistory{}, nil
}

func (m *mockBackend) SearchImages(ctx context.Context, params *backend.SearchParams) (*backend.SearchResult, error) {
	m.mu.Lock()
	m.searchCalls = append(m.searchCalls, *params)
	m.mu.Unlock()

	if m.searchErr != nil {
		return nil, m.searchErr
	}

	total := len(m.items)
	end := params.Limit
	if end > len(m.items) {
		end = len(m.items)
	}
	return &backend.SearchResult{Items: m.items[:end], TotalCount: &total}, nil
}

func (m *mockBackend) Name() string {
	return "mock"
}

type staticResolver string

func (r staticResolver) TimezoneName(lat, lon float64) string { return string(r) }

// createTestItem creates a STAC item for testing
func createTestItem(id string, acquired time.Time) *stac.Item {
	item := stac.NewItem(id, "landsat-8")
	item.Properties["datetime"] = acquired.Format(time.RFC3339)
	return item
}

// createTestConfig creates a config for testing
func createTestConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:     "http://test.example.com",
			Title:       "Overpass API",
			Description: "test",
		},
		Predict: config.PredictConfig{
			CycleDays:  16,
			Iterations: 10,
		},
		Features: config.FeatureConfig{
			EnableAcquisitions: true,
			EnableMetrics:      true,
			DefaultLimit:       5,
			MaxLimit:           50,
		},
	}
}

func landsatHistory() *backend.AcquisitionHistory {
	return &backend.AcquisitionHistory{
		Timestamps: []time.Time{
			time.Date(2024, 1, 17, 5, 7, 9, 0, time.UTC),
			time.Date(2024, 1, 1, 5, 7, 0, 0, time.UTC),
		},
		Latest: "2024-01-17 05:07:09",
	}
}

type testServer struct {
	router  http.Handler
	backend *mockBackend
}

func newTestServer(t *testing.T, mock *mockBackend, cfg *config.Config, ready ReadyFunc) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := config.DefaultRegistry()
	tz := timezone.NewConverter(staticResolver("Asia/Kolkata"))

	agg, err := overpass.NewAggregator(mock, tz, overpass.DefaultOptions(), logger)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	cache := overpass.NewCache(time.Minute, time.Hour, 20)
	t.Cleanup(cache.Stop)
	svc := overpass.NewService(agg, registry, cache, logger)
	translator := translate.NewTranslator(cfg.API.BaseURL, "https://earthengine.googleapis.com", 100, logger)

	h := NewHandlers(cfg, svc, mock, translator, registry, tz, logger).WithReadiness(ready)
	return &testServer{router: NewRouter(h, logger), backend: mock}
}

func (s *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to parse response: %v\n%s", err, w.Body.String())
	}
	return v
}

func TestHandlers_LandingPage(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	w := srv.get(t, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	landing := decode[stac.LandingPage](t, w)
	rels := make(map[string]string)
	for _, link := range landing.Links {
		rels[link.Rel] = link.Href
	}
	for rel, href := range map[string]string{
		"self":     "http://test.example.com/",
		"data":     "http://test.example.com/satellites",
		"overpass": "http://test.example.com/overpass",
		"predict":  "http://test.example.com/predict",
		"metrics":  "http://test.example.com/metrics",
	} {
		if rels[rel] != href {
			t.Errorf("Expected %s link %q, got %q", rel, href, rels[rel])
		}
	}
}

func TestHandlers_HealthAndReady(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	if w := srv.get(t, "/health"); w.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", w.Code)
	}

	w := srv.get(t, "/ready")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected ready 200, got %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ready" {
		t.Errorf("Expected status ready, got %v", body["status"])
	}
}

func TestHandlers_ReadyUnavailable(t *testing.T) {
	notReady := func(ctx context.Context) error { return errors.New("earth engine circuit open") }
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), notReady)

	w := srv.get(t, "/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
	if resp := decode[ErrorResponse](t, w); resp.Code != ErrCodeUnavailable {
		t.Errorf("Expected code %s, got %s", ErrCodeUnavailable, resp.Code)
	}
}

func TestHandlers_Satellites(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	w := srv.get(t, "/satellites")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	type listing struct {
		Satellites []struct {
			ID      string `json:"id"`
			Predict bool   `json:"predict"`
			Links   []struct {
				Rel string `json:"rel"`
			} `json:"links"`
		} `json:"satellites"`
	}
	body := decode[listing](t, w)

	if len(body.Satellites) != 6 {
		t.Fatalf("Expected 6 satellites, got %d", len(body.Satellites))
	}
	if body.Satellites[0].ID != "landsat-8" || !body.Satellites[0].Predict {
		t.Errorf("Expected landsat-8 first and predictable, got %+v", body.Satellites[0])
	}
	if body.Satellites[5].Predict {
		t.Errorf("Expected %s to be browse only", body.Satellites[5].ID)
	}
	if len(body.Satellites[0].Links) != 3 {
		t.Errorf("Expected self, root and items links, got %d", len(body.Satellites[0].Links))
	}
}

func TestHandlers_Satellite(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	w := srv.get(t, "/satellites/sentinel-2b")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	sat := decode[config.SatelliteConfig](t, w)
	if sat.Filter == nil || sat.Filter.Value != "Sentinel-2B" {
		t.Errorf("Expected Sentinel-2B filter, got %+v", sat.Filter)
	}

	w = srv.get(t, "/satellites/goes-16")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestHandlers_Overpass(t *testing.T) {
	mock := &mockBackend{histories: map[string]*backend.AcquisitionHistory{
		"landsat-8": landsatHistory(),
	}}
	srv := newTestServer(t, mock, createTestConfig(), nil)

	w := srv.get(t, "/overpass?lat=13.082&lon=80.249")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(SnapshotIDHeader) == "" {
		t.Error("Expected snapshot id header")
	}

	records := decode[[]map[string]any](t, w)
	if len(records) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(records))
	}

	first := records[0]
	if first["satellite"] != "landsat-8" {
		t.Errorf("Expected landsat-8 first, got %v", first["satellite"])
	}
	if first["timeUTC"] != "05:07:09" {
		t.Errorf("Expected timeUTC 05:07:09, got %v", first["timeUTC"])
	}
	if predicted, _ := first["predictedDatesUTC"].([]any); len(predicted) != 10 {
		t.Errorf("Expected 10 predicted dates, got %d", len(predicted))
	}
	if records[1]["timeLocal"] != nil {
		t.Errorf("Expected null timeLocal without acquisitions, got %v", records[1]["timeLocal"])
	}
}

func TestHandlers_Overpass_PartialFailure(t *testing.T) {
	mock := &mockBackend{
		histories: map[string]*backend.AcquisitionHistory{"landsat-8": landsatHistory()},
		fetchErrs: map[string]error{"sentinel-2a": &earthengine.StatusError{StatusCode: 403, Message: "forbidden"}},
	}
	srv := newTestServer(t, mock, createTestConfig(), nil)

	w := srv.get(t, "/overpass?lat=13.082&lon=80.249")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	records := decode[[]overpass.Record](t, w)
	if records[2].ErrorKind != overpass.KindExternalFetch {
		t.Errorf("Expected external_fetch on sentinel-2a, got %q", records[2].ErrorKind)
	}
	if records[0].Failed() || len(records[0].AllDatesUTC) != 12 {
		t.Errorf("Expected landsat-8 populated, got %+v", records[0])
	}
}

func TestHandlers_Overpass_InvalidParams(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"missing lat", "lon=80", "lat is required"},
		{"missing both", "", "lat is required; lon is required"},
		{"lat out of range", "lat=91&lon=80", "lat must be a latitude"},
		{"lon not a number", "lat=13&lon=east", "lon must be a longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.get(t, "/overpass?"+tt.query)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", w.Code)
			}
			resp := decode[ErrorResponse](t, w)
			if resp.Code != ErrCodeInvalidParameter {
				t.Errorf("Expected code %s, got %s", ErrCodeInvalidParameter, resp.Code)
			}
			if !strings.Contains(resp.Description, tt.message) {
				t.Errorf("Expected description to contain %q, got %q", tt.message, resp.Description)
			}
		})
	}
}

func TestHandlers_OverpassDates(t *testing.T) {
	mock := &mockBackend{histories: map[string]*backend.AcquisitionHistory{
		"landsat-8": landsatHistory(),
		"landsat-9": {
			Timestamps: []time.Time{time.Date(2024, 1, 9, 5, 7, 0, 0, time.UTC)},
			Latest:     "2024-01-09 05:07:00",
		},
	}}
	srv := newTestServer(t, mock, createTestConfig(), nil)

	w := srv.get(t, "/overpass/dates?lat=13.082&lon=80.249")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	combined := decode[overpass.CombinedDates](t, w)
	// 12 dates from landsat-8, 11 from landsat-9, none shared.
	if len(combined.DatesUTC) != 23 {
		t.Errorf("Expected 23 combined dates, got %d", len(combined.DatesUTC))
	}
	for i := 1; i < len(combined.DatesUTC); i++ {
		if !combined.DatesUTC[i-1].After(combined.DatesUTC[i]) {
			t.Fatalf("Expected strictly descending dates at %d", i)
		}
	}
}

func TestHandlers_Timezone(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	w := srv.get(t, "/timezone?lat=13.082&lon=80.249&date=2024-01-01&time=18:30:00")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[timezoneResponse](t, w)
	if resp.Timezone != "Asia/Kolkata" {
		t.Errorf("Expected Asia/Kolkata, got %s", resp.Timezone)
	}
	if resp.LocalDate != "2024-01-02" {
		t.Errorf("Expected local date 2024-01-02, got %s", resp.LocalDate)
	}
	if resp.LocalTime.Time24 != "00:00:00" || resp.LocalTime.Time12 != "12:00:00 AM" {
		t.Errorf("Unexpected local time %+v", resp.LocalTime)
	}

	if w := srv.get(t, "/timezone?lat=13&lon=80&date=01/02/2024"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed date, got %d", w.Code)
	}
}

func TestHandlers_Predict(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	w := srv.get(t, "/predict?start=2024-01-01&start=2024-01-17&cycle=16&iterations=2")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Starts         []string `json:"starts"`
		CycleDays      int      `json:"cycleDays"`
		PredictedDates []string `json:"predictedDates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	want := []string{"2024-02-18", "2024-02-02"}
	if fmt.Sprint(resp.PredictedDates) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, resp.PredictedDates)
	}
	if fmt.Sprint(resp.Starts) != fmt.Sprint([]string{"2024-01-17", "2024-01-01"}) {
		t.Errorf("Expected starts sorted descending, got %v", resp.Starts)
	}
}

func TestHandlers_Predict_CommaSeparatedAndDefaults(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	w := srv.get(t, "/predict?start=2024-01-01,2024-01-17")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		CycleDays      int      `json:"cycleDays"`
		Iterations     int      `json:"iterations"`
		PredictedDates []string `json:"predictedDates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.CycleDays != 16 || resp.Iterations != 10 {
		t.Errorf("Expected default cycle 16/10, got %d/%d", resp.CycleDays, resp.Iterations)
	}
	if len(resp.PredictedDates) != 10 {
		t.Errorf("Expected 10 predicted dates, got %d", len(resp.PredictedDates))
	}
}

func TestHandlers_Predict_InvalidParams(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)

	for _, query := range []string{
		"",
		"start=2024-13-01",
		"start=2024-01-01&cycle=0",
		"start=2024-01-01&iterations=-1",
		"start=2024-01-01&cycle=sixteen",
	} {
		w := srv.get(t, "/predict?"+query)
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected status 400, got %d", query, w.Code)
		}
	}
}

func TestHandlers_Acquisitions(t *testing.T) {
	base := time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)
	items := make([]*stac.Item, 0, 8)
	for i := 0; i < 8; i++ {
		items = append(items, createTestItem(fmt.Sprintf("LC08_%03d", i), base.AddDate(0, 0, -16*i)))
	}
	mock := &mockBackend{items: items}
	srv := newTestServer(t, mock, createTestConfig(), nil)

	w := srv.get(t, "/satellites/landsat-8/acquisitions?lat=13.082&lon=80.249&limit=3&datetime=2024-01-01T00:00:00Z/..")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Expected geo+json, got %s", ct)
	}

	type featureCollection struct {
		Type           string            `json:"type"`
		Features       []json.RawMessage `json:"features"`
		NumberReturned int               `json:"numberReturned"`
		NumberMatched  *int              `json:"numberMatched"`
	}
	fc := decode[featureCollection](t, w)
	if fc.NumberReturned != 3 || len(fc.Features) != 3 {
		t.Errorf("Expected 3 features, got %d", len(fc.Features))
	}
	if fc.NumberMatched == nil || *fc.NumberMatched != 8 {
		t.Errorf("Expected numberMatched 8, got %v", fc.NumberMatched)
	}

	call := mock.searchCalls[0]
	if call.Satellite.ID != "landsat-8" || call.Limit != 3 {
		t.Errorf("Unexpected search params %+v", call)
	}
	if call.Start == nil || !call.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || call.End != nil {
		t.Errorf("Expected open interval from 2024-01-01, got %v/%v", call.Start, call.End)
	}
}

func TestHandlers_Acquisitions_Limits(t *testing.T) {
	mock := &mockBackend{}
	srv := newTestServer(t, mock, createTestConfig(), nil)

	srv.get(t, "/satellites/landsat-8/acquisitions?lat=1&lon=2")
	srv.get(t, "/satellites/landsat-8/acquisitions?lat=1&lon=2&limit=500")

	if got := mock.searchCalls[0].Limit; got != 5 {
		t.Errorf("Expected default limit 5, got %d", got)
	}
	if got := mock.searchCalls[1].Limit; got != 50 {
		t.Errorf("Expected limit clamped to 50, got %d", got)
	}

	for _, query := range []string{"lat=1&lon=2&limit=0", "lat=1&lon=2&limit=abc", "lat=1&lon=2&datetime=yesterday", "lat=1"} {
		if w := srv.get(t, "/satellites/landsat-8/acquisitions?"+query); w.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", query, w.Code)
		}
	}
}

func TestHandlers_Acquisitions_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"status error", &earthengine.StatusError{StatusCode: 403, Message: "denied"}, http.StatusBadGateway, ErrCodeUpstreamError},
		{"circuit open", earthengine.ErrCircuitOpen, http.StatusBadGateway, ErrCodeUpstreamError},
		{"transport", errors.New("connection refused"), http.StatusBadGateway, ErrCodeUpstreamError},
		{"timeout", fmt.Errorf("earth engine search failed: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ErrCodeUpstreamTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockBackend{searchErr: tt.err}, createTestConfig(), nil)

			w := srv.get(t, "/satellites/landsat-8/acquisitions?lat=1&lon=2")
			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, w.Code)
			}
			if resp := decode[ErrorResponse](t, w); resp.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, resp.Code)
			}
		})
	}
}

func TestHandlers_FeatureFlags(t *testing.T) {
	cfg := createTestConfig()
	cfg.Features.EnableAcquisitions = false
	cfg.Features.EnableMetrics = false
	srv := newTestServer(t, &mockBackend{}, cfg, nil)

	if w := srv.get(t, "/satellites/landsat-8/acquisitions?lat=1&lon=2"); w.Code != http.StatusNotFound {
		t.Errorf("Expected acquisitions disabled (404), got %d", w.Code)
	}
	if w := srv.get(t, "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("Expected metrics disabled (404), got %d", w.Code)
	}
}

func TestHandlers_Metrics(t *testing.T) {
	srv := newTestServer(t, &mockBackend{}, createTestConfig(), nil)
	srv.get(t, "/health")

	w := srv.get(t, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "overpass_http_requests_total") {
		t.Error("Expected HTTP request counter in metrics output")
	}
}
