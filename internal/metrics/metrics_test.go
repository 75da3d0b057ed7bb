package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/satellites/{satelliteId}/acquisitions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"landsat-8", "landsat-9", "sentinel-2a"} {
		req := httptest.NewRequest(http.MethodGet, "/satellites/"+id+"/acquisitions", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/satellites/{satelliteId}/acquisitions", http.MethodGet, "418"))
	if got != 3 {
		t.Errorf("expected 3 requests under one label, got %v", got)
	}
}

func TestMiddleware_UnmatchedIsOther(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "404"))

	if after-before != 1 {
		t.Errorf("expected unmatched request counted as other, delta %v", after-before)
	}
}

func TestObserveFetch(t *testing.T) {
	before := testutil.ToFloat64(fetchTotal.WithLabelValues("landsat-8", OutcomeTimeout))
	ObserveFetch("landsat-8", OutcomeTimeout, 30*time.Second)
	after := testutil.ToFloat64(fetchTotal.WithLabelValues("landsat-8", OutcomeTimeout))

	if after-before != 1 {
		t.Errorf("expected fetch counter to increase by 1, delta %v", after-before)
	}
}

func TestObserveCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss"))

	ObserveCacheLookup(true)
	ObserveCacheLookup(false)
	ObserveCacheLookup(false)

	if d := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")) - hits; d != 1 {
		t.Errorf("expected 1 hit, got %v", d)
	}
	if d := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss")) - misses; d != 2 {
		t.Errorf("expected 2 misses, got %v", d)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveRefresh(OutcomeSuccess)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "overpass_scheduled_refresh_total") {
		t.Error("expected refresh counter in exposition")
	}
}
