package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	DispatchesTotal.WithLabelValues("shopping", "ok").Inc()
	NormalizeOutcomes.WithLabelValues("single").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	assert.True(t, names["concierge_dispatches_total"])
	assert.True(t, names["concierge_normalize_outcomes_total"])
	assert.True(t, names["concierge_sessions_active"])
	assert.True(t, names["concierge_websocket_connections_active"])
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("/v1/sessions/{id}", "GET", "4xx"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions/abc", nil))

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("/v1/sessions/{id}", "GET", "4xx"))
	assert.Equal(t, float64(1), after-before)
}
