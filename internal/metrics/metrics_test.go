package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fittrack-server/internal/metrics"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	metrics.HTTPRequestsTotal.Reset()

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Post("/admin/users/{id}/archive", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"u-1", "u-2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/users/"+id+"/archive", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/admin/users/{id}/archive", "204"))
	require.Equal(t, float64(2), got)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	metrics.CSRFRejections.Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "fittrack_auth_csrf_rejections_total"))
}
