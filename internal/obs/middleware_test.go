package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/obs"
)

func TestHTTPObsCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("illusia_test", nil, reg)

	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	count := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/items", "418"))
	require.Equal(t, 1.0, count)
}

func TestStatusRecorderDefaults(t *testing.T) {
	rec := obs.NewStatusRecorder(httptest.NewRecorder())
	require.Equal(t, http.StatusOK, rec.Status())
	n, err := rec.Write([]byte("ok"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, int64(2), rec.BytesWritten())
}
