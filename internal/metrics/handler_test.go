package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestSetupMetricsRoute_ServesWorkerMetrics はworker用ルートが/metricsでセッション削除数を返すことを検証する。
func TestSetupMetricsRoute_ServesWorkerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSessionsPurged(4)

	w := httptest.NewRecorder()
	SetupMetricsRoute(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "tarkam_sessions_purged_total 4") {
		t.Errorf("response should contain tarkam_sessions_purged_total 4, got:\n%s", w.Body.String())
	}
}

// TestSetupMetricsRoute_OtherPathsNotFound は/metrics以外のパスを公開しないことを検証する。
func TestSetupMetricsRoute_OtherPathsNotFound(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	for _, path := range []string{"/", "/health", "/metrics/extra"} {
		w := httptest.NewRecorder()
		SetupMetricsRoute(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusNotFound)
		}
	}
}
