package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbi/internal/domain/pipeline"
)

func TestObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun(&pipeline.Run{
		Status:       pipeline.StatusCompleted,
		UnifiedCount: 3,
		RemovedCount: 1,
		CleanedCount: 2,
		Revenue:      decimal.RequireFromString("150.00"),
	})
	m.ObserveRun(&pipeline.Run{
		Status:       pipeline.StatusHalted,
		AnomalyCount: 4,
		Revenue:      decimal.RequireFromString("999"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("completed", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("halted", "false")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.anomalies))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.revenue), "halted runs leave revenue untouched")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rows.WithLabelValues("cleaned")), "gauges track the last run")
}

func TestObserveStage(t *testing.T) {
	m := New()
	m.ObserveStage("normalize", 0.01)
	m.ObserveStage("sanitize", 0.02)

	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/v1/runs", "200", 0.003)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "salesbi_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
