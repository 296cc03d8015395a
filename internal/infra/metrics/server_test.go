package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHealthzRunsChecks(t *testing.T) {
	ok := Handler(zap.NewNop(), map[string]HealthCheck{
		"db": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	failing := Handler(zap.NewNop(), map[string]HealthCheck{
		"broker": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "broker")
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	FramesProcessedTotal.WithLabelValues(OutcomeDetected).Inc()

	rec := httptest.NewRecorder()
	Handler(zap.NewNop(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dance_frames_processed_total")
}
