package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/clinical-core/pkg/circuitbreaker"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestEngineObservations(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveClassification("weighted_sum", "score", time.Microsecond)
	m.ObserveClassification("weighted_sum", "score", time.Microsecond)
	m.ObserveInterpretation("arterial", "", time.Microsecond)
	m.ObserveChart(true, time.Microsecond)
	m.ObserveValidationError(EnginePartogram, "dilationCm")

	assert.Equal(t, 2.0, value(t, m.Classifications.WithLabelValues("weighted_sum", "score")))
	assert.Equal(t, 1.0, value(t, m.Interpretations.WithLabelValues("arterial", "none")))
	assert.Equal(t, 1.0, value(t, m.ChartsComputed.WithLabelValues("true")))
	assert.Equal(t, 1.0, value(t, m.ValidationErrors.WithLabelValues(EnginePartogram, "dilationCm")))
}

func TestPipelineObservations(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveOutboxBatch(3, 1, 10*time.Millisecond)
	m.ObserveAlert("webhook:pager", "delivered", time.Millisecond)
	m.ObserveCacheResult("hit")

	assert.Equal(t, 3.0, value(t, m.OutboxPublished))
	assert.Equal(t, 1.0, value(t, m.OutboxFailed))
	assert.Equal(t, 1.0, value(t, m.AlertsDelivered.WithLabelValues("webhook:pager", "delivered")))
	assert.Equal(t, 1.0, value(t, m.ChartCache.WithLabelValues("hit")))
}

func TestBreakerStateChanged(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.BreakerStateChanged("webhook:pager", circuitbreaker.StateClosed, circuitbreaker.StateOpen)
	assert.Equal(t, 1.0, value(t, m.CircuitBreakerState.WithLabelValues("webhook:pager")))

	m.BreakerStateChanged("webhook:pager", circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen)
	assert.Equal(t, 2.0, value(t, m.CircuitBreakerState.WithLabelValues("webhook:pager")))

	m.BreakerStateChanged("webhook:pager", circuitbreaker.StateHalfOpen, circuitbreaker.StateClosed)
	assert.Equal(t, 0.0, value(t, m.CircuitBreakerState.WithLabelValues("webhook:pager")))
}

func TestHandlerFor(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.ObserveHTTP("POST", "/api/v1/bloodgas", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{method="POST",route="/api/v1/bloodgas",status="200"} 1`)
}
