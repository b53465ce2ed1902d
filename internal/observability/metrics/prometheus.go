// Package metrics provides Prometheus metrics for the clinical engines and
// the alert pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medassist/clinical-core/pkg/circuitbreaker"
)

// Engine labels
const (
	EngineClassifier = "classifier"
	EngineAcidBase   = "acidbase"
	EnginePartogram  = "partogram"
)

var engineBuckets = []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025}

// Metrics holds all application metrics
type Metrics struct {
	Classifications     *prometheus.CounterVec
	Interpretations     *prometheus.CounterVec
	ChartsComputed      *prometheus.CounterVec
	ValidationErrors    *prometheus.CounterVec
	EngineDuration      *prometheus.HistogramVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	ChartCache          *prometheus.CounterVec
	OutboxPublished     prometheus.Counter
	OutboxFailed        prometheus.Counter
	OutboxBatchDuration prometheus.Histogram
	OutboxPending       prometheus.Gauge
	AlertsDelivered     *prometheus.CounterVec
	AlertDuration       *prometheus.HistogramVec
	ConsumerLag         prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifications_total",
			Help: "Free-text classifications by policy and resulting category",
		}, []string{"policy", "category"}),
		Interpretations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodgas_interpretations_total",
			Help: "Blood gas interpretations by sample type and primary disorder",
		}, []string{"sample_type", "disorder"}),
		ChartsComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partogram_charts_total",
			Help: "Partogram chart computations by action line state",
		}, []string{"crosses_action_line"}),
		ValidationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validation_errors_total",
			Help: "Inputs rejected as out of range",
		}, []string{"engine", "field"}),
		EngineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_duration_seconds",
			Help:    "Time spent inside a clinical engine call",
			Buckets: engineBuckets,
		}, []string{"engine"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ChartCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_cache_requests_total",
			Help: "Chart cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox entries published to Kafka",
		}),
		OutboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_failed_total",
			Help: "Outbox entries that failed to publish",
		}),
		OutboxBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_batch_duration_seconds",
			Help:    "Outbox batch processing duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		AlertsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Alert deliveries by channel and outcome",
		}, []string{"channel", "outcome"}),
		AlertDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alert_delivery_duration_seconds",
			Help:    "Alert delivery duration per channel",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		ConsumerLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alert_consumer_lag",
			Help: "Total consumer group lag on the alert topic",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.Classifications,
		m.Interpretations,
		m.ChartsComputed,
		m.ValidationErrors,
		m.EngineDuration,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ChartCache,
		m.OutboxPublished,
		m.OutboxFailed,
		m.OutboxBatchDuration,
		m.OutboxPending,
		m.AlertsDelivered,
		m.AlertDuration,
		m.ConsumerLag,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveClassification records one classifier call
func (m *Metrics) ObserveClassification(policy, category string, d time.Duration) {
	m.Classifications.WithLabelValues(policy, category).Inc()
	m.EngineDuration.WithLabelValues(EngineClassifier).Observe(d.Seconds())
}

// ObserveInterpretation records one blood gas interpretation. An empty
// disorder is reported as "none".
func (m *Metrics) ObserveInterpretation(sampleType, disorder string, d time.Duration) {
	if disorder == "" {
		disorder = "none"
	}
	m.Interpretations.WithLabelValues(sampleType, disorder).Inc()
	m.EngineDuration.WithLabelValues(EngineAcidBase).Observe(d.Seconds())
}

// ObserveChart records one partogram computation
func (m *Metrics) ObserveChart(crossesActionLine bool, d time.Duration) {
	m.ChartsComputed.WithLabelValues(strconv.FormatBool(crossesActionLine)).Inc()
	m.EngineDuration.WithLabelValues(EnginePartogram).Observe(d.Seconds())
}

// ObserveValidationError records a rejected input
func (m *Metrics) ObserveValidationError(engine, field string) {
	m.ValidationErrors.WithLabelValues(engine, field).Inc()
}

// ObserveHTTP records a finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveCacheResult records a chart cache lookup
func (m *Metrics) ObserveCacheResult(result string) {
	m.ChartCache.WithLabelValues(result).Inc()
}

// ObserveOutboxBatch implements postgres.BatchObserver
func (m *Metrics) ObserveOutboxBatch(published, failed int, d time.Duration) {
	m.OutboxPublished.Add(float64(published))
	m.OutboxFailed.Add(float64(failed))
	m.OutboxBatchDuration.Observe(d.Seconds())
}

// ObserveAlert implements alerting.Recorder
func (m *Metrics) ObserveAlert(channel, outcome string, d time.Duration) {
	m.AlertsDelivered.WithLabelValues(channel, outcome).Inc()
	m.AlertDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// BreakerStateChanged is a circuitbreaker.Config.OnStateChange hook
func (m *Metrics) BreakerStateChanged(name string, _, to circuitbreaker.State) {
	var v float64
	switch to {
	case circuitbreaker.StateOpen:
		v = 1
	case circuitbreaker.StateHalfOpen:
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

// Handler returns the Prometheus HTTP handler for the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a Prometheus HTTP handler for a custom registry
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
