package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// PipelineMetrics covers background work: ingestion, the change feed and the
// circuit breakers guarding outbound dependencies.
type PipelineMetrics struct {
	service string

	ingestTotal     *prometheus.CounterVec
	ingestDuration  *prometheus.HistogramVec
	ingestInFlight  prometheus.Gauge
	publishTotal    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	breakerTransits *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total ingested documents by outcome.",
		},
		[]string{"service", "outcome"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cra",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time from upload to a terminal status, by outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cra",
			Subsystem: "ingest",
			Name:      "in_flight",
			Help:      "Number of documents currently being analyzed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	publishTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "changefeed",
			Name:      "publish_total",
			Help:      "Change snapshot publishes by status.",
		},
		[]string{"service", "status"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cra",
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	breakerTransits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cra",
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker transitions per operation and target state.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, publishTotal, breakerState, breakerTransits)

	return &PipelineMetrics{
		service:         service,
		ingestTotal:     ingestTotal,
		ingestDuration:  ingestDuration,
		ingestInFlight:  ingestInFlight,
		publishTotal:    publishTotal,
		breakerState:    breakerState,
		breakerTransits: breakerTransits,
	}
}

func (m *PipelineMetrics) ObserveIngestStarted() {
	m.ingestInFlight.Inc()
}

func (m *PipelineMetrics) ObserveIngestFinished(outcome string, elapsed time.Duration) {
	m.ingestInFlight.Dec()
	if outcome == "" {
		outcome = "unknown"
	}
	m.ingestTotal.WithLabelValues(m.service, outcome).Inc()
	if elapsed >= 0 {
		m.ingestDuration.WithLabelValues(m.service, outcome).Observe(elapsed.Seconds())
	}
}

func (m *PipelineMetrics) ObservePublish(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.publishTotal.WithLabelValues(m.service, status).Inc()
}

// ObserveBreaker matches resilience.StateObserver.
func (m *PipelineMetrics) ObserveBreaker(operation string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
	m.breakerTransits.WithLabelValues(m.service, operation, to.String()).Inc()
}
