// Package metrics defines the Prometheus metrics of the Air Quality service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "airquality"

// Metrics holds the service's counters, histograms and gauges.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: route

	LocationsCreated    prometheus.Counter
	MeasurementsCreated prometheus.Counter
	Promotions          *prometheus.CounterVec // labels: outcome={promoted,skipped,failed}
	LifecycleEvents     *prometheus.CounterVec // labels: kind={project,category,field}, action
	EmailsSent          *prometheus.CounterVec // labels: kind={sheet,reminder,lifecycle}
	RemindersRun        prometheus.Counter
	HostCircuitState    prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		LocationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_created_total",
			Help:      "Locations added through the public API.",
		}),
		MeasurementsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_created_total",
			Help:      "Measurements added through the public API.",
		}),
		Promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_total",
			Help:      "Finished measurements offered for promotion, by outcome.",
		}, []string{"outcome"}),
		LifecycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_lifecycle_events_total",
			Help:      "Host project, category and field changes handled.",
		}, []string{"kind", "action"}),
		EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Emails handed to the mailer, by kind.",
		}, []string{"kind"}),
		RemindersRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_runs_total",
			Help:      "Runs of the measurement reminder job.",
		}),
		HostCircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_circuit_state",
			Help:      "Host client circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequests,
			m.HTTPDuration,
			m.LocationsCreated,
			m.MeasurementsCreated,
			m.Promotions,
			m.LifecycleEvents,
			m.EmailsSent,
			m.RemindersRun,
			m.HostCircuitState,
		)
	}
	return m
}
