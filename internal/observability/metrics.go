package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ispu_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	Polls          *prometheus.CounterVec // labels: outcome={success,error}
	PollDuration   prometheus.Histogram
	PollerRunning  prometheus.Gauge
	StationsTotal  prometheus.Gauge
	StationsByBand *prometheus.GaugeVec // labels: category

	// Upstream API metrics.
	APIRequestDuration *prometheus.HistogramVec // labels: endpoint

	PublishErrors prometheus.Counter
	Exports       *prometheus.CounterVec // labels: format
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Polls,
		m.PollDuration,
		m.PollerRunning,
		m.StationsTotal,
		m.StationsByBand,
		m.APIRequestDuration,
		m.PublishErrors,
		m.Exports,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Station polls by outcome.",
		}, []string{"outcome"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a complete poll including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      "1 when the poller is active, 0 when shut down.",
		}),
		StationsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations",
			Help:      "Number of stations in the current snapshot.",
		}),
		StationsByBand: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_by_category",
			Help:      "Stations in the current snapshot per ISPU category.",
		}, []string{"category"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Upstream monitoring API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Snapshot publish failures.",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Station exports served by format.",
		}, []string{"format"}),
	}
}
