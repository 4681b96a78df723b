// Package metrics exposes pipeline and HTTP metrics in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"salesbi/internal/domain/pipeline"
)

const namespace = "salesbi"

// Metrics owns a private registry so tests and commands do not share global state.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	rows          *prometheus.GaugeVec
	anomalies     prometheus.Counter
	revenue       prometheus.Gauge
	purged        prometheus.Counter

	httpDuration *prometheus.HistogramVec
}

var _ pipeline.Metrics = (*Metrics)(nil)

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by status.",
		}, []string{"status", "dry_run"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows",
			Help:      "Row counts of the last run by kind.",
		}, []string{"kind"}),
		anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "anomalies_total",
			Help:      "Unparsable values found across runs.",
		}),
		revenue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "revenue",
			Help:      "Grand total revenue of the last completed run.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "purged_rows_total",
			Help:      "Non-transactional rows deleted from the branch tables.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stageDuration,
		m.runs,
		m.rows,
		m.anomalies,
		m.revenue,
		m.purged,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage implements pipeline.Metrics.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveRun implements pipeline.Metrics.
func (m *Metrics) ObserveRun(run *pipeline.Run) {
	dryRun := "false"
	if run.DryRun {
		dryRun = "true"
	}
	m.runs.WithLabelValues(string(run.Status), dryRun).Inc()

	m.rows.WithLabelValues("unified").Set(float64(run.UnifiedCount))
	m.rows.WithLabelValues("removed").Set(float64(run.RemovedCount))
	m.rows.WithLabelValues("quarantined").Set(float64(run.QuarantinedCount))
	m.rows.WithLabelValues("cleaned").Set(float64(run.CleanedCount))

	m.anomalies.Add(float64(run.AnomalyCount))
	m.purged.Add(float64(run.PurgedCount))

	if run.Status == pipeline.StatusCompleted {
		m.revenue.Set(run.Revenue.InexactFloat64())
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
