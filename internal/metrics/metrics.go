// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/backlinker/internal/updater"
)

// Metrics holds the run collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	runs      *prometheus.CounterVec
	rewritten prometheus.Counter
	failed    prometheus.Counter
	documents prometheus.Gauge
	conflicts prometheus.Gauge
	duration  prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backlinker_runs_total",
			Help: "Completed pipeline runs.",
		}, []string{"mode"}),
		rewritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backlinker_documents_rewritten_total",
			Help: "Documents whose mention block changed.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backlinker_documents_failed_total",
			Help: "Documents that could not be read or written.",
		}),
		documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backlinker_documents",
			Help: "Documents read by the latest run.",
		}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backlinker_permalink_conflicts",
			Help: "Permalinks claimed by more than one document in the latest run.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backlinker_run_duration_seconds",
			Help:    "Wall time of pipeline runs.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.runs, m.rewritten, m.failed, m.documents, m.conflicts, m.duration)
	return m
}

var _ updater.Sink = (*Metrics)(nil)

// Consume implements updater.Sink.
func (m *Metrics) Consume(_ context.Context, r *updater.Report) error {
	mode := "write"
	if r.DryRun {
		mode = "dry_run"
	}
	m.runs.WithLabelValues(mode).Inc()
	if !r.DryRun {
		m.rewritten.Add(float64(len(r.Rewritten)))
	}
	m.failed.Add(float64(len(r.Failed)))
	m.documents.Set(float64(r.DocumentCount()))
	m.conflicts.Set(float64(len(r.Conflicts)))
	m.duration.Observe(r.Duration.Seconds())
	return nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
