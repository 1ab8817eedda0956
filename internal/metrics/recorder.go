// Package metrics exposes settlement pass results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"ledger/internal/services"
)

const namespace = "ledger"

// Recorder turns pass reports into metrics on its own registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Recorder struct {
	registry *prometheus.Registry

	passesTotal     prometheus.Counter
	outcomesTotal   *prometheus.CounterVec
	settledAmount   prometheus.Counter
	passDuration    prometheus.Histogram
	lastPassSeconds prometheus.Gauge
	lastPassFailed  prometheus.Gauge
}

var _ services.PassObserver = (*Recorder)(nil)

// NewRecorder creates a recorder with Go runtime and process collectors
// registered next to the settlement metrics.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		passesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "passes_total",
			Help:      "Settlement passes run.",
		}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "card_outcomes_total",
			Help:      "Per-card settlement outcomes by status.",
		}, []string{"status"}),
		settledAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "settled_amount_total",
			Help:      "Sum of amounts debited from assets by settlements.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a settlement pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastPassSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time the last settlement pass finished.",
		}),
		lastPassFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "last_pass_failed_cards",
			Help:      "Cards that failed in the last settlement pass.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.passesTotal,
		r.outcomesTotal,
		r.settledAmount,
		r.passDuration,
		r.lastPassSeconds,
		r.lastPassFailed,
	)

	// Expose every status from the start so rates work before the first event.
	for _, s := range services.AllStatuses {
		r.outcomesTotal.WithLabelValues(string(s))
	}

	return r
}

// ObservePass records one finished pass.
func (r *Recorder) ObservePass(report *services.PassReport) {
	if report == nil {
		return
	}
	r.passesTotal.Inc()
	for _, o := range report.Outcomes {
		r.outcomesTotal.WithLabelValues(string(o.Status)).Inc()
	}
	if settled := report.Settled(); settled > 0 {
		r.settledAmount.Add(float64(settled))
	}
	r.passDuration.Observe(report.Duration().Seconds())
	if !report.FinishedAt.IsZero() {
		r.lastPassSeconds.Set(float64(report.FinishedAt.Unix()))
	}
	r.lastPassFailed.Set(float64(len(report.Failed())))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Gather collects all metrics from the registry.
func (r *Recorder) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}
