// Package telemetry records registry and engine activity as Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aouyang1/go-demand-forecaster/store"
)

const namespace = "demandforecaster"

// Recorder holds every collector on its own prometheus registry so multiple instances can
// live in one process.
type Recorder struct {
	reg *prometheus.Registry

	cacheLookups *prometheus.CounterVec
	evictions    prometheus.Counter
	fits         *prometheus.CounterVec
	fitDuration  prometheus.Histogram
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_lookups_total",
				Help:      "Model registry lookups by result",
			},
			[]string{"result"},
		),
		evictions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_evictions_total",
				Help:      "Trained models evicted for capacity or age",
			},
		),
		fits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_fits_total",
				Help:      "Model fits by outcome",
			},
			[]string{"outcome"},
		),
		fitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_fit_duration_seconds",
				Help:      "Duration of model fits in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Engine requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of engine requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) CacheHit(store.EntityKey) {
	r.cacheLookups.WithLabelValues("hit").Inc()
}

func (r *Recorder) CacheMiss(store.EntityKey) {
	r.cacheLookups.WithLabelValues("miss").Inc()
}

func (r *Recorder) FitCompleted(_ store.EntityKey, took time.Duration, err error) {
	r.fitDuration.Observe(took.Seconds())
	r.fits.WithLabelValues(outcome(err)).Inc()
}

func (r *Recorder) Evicted(store.EntityKey) {
	r.evictions.Inc()
}

// ObserveRequest records one engine operation.
func (r *Recorder) ObserveRequest(operation string, took time.Duration, err error) {
	r.requests.WithLabelValues(operation, outcome(err)).Inc()
	r.latency.WithLabelValues(operation).Observe(took.Seconds())
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.reg
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
