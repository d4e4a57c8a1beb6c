// Package metrics exposes Prometheus collectors for the harvest pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal   *prometheus.CounterVec
	itemsTotal           *prometheus.CounterVec
	retriesTotal         prometheus.Counter
	activeWorkers        prometheus.Gauge
	fetchDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by attempt classification.",
			},
			[]string{"class"},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_items_total",
				Help: "Total work items finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		retriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_retries_total",
				Help: "Total retries scheduled after transient failures.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Number of workers currently processing an item.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of single fetch attempt latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
		)
	})
}

// Handler returns an http.Handler exposing the collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt records one fetch attempt.
func ObserveAttempt(class string, duration time.Duration) {
	Init()
	fetchAttemptsTotal.WithLabelValues(class).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveItem records one terminal item status.
func ObserveItem(status string) {
	Init()
	itemsTotal.WithLabelValues(status).Inc()
}

// ObserveRetry counts one scheduled retry.
func ObserveRetry() {
	Init()
	retriesTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
