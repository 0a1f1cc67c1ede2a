// Package metrics exposes Prometheus metrics for remote model calls and
// workspace sessions.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "uiaudit"

var (
	remoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Total number of remote model calls",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Duration of remote model calls in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	staleResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Results discarded because a newer image was uploaded while the call was in flight",
		},
		[]string{"operation"},
	)

	issuesFound = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "issues_per_analysis",
			Help:      "Number of issues returned by a successful analysis",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 40},
		},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of review sessions held by the store",
		},
	)

	allMetrics = []prometheus.Collector{
		remoteCallsTotal,
		remoteCallDuration,
		staleResultsTotal,
		issuesFound,
		sessionsActive,
	}

	registerOnce sync.Once
)

// Register adds all collectors to the registerer. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		for _, c := range allMetrics {
			reg.MustRegister(c)
		}
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCall records the outcome of one remote call
func ObserveCall(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	remoteCallsTotal.WithLabelValues(operation, status).Inc()
	remoteCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func StaleResult(operation string) {
	staleResultsTotal.WithLabelValues(operation).Inc()
}

func IssuesFound(n int) {
	issuesFound.Observe(float64(n))
}

func SetSessions(n int) {
	sessionsActive.Set(float64(n))
}
