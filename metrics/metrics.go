// Package metrics exposes Prometheus metrics for the interactions API:
// HTTP traffic (requests, latency, in-flight, rate limiter buckets) and the
// interaction checker itself (checks run, matches by severity, rules loaded,
// open selection sessions).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giygas/ems-interactions-api/interactions"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)
)

var (
	InteractionChecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interaction_checks_total",
		Help: "Interaction checks run against the reference table",
	})

	InteractionMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interaction_matches_total",
		Help: "Interactions reported by checks",
	}, []string{"severity", "matched_by"})

	InteractionRulesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interaction_rules_loaded",
		Help: "Rules in the live reference table",
	})

	SelectionSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "selection_sessions_active",
		Help: "Open selection sessions",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
}

// RecordCheck counts one check and its matches
func RecordCheck(report interactions.Report) {
	InteractionChecksTotal.Inc()
	for _, r := range report.Interactions {
		InteractionMatchesTotal.WithLabelValues(string(r.Rule.Severity), string(r.MatchedBy)).Inc()
	}
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
