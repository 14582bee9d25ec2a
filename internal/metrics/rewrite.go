package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query rewrite provider metrics.
var (
	RewriteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fallsearch",
			Name:      "rewrite_requests_total",
			Help:      "Total number of query rewrite requests",
		},
		[]string{"provider", "model", "status"},
	)

	RewriteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fallsearch",
			Name:      "rewrite_request_duration_seconds",
			Help:      "Query rewrite request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	RewriteTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fallsearch",
			Name:      "rewrite_tokens_total",
			Help:      "Total tokens consumed by query rewrites",
		},
		[]string{"provider", "model", "type"},
	)

	RewriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fallsearch",
			Name:      "rewrite_errors_total",
			Help:      "Total query rewrite errors",
		},
		[]string{"provider", "model", "error_type"},
	)
)
