package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search executor metrics.
var (
	SearchPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fallsearch",
			Name:      "search_passes_total",
			Help:      "Total number of search passes by kind (first, retry)",
		},
		[]string{"pass"},
	)

	SearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fallsearch",
			Name:      "search_hits",
			Help:      "Hits returned per search pass",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"pass"},
	)

	SearchPassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fallsearch",
			Name:      "search_pass_duration_seconds",
			Help:      "Search pass duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"pass"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fallsearch",
			Name:      "search_fallbacks_total",
			Help:      "Rewrite fallbacks by outcome (rewritten, failed)",
		},
		[]string{"outcome"},
	)

	UnsupportedOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fallsearch",
			Name:      "unsupported_operations_total",
			Help:      "Calls to index maintenance operations this backend ignores",
		},
		[]string{"op"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search and rewrite metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchPassesTotal)
	prometheus.MustRegister(SearchHits)
	prometheus.MustRegister(SearchPassDuration)
	prometheus.MustRegister(SearchFallbacksTotal)
	prometheus.MustRegister(UnsupportedOperationsTotal)
	prometheus.MustRegister(RewriteRequestsTotal)
	prometheus.MustRegister(RewriteRequestDuration)
	prometheus.MustRegister(RewriteTokensTotal)
	prometheus.MustRegister(RewriteErrorsTotal)
	searchMetricsRegistered = true
}
