package fallsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	hits       *prometheus.HistogramVec
	rewrites   *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fallsearch",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fallsearch",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		hits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fallsearch",
			Subsystem: "sdk",
			Name:      "pass_hits",
			Help:      "Hits per search pass.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500},
		}, []string{"pass"}),
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fallsearch",
			Subsystem: "sdk",
			Name:      "rewrites_total",
			Help:      "Zero-hit rewrites by outcome.",
		}, []string{"outcome"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.rewrites); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.hits); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("fallsearch: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("fallsearch: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations. It also receives
// engine pass events.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

var _ searchuc.Observer = (*observer)(nil)

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(
	op string, start time.Time, err error,
) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(
			dur.Seconds(),
		)
	}

	if o.logger != nil {
		if err != nil {
			o.logger.Warn("operation failed",
				"op", op,
				"duration", dur,
				"error", err,
			)
		} else {
			o.logger.Debug("operation completed",
				"op", op,
				"duration", dur,
			)
		}
	}
}

func (o *observer) PassStarted(context.Context, searchuc.PassEvent) {}

func (o *observer) RewriteInvoked(ctx context.Context, ev searchuc.RewriteEvent) {
	if o == nil {
		return
	}
	outcome := "rewritten"
	if ev.Err != nil {
		outcome = "failed"
	}
	if o.metrics != nil {
		o.metrics.rewrites.WithLabelValues(outcome).Inc()
	}
	if o.logger != nil {
		o.logger.InfoContext(ctx, "query rewrite",
			"search_id", ev.SearchID,
			"original_query", ev.Original,
			"new_query", ev.Rewritten,
			"outcome", outcome,
		)
	}
}

func (o *observer) PassCompleted(_ context.Context, ev searchuc.PassEvent) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.hits.WithLabelValues(string(ev.Pass)).Observe(float64(ev.Hits))
}
