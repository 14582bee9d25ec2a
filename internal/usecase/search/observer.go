package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/metrics"
)

// Pass identifies which scan of a search call an event belongs to.
type Pass string

// Pass kinds.
const (
	PassFirst Pass = "first"
	PassRetry Pass = "retry"
)

// PassEvent describes a scan pass. Hits and Duration are set on completion only.
type PassEvent struct {
	SearchID string
	Pass     Pass
	Query    string
	Types    int
	Hits     int
	Duration time.Duration
}

// RewriteEvent describes one rewrite service call.
type RewriteEvent struct {
	SearchID  string
	Original  string
	Rewritten string
	Err       error
	Duration  time.Duration
}

// Observer receives executor lifecycle events.
type Observer interface {
	PassStarted(ctx context.Context, ev PassEvent)
	RewriteInvoked(ctx context.Context, ev RewriteEvent)
	PassCompleted(ctx context.Context, ev PassEvent)
}

// NopObserver ignores all events.
type NopObserver struct{}

// PassStarted implements Observer.
func (NopObserver) PassStarted(context.Context, PassEvent) {}

// RewriteInvoked implements Observer.
func (NopObserver) RewriteInvoked(context.Context, RewriteEvent) {}

// PassCompleted implements Observer.
func (NopObserver) PassCompleted(context.Context, PassEvent) {}

// Observers fans events out in order.
type Observers []Observer

// PassStarted implements Observer.
func (o Observers) PassStarted(ctx context.Context, ev PassEvent) {
	for _, obs := range o {
		obs.PassStarted(ctx, ev)
	}
}

// RewriteInvoked implements Observer.
func (o Observers) RewriteInvoked(ctx context.Context, ev RewriteEvent) {
	for _, obs := range o {
		obs.RewriteInvoked(ctx, ev)
	}
}

// PassCompleted implements Observer.
func (o Observers) PassCompleted(ctx context.Context, ev PassEvent) {
	for _, obs := range o {
		obs.PassCompleted(ctx, ev)
	}
}

// LogObserver writes events to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// PassStarted implements Observer.
func (l *LogObserver) PassStarted(_ context.Context, ev PassEvent) {
	l.logger.Debug("Search pass started",
		zap.String("search_id", ev.SearchID),
		zap.String("pass", string(ev.Pass)),
		zap.String("query", ev.Query),
		zap.Int("types", ev.Types),
	)
}

// RewriteInvoked implements Observer.
func (l *LogObserver) RewriteInvoked(_ context.Context, ev RewriteEvent) {
	if ev.Err != nil {
		l.logger.Warn("Query rewrite failed",
			zap.String("search_id", ev.SearchID),
			zap.String("original_query", ev.Original),
			zap.Duration("duration", ev.Duration),
			zap.Error(ev.Err),
		)
		return
	}
	l.logger.Info("Query rewritten",
		zap.String("search_id", ev.SearchID),
		zap.String("original_query", ev.Original),
		zap.String("new_query", ev.Rewritten),
		zap.Duration("duration", ev.Duration),
	)
}

// PassCompleted implements Observer.
func (l *LogObserver) PassCompleted(_ context.Context, ev PassEvent) {
	l.logger.Debug("Search pass completed",
		zap.String("search_id", ev.SearchID),
		zap.String("pass", string(ev.Pass)),
		zap.Int("hits", ev.Hits),
		zap.Duration("duration", ev.Duration),
	)
}

// MetricsObserver records Prometheus metrics for passes and fallbacks.
type MetricsObserver struct{}

// PassStarted implements Observer.
func (MetricsObserver) PassStarted(_ context.Context, ev PassEvent) {
	metrics.SearchPassesTotal.WithLabelValues(string(ev.Pass)).Inc()
}

// RewriteInvoked implements Observer.
func (MetricsObserver) RewriteInvoked(_ context.Context, ev RewriteEvent) {
	outcome := "rewritten"
	if ev.Err != nil {
		outcome = "failed"
	}
	metrics.SearchFallbacksTotal.WithLabelValues(outcome).Inc()
}

// PassCompleted implements Observer.
func (MetricsObserver) PassCompleted(_ context.Context, ev PassEvent) {
	metrics.SearchHits.WithLabelValues(string(ev.Pass)).Observe(float64(ev.Hits))
	metrics.SearchPassDuration.WithLabelValues(string(ev.Pass)).Observe(ev.Duration.Seconds())
}
