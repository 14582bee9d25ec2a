package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/search/result"
	"github.com/kailas-cloud/fallsearch/internal/metrics"
)

// Operation names reported in warnings.
const (
	OpUpdate = "update"
	OpRemove = "remove"
	OpClear  = "clear"
)

// Warning is a non-fatal advisory returned by operations this backend ignores.
type Warning struct {
	Op      string
	Message string
}

func (w Warning) String() string { return w.Message }

// Update is a no-op: the index is the record store itself.
func (s *Executor) Update(ctx context.Context, typeName string, records []record.Record) Warning {
	return s.unsupported(ctx, OpUpdate, zap.String("type", typeName), zap.Int("records", len(records)))
}

// Remove is a no-op.
func (s *Executor) Remove(ctx context.Context, typeName, pk string) Warning {
	return s.unsupported(ctx, OpRemove, zap.String("type", typeName), zap.String("pk", pk))
}

// Clear is a no-op.
func (s *Executor) Clear(ctx context.Context, models ...string) Warning {
	return s.unsupported(ctx, OpClear, zap.Strings("models", models))
}

func (s *Executor) unsupported(_ context.Context, op string, fields ...zap.Field) Warning {
	w := Warning{Op: op, Message: op + " is not implemented in this backend"}
	metrics.UnsupportedOperationsTotal.WithLabelValues(op).Inc()
	s.logger.Warn(w.Message, fields...)
	return w
}

// MoreLikeThis is permanently unimplemented and always returns zero hits.
func (s *Executor) MoreLikeThis(_ context.Context, _ record.Record, _ ...CallOption) result.Outcome {
	return result.Empty()
}

// PrepValue converts a storage value for indexing. Values are used as-is.
func (s *Executor) PrepValue(v any) any { return v }
