// Package rewrite holds query rewriter decorators and simple rewriters.
package rewrite

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/fallsearch/internal/domain"
)

// Rewriter rewrites a query string.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// Func adapts a plain function to Rewriter.
type Func func(ctx context.Context, query string) (string, error)

// Rewrite implements Rewriter.
func (f Func) Rewrite(ctx context.Context, query string) (string, error) { return f(ctx, query) }

// Identity returns the query unchanged. Used when no provider is configured.
type Identity struct{}

// Rewrite implements Rewriter.
func (Identity) Rewrite(_ context.Context, query string) (string, error) { return query, nil }

// Limited wraps a Rewriter with a token-bucket rate limiter.
// With wait set, calls block until a token is available or ctx ends;
// otherwise they fail fast with domain.ErrRateLimited.
type Limited struct {
	inner   Rewriter
	limiter *rate.Limiter
	wait    bool
	logger  *zap.Logger
}

// NewLimited creates a rate-limited rewriter. rps <= 0 means unlimited.
func NewLimited(inner Rewriter, rps float64, burst int, wait bool, logger *zap.Logger) *Limited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		wait:    wait,
		logger:  logger,
	}
}

// Rewrite implements Rewriter.
func (l *Limited) Rewrite(ctx context.Context, query string) (string, error) {
	if l.wait {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for rewrite slot: %w", err)
		}
	} else if !l.limiter.Allow() {
		l.logger.Warn("Rewrite rate limit hit", zap.String("query", query))
		return "", fmt.Errorf("rewrite: %w", domain.ErrRateLimited)
	}

	out, err := l.inner.Rewrite(ctx, query)
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}
	return out, nil
}
