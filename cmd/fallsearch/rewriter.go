package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/config"
	openaiTr "github.com/kailas-cloud/fallsearch/internal/transport/openai"
	healthuc "github.com/kailas-cloud/fallsearch/internal/usecase/health"
	"github.com/kailas-cloud/fallsearch/internal/usecase/rewrite"
	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
)

// buildRewriter assembles the fallback chain: translator, optional quota, rate limiter.
// With the provider disabled the query is retried unchanged, so every zero-hit
// search still makes exactly one rewrite attempt. The checker is nil in that case.
func buildRewriter(
	ctx context.Context, cfg config.RewriteConfig, counters rewrite.CounterStore, logger *zap.Logger,
) (searchuc.Rewriter, healthuc.RewriteChecker) {
	if !cfg.Enabled {
		logger.Info("Query rewrite provider disabled, retrying with the original query")
		return rewrite.Identity{}, nil
	}

	translator := openaiTr.NewTranslator(&openaiTr.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Prompt:      cfg.Prompt,
		Provider:    cfg.Provider,
		Logger:      logger,
	})

	var provider rewrite.Rewriter = translator
	if qc := cfg.Quota; qc.Daily > 0 || qc.Monthly > 0 {
		quota := rewrite.NewQuota(cfg.Provider, rewrite.QuotaLimits{
			Daily:   qc.Daily,
			Monthly: qc.Monthly,
			Action:  rewrite.QuotaAction(qc.Action),
		}, logger)
		if counters != nil {
			quota.WithStore(ctx, counters)
		}
		provider = rewrite.NewMetered(translator, quota)
		logger.Info("Rewrite quota enabled",
			zap.Int64("daily", qc.Daily),
			zap.Int64("monthly", qc.Monthly),
			zap.String("action", qc.Action),
			zap.Bool("persistent", counters != nil),
		)
	}

	rl := cfg.RateLimit
	logger.Info("Query rewrite enabled",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Bool("hardened", cfg.IsHardened()),
	)
	return rewrite.NewLimited(provider, rl.RPS, rl.Burst, rl.Wait, logger), translator
}
