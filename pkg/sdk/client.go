package fallsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/compiler"
	"github.com/kailas-cloud/fallsearch/internal/db"
	dbRedis "github.com/kailas-cloud/fallsearch/internal/db/redis"
	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/search/result"
	"github.com/kailas-cloud/fallsearch/internal/repository/kv"
	"github.com/kailas-cloud/fallsearch/internal/repository/memory"
	openaiTr "github.com/kailas-cloud/fallsearch/internal/transport/openai"
	healthuc "github.com/kailas-cloud/fallsearch/internal/usecase/health"
	"github.com/kailas-cloud/fallsearch/internal/usecase/rewrite"
	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// searchUseCase is the internal interface over the search executor.
type searchUseCase interface {
	Search(ctx context.Context, query string, opts ...searchuc.CallOption) (result.Outcome, error)
	MoreLikeThis(ctx context.Context, rec record.Record, opts ...searchuc.CallOption) result.Outcome
}

// Client is the fallsearch SDK entry point.
type Client struct {
	store     db.Store
	searchSvc searchUseCase
	healthSvc healthUseCase
	compiler  compiler.Compiler
	obs       *observer
}

// New creates a Client. Without WithValkey or WithRedis records are held in memory.
// The provided context is used for the readiness check and fixture seeding.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "memory"}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.err != nil {
		return nil, fmt.Errorf("fallsearch: %w", cfg.err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	if cfg.driver == "memory" {
		reg := memory.New()
		if cfg.fixtures != nil {
			if reg, err = memory.LoadYAML(cfg.fixtures); err != nil {
				return nil, fmt.Errorf("fallsearch: %w", err)
			}
		}
		return wireClient(ctx, nil, reg, reg, cfg, obs), nil
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("fallsearch: database not ready: %w", err)
	}

	repo := kv.New(store, cfg.keyPrefix)
	if cfg.seed {
		if err := seedFixtures(ctx, repo, cfg.fixtures); err != nil {
			store.Close()
			return nil, err
		}
	}
	return wireClient(ctx, store, repo, store, cfg, obs), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, errors.New("fallsearch: database address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("fallsearch: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("fallsearch: unknown driver %q", cfg.driver)
	}
}

// fixtureSeeder is the subset of kv.Repo used for seeding.
type fixtureSeeder interface {
	Seed(ctx context.Context, t record.Type, recs []record.Record) error
}

func seedFixtures(ctx context.Context, repo fixtureSeeder, data []byte) error {
	reg, err := memory.LoadYAML(data)
	if err != nil {
		return fmt.Errorf("fallsearch: %w", err)
	}
	types, err := reg.Types(ctx)
	if err != nil {
		return fmt.Errorf("fallsearch: list fixture types: %w", err)
	}
	for _, t := range types {
		recs, err := reg.All(ctx, t)
		if err != nil {
			return fmt.Errorf("fallsearch: read fixtures for %s: %w", t.Name(), err)
		}
		if err := repo.Seed(ctx, t, recs); err != nil {
			return fmt.Errorf("fallsearch: seed %s: %w", t.Name(), err)
		}
	}
	return nil
}

func wireClient(
	ctx context.Context, store db.Store, records searchuc.Storage, pinger healthuc.StoragePinger,
	cfg *clientConfig, obs *observer,
) *Client {
	// Pass a nil interface (not a typed nil) when no rewriter is configured.
	var rw searchuc.Rewriter
	var rc healthuc.RewriteChecker
	if cfg.rewriter != nil {
		rw = cfg.rewriter
		if hc, ok := cfg.rewriter.(healthuc.RewriteChecker); ok {
			rc = hc
		}
		if cfg.quota != nil {
			quota := rewrite.NewQuota("sdk", *cfg.quota, zap.NewNop())
			if store != nil {
				quota.WithStore(ctx, kv.NewCounters(store, cfg.keyPrefix))
			}
			rw = rewrite.NewMetered(cfg.rewriter, quota)
		}
	}

	opts := searchuc.DefaultOptions()
	if cfg.policy != "" {
		opts.Policy = cfg.policy
	}
	opts.Hardened = !cfg.strict
	opts.RewriteTimeout = cfg.rewriteTimeout

	exec := searchuc.New(records, rw, opts, zap.NewNop()).WithObserver(obs)

	return &Client{
		store:     store,
		searchSvc: exec,
		healthSvc: healthuc.New(pinger, rc),
		compiler:  compiler.NewFlattening(),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Search matches a flat query string. On zero hits the configured Rewriter,
// if any, rewrites the query and the search runs once more.
func (c *Client) Search(ctx context.Context, q string, opts ...SearchOption) (res Results, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	var callOpts []searchuc.CallOption
	for _, o := range opts {
		o(&callOpts)
	}
	out, err := c.searchSvc.Search(ctx, q, callOpts...)
	if err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}
	return resultsFromOutcome(out), nil
}

// SearchTree flattens root and searches it. A nil root matches every record.
func (c *Client) SearchTree(ctx context.Context, root Node, opts ...SearchOption) (Results, error) {
	return c.Search(ctx, c.compiler.Compile(root), opts...)
}

// MoreLikeThis is not supported by this engine and always returns no hits.
func (c *Client) MoreLikeThis(ctx context.Context, typeName, pk string) Results {
	return resultsFromOutcome(c.searchSvc.MoreLikeThis(ctx, record.New(typeName, pk, nil)))
}

// OpenAIRewriter translates queries through an OpenAI-compatible chat API.
// Empty baseURL and model select the defaults.
func OpenAIRewriter(apiKey, baseURL, model string) Rewriter {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return openaiTr.NewTranslator(&openaiTr.Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       model,
		Temperature: 0.9,
		Provider:    "openai",
	})
}
